package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newRedactingLogger(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	r := NewRedactor()
	r.AddLiteral("hunter2")
	var buf bytes.Buffer
	return slog.New(NewRedactingHandler(slog.NewTextHandler(&buf, nil), r)), &buf
}

func TestRedactingHandler_MessageAndAttrs(t *testing.T) {
	t.Parallel()

	logger, buf := newRedactingLogger(t)
	logger.Info("token hunter2 leaked",
		slog.String("key", "sk-abcdefghij1234567890abcd"),
		slog.Int("count", 3))

	out := buf.String()
	if strings.Contains(out, "hunter2") || strings.Contains(out, "sk-abcdefghij") {
		t.Errorf("secret reached the sink: %s", out)
	}
	if !strings.Contains(out, RedactPlaceholder) {
		t.Errorf("no redaction marker in output: %s", out)
	}
	if !strings.Contains(out, "count=3") {
		t.Errorf("non-string attribute mangled: %s", out)
	}
}

func TestRedactingHandler_GroupAndError(t *testing.T) {
	t.Parallel()

	logger, buf := newRedactingLogger(t)
	logger.Error("request failed",
		slog.Group("req", slog.String("auth", "Bearer hunter2")),
		slog.Any("error", errors.New("denied for hunter2")))

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret reached the sink: %s", out)
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("hunter2")
	var buf bytes.Buffer
	logger := slog.New(NewRedactingHandler(slog.NewTextHandler(&buf, nil), r)).
		With(slog.String("api_key", "hunter2"))

	logger.Info("started")
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("pre-bound attribute leaked: %s", buf.String())
	}
}
