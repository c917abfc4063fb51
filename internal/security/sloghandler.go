package security

import (
	"context"
	"log/slog"
)

// RedactingHandler is slog middleware that scrubs secrets before records
// reach the wrapped handler. chatd logs request and tool activity that can
// echo user input, so the message and every string-valued attribute pass
// through the redactor on the way out.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps inner with redaction by redactor.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: redactor}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle rebuilds the record with a scrubbed message and attributes and
// hands it to the inner handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.scrub(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs scrubs the attributes once, then folds them into the inner
// handler so Handle never sees them again.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.scrub(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(clean), redactor: h.redactor}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

// scrub redacts string values in an attribute, descending into groups.
func (h *RedactingHandler) scrub(a slog.Attr) slog.Attr {
	// Resolve first so LogValuer and Stringer values take their final form.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = h.scrub(m)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		// Errors land here after Resolve; scrub their text form.
		s := a.Value.String()
		if clean := h.redactor.Redact(s); clean != s {
			a.Value = slog.StringValue(clean)
		}
	}
	return a
}
