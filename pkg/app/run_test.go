package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/chatd/internal/kb"
	"github.com/flemzord/chatd/internal/provider/openai"
	"github.com/flemzord/chatd/internal/tool"
)

func TestLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := logLevel(tt.in); got != tt.want {
			t.Errorf("logLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveConfigPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := os.MkdirAll(filepath.Join(dir, "chatd"), 0o700); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "chatd", "chatd.yaml")
	if err := os.WriteFile(want, []byte("provider:\n  api_key: k\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Fatal("expected error when no config exists")
	}
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kbPath := filepath.Join(t.TempDir(), "kb.md")
	if err := os.WriteFile(kbPath, []byte("## Grading\nProjects 60%.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	knowledge, err := kb.Load(kbPath)
	if err != nil {
		t.Fatal(err)
	}

	registry := tool.NewRegistry(logger)
	if err := registerBuiltins(registry, knowledge); err != nil {
		t.Fatal(err)
	}
	want := []string{"calculate_grade", "get_weather", "kb_search", "web_lookup"}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Without a knowledge base, kb_search is absent.
	registry = tool.NewRegistry(logger)
	if err := registerBuiltins(registry, nil); err != nil {
		t.Fatal(err)
	}
	for _, name := range registry.Names() {
		if name == "kb_search" {
			t.Error("kb_search registered without a knowledge base")
		}
	}
}

func TestStatusSource(t *testing.T) {
	t.Parallel()

	client := openai.NewClient(openai.Config{Model: "m1", APIKey: "k"})
	s := statusSource{provider: client}
	if s.Model() != "m1" {
		t.Errorf("model = %q", s.Model())
	}
	if s.KBSections() != 0 {
		t.Errorf("sections = %d, want 0 with nil kb", s.KBSections())
	}
}
