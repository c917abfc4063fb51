package tool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeTool struct {
	name    string
	execute func(ctx context.Context, args json.RawMessage) Output
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "fake tool" }
func (f *fakeTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (f *fakeTool) Execute(ctx context.Context, args json.RawMessage) Output {
	if f.execute != nil {
		return f.execute(ctx, args)
	}
	return Output{Content: "ok"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	if err := r.Register(&fakeTool{name: "alpha"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&fakeTool{name: "alpha"}); !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("duplicate: err = %v", err)
	}
	if err := r.Register(&fakeTool{name: "  "}); !errors.Is(err, ErrEmptyToolName) {
		t.Errorf("empty name: err = %v", err)
	}
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(&fakeTool{name: name}); err != nil {
			t.Fatal(err)
		}
	}

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("got %d definitions", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("defs[%d] = %q, want %q", i, d.Name, want[i])
		}
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	out := r.Dispatch(context.Background(), "nope", nil)
	if !out.IsError || out.Kind != ErrorKindNotFound {
		t.Errorf("out = %+v, want not_found error", out)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	_ = r.Register(&fakeTool{
		name: "boom",
		execute: func(context.Context, json.RawMessage) Output {
			panic("kaboom")
		},
	})

	out := r.Dispatch(context.Background(), "boom", nil)
	if !out.IsError || out.Kind != ErrorKindUnavailable {
		t.Errorf("out = %+v, want unavailable error", out)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testLogger())
	r.SetTimeout(20 * time.Millisecond)
	_ = r.Register(&fakeTool{
		name: "slow",
		execute: func(ctx context.Context, _ json.RawMessage) Output {
			<-ctx.Done()
			return Errorf(ErrorKindUnavailable, ctx.Err().Error())
		},
	})

	start := time.Now()
	out := r.Dispatch(context.Background(), "slow", nil)
	if time.Since(start) > time.Second {
		t.Fatal("dispatch did not respect timeout")
	}
	if !out.IsError {
		t.Errorf("out = %+v, want error", out)
	}
}
