package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/flemzord/chatd/internal/provider"
)

// defaultCallTimeout bounds a single tool execution when no timeout is
// configured. Tools that hang must not stall the whole model round.
const defaultCallTimeout = 15 * time.Second

// Registry holds registered tools and dispatches model tool calls to them.
// It is instance-based (not global) for better testability.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]Tool),
		timeout: defaultCallTimeout,
		logger:  logger,
	}
}

// SetTimeout overrides the per-call execution timeout.
func (r *Registry) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Register adds a tool to the registry.
// It returns ErrEmptyToolName for unnamed tools and ErrDuplicateTool if a
// tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	return nil
}

// Get returns the tool with the given name, or ErrToolNotFound.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Definitions returns the provider-facing definitions of all registered
// tools, sorted by name so the model always sees a stable ordering.
func (r *Registry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, provider.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	slices.SortFunc(defs, func(a, b provider.ToolDefinition) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return defs
}

// Dispatch looks up and executes a tool call from the model. An unknown
// tool name or a panicking tool produces an error Output rather than an
// error return, so the failure flows back to the model as a tool result.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) Output {
	t, err := r.Get(name)
	if err != nil {
		return Errorf(ErrorKindNotFound, fmt.Sprintf("unknown tool: %s", name))
	}

	r.mu.RLock()
	timeout := r.timeout
	r.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return r.safeExecute(callCtx, t, args)
}

// safeExecute runs a tool and converts panics into error outputs.
func (r *Registry) safeExecute(ctx context.Context, t Tool, args json.RawMessage) (out Output) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				slog.String("tool", t.Name()),
				slog.Any("panic", rec))
			out = Errorf(ErrorKindUnavailable, fmt.Sprintf("tool %s failed", t.Name()))
		}
	}()
	return t.Execute(ctx, args)
}
