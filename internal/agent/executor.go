package agent

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/chatd/internal/provider"
	"github.com/flemzord/chatd/internal/tool"
)

// ToolExecutor runs a batch of model tool calls against the registry.
type ToolExecutor struct {
	registry *tool.Registry
}

// NewToolExecutor creates a ToolExecutor over the given registry.
func NewToolExecutor(registry *tool.Registry) *ToolExecutor {
	return &ToolExecutor{registry: registry}
}

// Execute runs all tool calls in parallel and returns results in input order.
func (e *ToolExecutor) Execute(ctx context.Context, calls []provider.ToolCall) []ToolCallRecord {
	results := make([]ToolCallRecord, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc provider.ToolCall) {
			defer wg.Done()
			results[idx] = e.executeSingle(ctx, tc)
		}(i, call)
	}

	wg.Wait()
	return results
}

func (e *ToolExecutor) executeSingle(ctx context.Context, tc provider.ToolCall) ToolCallRecord {
	start := time.Now()
	out := e.registry.Dispatch(ctx, tc.Name, tc.Arguments)
	return ToolCallRecord{
		ID:        tc.ID,
		Name:      tc.Name,
		Arguments: tc.Arguments,
		Output:    out,
		Duration:  time.Since(start),
	}
}
