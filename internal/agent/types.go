// Package agent implements the model/tool loop that turns a prepared
// conversation into a final answer through iterative backend calls and
// tool executions.
package agent

import (
	"encoding/json"
	"time"

	"github.com/flemzord/chatd/internal/provider"
	"github.com/flemzord/chatd/internal/tool"
)

// StopReason describes why the loop terminated.
type StopReason string

// StopReason constants for loop termination.
const (
	StopReasonComplete      StopReason = "complete"
	StopReasonMaxRounds     StopReason = "max_rounds"
	StopReasonPolicyRefused StopReason = "policy_refused"
	StopReasonTimeout       StopReason = "timeout"
	StopReasonError         StopReason = "error"
	StopReasonCancelled     StopReason = "cancelled"
)

// ToolCallRecord tracks one tool invocation during the loop.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Output    tool.Output
	Duration  time.Duration
}

// EventType identifies the kind of streaming event.
type EventType string

// EventType constants for streaming events.
const (
	EventText      EventType = "text"
	EventToolStart EventType = "tool_start"
	EventToolEnd   EventType = "tool_end"
	EventUsage     EventType = "usage"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is a single event emitted during a streaming loop run.
type Event struct {
	Type     EventType
	Delta    string
	ToolCall *ToolCallRecord
	Usage    *provider.TokenUsage
	// Final is set on EventDone with the aggregated loop response.
	Final *Response
	Err   error
}

// Request is the input to the loop.
type Request struct {
	Messages     []provider.LLMMessage
	SystemPrompt string
	Tools        []provider.ToolDefinition

	// RequireTool, when non-empty, names a tool that must execute before
	// the loop may produce a final answer. If the model declines twice
	// (once freely, once with the call forced) the loop returns a policy
	// refusal instead of an unverified answer.
	RequireTool string
}

// Response is the output of the loop.
type Response struct {
	Content    string
	ToolCalls  []ToolCallRecord
	Usage      provider.TokenUsage
	Rounds     int
	StopReason StopReason
}
