// Package tool defines the tool interface and registry for chatd.
// Tools are the only way the model reaches outside the conversation:
// every external action goes through a registered tool with a bounded
// execution timeout.
package tool

import (
	"context"
	"encoding/json"
)

// ErrorKind classifies a failed tool execution for the model's benefit.
// The kind is reported in the tool result so the model can decide whether
// to retry with different arguments or tell the user.
type ErrorKind string

// ErrorKind values for tool outputs.
const (
	ErrorKindNone             ErrorKind = ""
	ErrorKindInvalidArguments ErrorKind = "invalid_arguments"
	ErrorKindNotFound         ErrorKind = "not_found"
	ErrorKindUnavailable      ErrorKind = "unavailable"
)

// Tool is the interface all chatd tools implement.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool with the given arguments. Execution failures
	// are reported through Output.IsError rather than an error return so
	// they can be fed back to the model as a tool result.
	Execute(ctx context.Context, args json.RawMessage) Output
}

// Output is the result of a tool execution.
type Output struct {
	// Content is the output text from the tool, usually JSON.
	Content string

	// IsError indicates whether the output represents an error condition.
	IsError bool

	// Kind classifies the error when IsError is set.
	Kind ErrorKind
}

// Errorf builds an error Output with the given kind and message.
func Errorf(kind ErrorKind, msg string) Output {
	return Output{Content: msg, IsError: true, Kind: kind}
}
