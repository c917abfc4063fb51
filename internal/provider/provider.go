// Package provider defines the interface to the chat-completions backend
// and the wire types shared by the agent loop and the HTTP client.
package provider

import "context"

// Provider is the interface for communicating with a completion backend.
// The concrete implementation lives in the openai subpackage.
type Provider interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream sends a completion request and returns a channel of chunks.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via StreamChunk.Err.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName returns the identifier of the underlying model.
	ModelName() string
}
