package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/chatd/internal/provider"
)

// maxResponseSize is the maximum response body size (10 MB).
// Protects against OOM from malformed or huge responses.
const maxResponseSize = 10 * 1024 * 1024

// streamChannelBuffer is the buffer size for the streaming channel.
const streamChannelBuffer = 64

// buildChatRequest creates an API chat request from a provider
// CompletionRequest, merging request-level overrides with config defaults.
func (c *Client) buildChatRequest(req provider.CompletionRequest, stream bool) chatRequest {
	cr := chatRequest{
		Model:    c.config.Model,
		Messages: toMessages(req.Messages),
		Stream:   stream,
	}

	if len(req.Tools) > 0 {
		cr.Tools = toTools(req.Tools)
		cr.ToolChoice = toToolChoice(req.ToolChoice)
	}

	switch {
	case req.MaxTokens > 0:
		cr.MaxTokens = req.MaxTokens
	case c.config.MaxTokens > 0:
		cr.MaxTokens = c.config.MaxTokens
	}

	switch {
	case req.Temperature != nil:
		cr.Temperature = req.Temperature
	case c.config.Temperature != nil:
		cr.Temperature = c.config.Temperature
	}

	if stream {
		cr.StreamOptions = &streamOpts{IncludeUsage: true}
	}

	return cr
}

// newHTTPRequest creates an authenticated HTTP request for the API.
func (c *Client) newHTTPRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := c.config.BaseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	return httpReq, nil
}

// Complete sends a non-streaming completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	cr := c.buildChatRequest(req, false)

	httpReq, err := c.newHTTPRequest(ctx, "/chat/completions", cr)
	if err != nil {
		return provider.CompletionResponse{}, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return provider.CompletionResponse{}, mapConnectionError(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("openai: read response: %w", err)
	}

	if httpErr := mapHTTPError(httpResp.StatusCode, body); httpErr != nil {
		return provider.CompletionResponse{}, httpErr
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("%w: unmarshal response: %w", provider.ErrBackend, err)
	}

	return fromResponse(&resp), nil
}

// Stream sends a streaming completion request and returns a channel of chunks.
// Initial connection errors are returned directly. Mid-stream errors are
// delivered via StreamChunk.Err.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	cr := c.buildChatRequest(req, true)

	httpReq, err := c.newHTTPRequest(ctx, "/chat/completions", cr)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}

	// Check for HTTP errors before starting the stream.
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer func() { _ = httpResp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		return nil, mapHTTPError(httpResp.StatusCode, body)
	}

	ch := make(chan provider.StreamChunk, streamChannelBuffer)
	go readStream(ctx, httpResp.Body, ch)

	return ch, nil
}
