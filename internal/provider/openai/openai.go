// Package openai implements the provider.Provider interface against any
// OpenAI-compatible chat-completions endpoint, with SSE streaming and
// function calling.
package openai

import (
	"net/http"
	"time"

	"github.com/flemzord/chatd/internal/provider"
)

// Config holds the client configuration. All fields except APIKey and Model
// have defaults.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int

	// Timeout bounds non-streaming requests. Streaming requests are
	// cancelled via context instead (a hard client timeout would kill
	// long-lived SSE bodies).
	Timeout time.Duration
}

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
)

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Client talks to an OpenAI-compatible chat-completions API.
type Client struct {
	config       Config
	client       *http.Client
	streamClient *http.Client
}

// Compile-time interface guard.
var _ provider.Provider = (*Client)(nil)

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		config:       cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.config.Model
}
