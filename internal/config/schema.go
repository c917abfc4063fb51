// Package config handles YAML configuration loading, environment variable
// expansion, defaulting, and validation for chatd.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Memory    MemoryConfig    `yaml:"memory"`
	Limits    LimitsConfig    `yaml:"limits"`
	KB        KBConfig        `yaml:"kb"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pricing   PricingConfig   `yaml:"pricing"`
}

// ProviderConfig selects and tunes the model backend.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature,omitempty"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MemoryConfig controls conversation history and long-term memory.
type MemoryConfig struct {
	// Window is the number of recent turns kept per conversation.
	Window   int            `yaml:"window"`
	LongTerm LongTermConfig `yaml:"long_term"`
}

// LongTermConfig controls the durable fact store.
type LongTermConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LimitsConfig bounds request processing.
type LimitsConfig struct {
	// RateRPM is the per-client requests-per-minute budget. Zero disables.
	RateRPM        int           `yaml:"rate_rpm"`
	MaxToolRounds  int           `yaml:"max_tool_rounds"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// KBConfig locates the knowledge base file.
type KBConfig struct {
	Path string `yaml:"path"`

	// ReloadSchedule is a 5-field cron expression. Empty disables reloads.
	ReloadSchedule string `yaml:"reload_schedule"`
}

// GatewayConfig controls the HTTP listener.
type GatewayConfig struct {
	Bind string `yaml:"bind"`

	// AuthToken protects /status and /metrics. Empty leaves them open.
	AuthToken string `yaml:"auth_token"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// MetricsConfig locates the JSONL request log. Empty disables it.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// PricingConfig sets USD prices per million tokens for cost reporting.
// Cost is only reported when at least one price is set.
type PricingConfig struct {
	PromptPerM     float64 `yaml:"prompt_per_m"`
	CompletionPerM float64 `yaml:"completion_per_m"`
}
