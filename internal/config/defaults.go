package config

import "time"

// Defaults applied to zero-valued fields after parsing.
const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultModel          = "gpt-4o-mini"
	defaultTemperature    = 0.4
	defaultMaxTokens      = 1024
	defaultTimeout        = 60 * time.Second
	defaultWindow         = 12
	defaultRateRPM        = 60
	defaultMaxToolRounds  = 5
	defaultToolTimeout    = 15 * time.Second
	defaultRequestTimeout = 2 * time.Minute
	defaultKBPath         = "kb.md"
	defaultBind           = "127.0.0.1:8080"
	defaultReadTimeout    = 30 * time.Second
	defaultWriteTimeout   = 5 * time.Minute
	defaultIdleTimeout    = 2 * time.Minute
	defaultLogLevel       = "info"
)

func (c *Config) applyDefaults() {
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultBaseURL
	}
	if c.Provider.Model == "" {
		c.Provider.Model = defaultModel
	}
	if c.Provider.Temperature == nil {
		t := defaultTemperature
		c.Provider.Temperature = &t
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = defaultMaxTokens
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = defaultTimeout
	}
	if c.Memory.Window == 0 {
		c.Memory.Window = defaultWindow
	}
	if c.Limits.RateRPM == 0 {
		c.Limits.RateRPM = defaultRateRPM
	}
	if c.Limits.MaxToolRounds == 0 {
		c.Limits.MaxToolRounds = defaultMaxToolRounds
	}
	if c.Limits.ToolTimeout == 0 {
		c.Limits.ToolTimeout = defaultToolTimeout
	}
	if c.Limits.RequestTimeout == 0 {
		c.Limits.RequestTimeout = defaultRequestTimeout
	}
	if c.KB.Path == "" {
		c.KB.Path = defaultKBPath
	}
	if c.Gateway.Bind == "" {
		c.Gateway.Bind = defaultBind
	}
	if c.Gateway.ReadTimeout == 0 {
		c.Gateway.ReadTimeout = defaultReadTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = defaultWriteTimeout
	}
	if c.Gateway.IdleTimeout == 0 {
		c.Gateway.IdleTimeout = defaultIdleTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
