package gateway

import "time"

// Config holds the HTTP listener settings.
type Config struct {
	Bind string `yaml:"bind"`

	// AuthToken protects /status and /metrics. Empty leaves them open.
	AuthToken string `yaml:"auth_token"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		// Streaming responses stay open for the duration of a request.
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
}
