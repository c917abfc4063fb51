package agent

import "time"

// Config bounds a single loop run.
type Config struct {
	// MaxRounds caps the number of backend round-trips.
	MaxRounds int

	// Timeout bounds the whole run, tool executions included.
	Timeout time.Duration
}

const (
	defaultMaxRounds = 5
	defaultTimeout   = 2 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = defaultMaxRounds
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
