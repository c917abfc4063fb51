package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks the structural validity of a Config. All problems are
// reported at once via errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("config: provider.api_key is required"))
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: provider.base_url %q is not a valid URL", c.Provider.BaseURL))
	}
	if c.Provider.Temperature != nil {
		if t := *c.Provider.Temperature; t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("config: provider.temperature %v out of range [0, 2]", t))
		}
	}

	if c.Memory.Window < 0 {
		errs = append(errs, fmt.Errorf("config: memory.window must not be negative, got %d", c.Memory.Window))
	}
	if c.Memory.LongTerm.Enabled && c.Memory.LongTerm.Path == "" {
		errs = append(errs, errors.New("config: memory.long_term.path is required when long-term memory is enabled"))
	}

	if c.Limits.RateRPM < 0 {
		errs = append(errs, fmt.Errorf("config: limits.rate_rpm must not be negative, got %d", c.Limits.RateRPM))
	}
	if c.Limits.MaxToolRounds < 1 {
		errs = append(errs, fmt.Errorf("config: limits.max_tool_rounds must be at least 1, got %d", c.Limits.MaxToolRounds))
	}

	if _, _, err := net.SplitHostPort(c.Gateway.Bind); err != nil {
		errs = append(errs, fmt.Errorf("config: gateway.bind %q is not host:port: %w", c.Gateway.Bind, err))
	}

	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		errs = append(errs, fmt.Errorf("config: logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if c.Pricing.PromptPerM < 0 || c.Pricing.CompletionPerM < 0 {
		errs = append(errs, errors.New("config: pricing values must not be negative"))
	}

	return errors.Join(errs...)
}
