package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/flemzord/chatd/internal/provider"
)

// mapHTTPError maps an HTTP status code and response body to a provider
// sentinel error. Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	// Try to extract the error message from the response body.
	var msg string
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	} else {
		msg = string(body)
	}

	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: %s", provider.ErrBackendRateLimit, msg)
	case statusCode == 401 || statusCode == 403:
		return fmt.Errorf("%w: %s", provider.ErrAuth, msg)
	case statusCode >= 500:
		return fmt.Errorf("%w: %s", provider.ErrBackend, msg)
	default:
		return fmt.Errorf("openai: HTTP %d: %s", statusCode, msg)
	}
}

// mapConnectionError maps network-level errors to provider sentinel errors.
// Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrBackend, err)
	}
	return fmt.Errorf("openai: %w", err)
}
