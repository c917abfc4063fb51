package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrBackend indicates the completion backend returned a malformed
	// response or is unreachable. Fatal for the request, never retried.
	ErrBackend = errors.New("completion backend failed")

	// ErrBackendRateLimit indicates the backend itself returned a rate
	// limit response. Distinct from the engine's per-client limiter.
	ErrBackendRateLimit = errors.New("completion backend rate limited")

	// ErrAuth indicates the backend rejected the configured credentials.
	ErrAuth = errors.New("completion backend authentication failed")
)
