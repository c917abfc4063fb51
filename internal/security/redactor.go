// Package security provides secret redaction and per-client rate limiting
// for the chat daemon.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a redaction placeholder.
// It supports both regex pattern matching (for known API key formats) and
// literal value matching (for credentials loaded from config at startup).
// All methods are safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with default patterns for common
// API key formats (OpenAI, Anthropic, GitHub, AWS, Slack).
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s
// with RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}

	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}

	return s
}

// DefaultPatterns returns compiled regex patterns for common API key formats.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// OpenAI: sk-... (at least 20 chars after prefix)
		regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
		// Anthropic: sk-ant-... (at least 20 chars after prefix)
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`),
		// GitHub: ghp_, gho_, ghs_, github_pat_
		regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
		// AWS Access Key ID
		regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		// Slack bot token
		regexp.MustCompile(`xoxb-[0-9]+-[a-zA-Z0-9]+`),
		// Slack user token
		regexp.MustCompile(`xoxp-[0-9]+-[a-zA-Z0-9]+`),
	}
}
