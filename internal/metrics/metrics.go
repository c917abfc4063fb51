// Package metrics records one structured record per request, to a JSONL
// file and to Prometheus collectors. Recording is best-effort: a failed
// write is logged and swallowed, never surfaced to the request path.
package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Outcome classifies how a request ended. Exactly one record is emitted
// per request regardless of outcome.
type Outcome string

// Outcome values.
const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeRefused     Outcome = "refused"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeBusy        Outcome = "busy"
	OutcomeFailed      Outcome = "failed"
	OutcomeCancelled   Outcome = "cancelled"
)

// Usage mirrors the backend token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Record is one per-request metrics entry.
type Record struct {
	Timestamp      time.Time `json:"ts"`
	ConversationID string    `json:"conversation_id"`
	Outcome        Outcome   `json:"outcome"`
	LatencyMS      int64     `json:"latency_ms"`
	ToolCalls      []string  `json:"tool_calls"`
	Usage          Usage     `json:"usage"`
	CostUSD        *float64  `json:"cost_usd,omitempty"`
	FactsUsed      []string  `json:"ltm_facts_used,omitempty"`
}

// Sink appends records to a JSONL file. Safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
	now    func() time.Time
}

// OpenSink opens (or creates) the JSONL file at path in append mode,
// creating parent directories as needed.
func OpenSink(path string, logger *slog.Logger) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("metrics: create directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("metrics: open %s: %w", path, err)
	}
	return &Sink{file: f, logger: logger, now: time.Now}, nil
}

// Write appends one record. A zero timestamp is filled in; a nil tool
// call list is normalised to empty so every line has the same shape.
// Failures are logged and swallowed.
func (s *Sink) Write(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	if rec.ToolCalls == nil {
		rec.ToolCalls = []string{}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("metrics record marshal failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		s.logger.Error("metrics record write failed", slog.Any("error", err))
	}
}

// Close closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
