package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus instruments for the request path.
type Collectors struct {
	requests  *prometheus.CounterVec
	duration  prometheus.Histogram
	toolCalls *prometheus.CounterVec
	tokens    *prometheus.CounterVec
}

// NewCollectors creates and registers the collectors on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatd_requests_total",
			Help: "Chat requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatd_request_duration_seconds",
			Help:    "End-to-end chat request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatd_tool_calls_total",
			Help: "Tool executions by tool name.",
		}, []string{"tool"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatd_tokens_total",
			Help: "Token consumption by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(c.requests, c.duration, c.toolCalls, c.tokens)
	return c
}

// Observe updates the collectors from one request record.
func (c *Collectors) Observe(rec Record) {
	c.requests.WithLabelValues(string(rec.Outcome)).Inc()
	c.duration.Observe(time.Duration(rec.LatencyMS * int64(time.Millisecond)).Seconds())
	for _, tool := range rec.ToolCalls {
		c.toolCalls.WithLabelValues(tool).Inc()
	}
	if rec.Usage.PromptTokens > 0 {
		c.tokens.WithLabelValues("prompt").Add(float64(rec.Usage.PromptTokens))
	}
	if rec.Usage.CompletionTokens > 0 {
		c.tokens.WithLabelValues("completion").Add(float64(rec.Usage.CompletionTokens))
	}
}
