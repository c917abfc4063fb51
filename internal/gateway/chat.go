package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/flemzord/chatd/internal/agent"
	"github.com/flemzord/chatd/internal/engine"
	"github.com/flemzord/chatd/internal/provider"
	"github.com/flemzord/chatd/internal/security"
)

const maxChatBody = 64 << 10 // 64 KiB

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	UserMessage    string `json:"user_message"`

	// Message is accepted as an alias for user_message.
	Message string `json:"message,omitempty"`
}

// text returns the user text, preferring the canonical field.
func (r *ChatRequest) text() string {
	if r.UserMessage != "" {
		return r.UserMessage
	}
	return r.Message
}

// ChatResponse is the JSON body for non-streaming POST /chat responses.
type ChatResponse struct {
	ConversationID string              `json:"conversation_id"`
	Answer         string              `json:"answer"`
	ToolCalls      []string            `json:"tool_calls"`
	LatencyMS      int64               `json:"latency_ms"`
	Usage          provider.TokenUsage `json:"usage"`
	CostUSD        *float64            `json:"cost_usd,omitempty"`
	FactsUsed      []string            `json:"ltm_facts_used,omitempty"`
}

// handleChat serves POST /chat. The answer streams as plain text chunks
// unless ?stream=false, which buffers and returns JSON.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req ChatRequest
		body := http.MaxBytesReader(w, r.Body, maxChatBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.text()) == "" {
			http.Error(w, "user_message is required", http.StatusBadRequest)
			return
		}
		if req.ConversationID == "" {
			req.ConversationID = "default"
		}

		events, err := g.engine.Handle(r.Context(), engine.Request{
			ConversationID: req.ConversationID,
			ClientKey:      clientKey(r),
			UserMessage:    req.text(),
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}

		if r.URL.Query().Get("stream") == "false" {
			g.respondBuffered(w, req.ConversationID, start, events)
			return
		}
		g.respondStreaming(w, events)
	}
}

// respondStreaming writes text deltas as they arrive, flushing each one.
func (g *Gateway) respondStreaming(w http.ResponseWriter, events <-chan engine.Event) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	for ev := range events {
		switch ev.Type {
		case agent.EventText:
			_, _ = w.Write([]byte(ev.Delta))
			if flusher != nil {
				flusher.Flush()
			}
		case agent.EventError:
			// Headers are already sent, so the failure is reported as a
			// trailing marker line in the body.
			g.logger.Warn("chat stream aborted", "error", ev.Err)
			_, _ = io.WriteString(w, "\n[error="+publicErrorMessage(ev.Err)+"]")
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
	}
}

// respondBuffered drains the event stream and returns one JSON document.
func (g *Gateway) respondBuffered(w http.ResponseWriter, conversationID string, start time.Time, events <-chan engine.Event) {
	var (
		final     *agent.Response
		toolCalls []string
		factsUsed []string
		costUSD   *float64
		evErr     error
	)
	for ev := range events {
		switch ev.Type {
		case agent.EventToolEnd:
			if ev.ToolCall != nil {
				toolCalls = append(toolCalls, ev.ToolCall.Name)
			}
		case agent.EventDone:
			final = ev.Final
			factsUsed = ev.FactsUsed
			costUSD = ev.CostUSD
		case agent.EventError:
			evErr = ev.Err
		}
	}

	if final == nil {
		writeEngineError(w, evErr)
		return
	}

	if toolCalls == nil {
		toolCalls = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ChatResponse{
		ConversationID: conversationID,
		Answer:         final.Content,
		ToolCalls:      toolCalls,
		LatencyMS:      time.Since(start).Milliseconds(),
		Usage:          final.Usage,
		CostUSD:        costUSD,
		FactsUsed:      factsUsed,
	})
}

// writeEngineError maps engine sentinel errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, security.ErrRateLimited):
		http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
	case errors.Is(err, engine.ErrConversationBusy):
		http.Error(w, "conversation has a request in flight", http.StatusConflict)
	case errors.Is(err, agent.ErrMaxRoundsReached):
		http.Error(w, "unable to complete the request", http.StatusInternalServerError)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// clientKey identifies the caller for rate limiting. The first
// X-Forwarded-For hop wins when present.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
