package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/chatd/internal/agent"
	"github.com/flemzord/chatd/internal/engine"
	"github.com/flemzord/chatd/internal/security"
)

// WSEvent is one frame sent to a WebSocket client.
type WSEvent struct {
	Type      string   `json:"type"` // delta, tool, done, error
	Delta     string   `json:"delta,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Error     string   `json:"error,omitempty"`
	LatencyMS int64    `json:"latency_ms,omitempty"`
	CostUSD   *float64 `json:"cost_usd,omitempty"`
	FactsUsed []string `json:"ltm_facts_used,omitempty"`
}

// handleWSChat serves GET /ws/chat. Each inbound text frame is a
// ChatRequest; the reply is a sequence of WSEvent frames ending in
// "done" or "error". Requests on one connection run sequentially.
func (g *Gateway) handleWSChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		key := clientKey(r)
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}

			var req ChatRequest
			if err := json.Unmarshal(data, &req); err != nil {
				g.sendWSEvent(ctx, conn, WSEvent{Type: "error", Error: "invalid JSON frame"})
				continue
			}
			if req.text() == "" {
				g.sendWSEvent(ctx, conn, WSEvent{Type: "error", Error: "user_message is required"})
				continue
			}
			if req.ConversationID == "" {
				req.ConversationID = "default"
			}

			g.serveWSRequest(ctx, conn, key, req)
		}
	}
}

// serveWSRequest runs one chat request and forwards its events.
func (g *Gateway) serveWSRequest(ctx context.Context, conn *websocket.Conn, key string, req ChatRequest) {
	start := time.Now()

	events, err := g.engine.Handle(ctx, engine.Request{
		ConversationID: req.ConversationID,
		ClientKey:      key,
		UserMessage:    req.text(),
	})
	if err != nil {
		g.sendWSEvent(ctx, conn, WSEvent{Type: "error", Error: publicErrorMessage(err)})
		return
	}

	for ev := range events {
		switch ev.Type {
		case agent.EventText:
			g.sendWSEvent(ctx, conn, WSEvent{Type: "delta", Delta: ev.Delta})
		case agent.EventToolStart:
			if ev.ToolCall != nil {
				g.sendWSEvent(ctx, conn, WSEvent{Type: "tool", Tool: ev.ToolCall.Name})
			}
		case agent.EventDone:
			if ev.Final != nil {
				g.sendWSEvent(ctx, conn, WSEvent{
					Type:      "done",
					Answer:    ev.Final.Content,
					LatencyMS: time.Since(start).Milliseconds(),
					CostUSD:   ev.CostUSD,
					FactsUsed: ev.FactsUsed,
				})
			}
		case agent.EventError:
			g.sendWSEvent(ctx, conn, WSEvent{Type: "error", Error: publicErrorMessage(ev.Err)})
		}
	}
}

func (g *Gateway) sendWSEvent(ctx context.Context, conn *websocket.Conn, ev WSEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		g.logger.Error("marshal ws event failed", "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		g.logger.Warn("write ws event failed", "error", err)
	}
}

// publicErrorMessage keeps internal error detail off the wire. It is
// shared by the websocket error frames and the plain-text stream's
// trailing error marker.
func publicErrorMessage(err error) string {
	switch {
	case errors.Is(err, security.ErrRateLimited):
		return "rate limit exceeded, try again later"
	case errors.Is(err, engine.ErrConversationBusy):
		return "conversation has a request in flight"
	case errors.Is(err, agent.ErrMaxRoundsReached):
		return "unable to complete the request"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "internal error"
	}
}
