package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Model         string `json:"model,omitempty"`
	KBSections    int    `json:"kb_sections"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
		}
		if g.status != nil {
			resp.Model = g.status.Model()
			resp.KBSections = g.status.KBSections()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
