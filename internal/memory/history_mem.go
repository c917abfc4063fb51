package memory

import (
	"sync"

	"github.com/flemzord/chatd/internal/provider"
)

// WindowHistory is an in-memory HistoryStore with a fixed per-conversation
// window. Safe for concurrent use.
type WindowHistory struct {
	mu     sync.RWMutex
	window int
	convos map[string][]provider.LLMMessage
}

// Compile-time check.
var _ HistoryStore = (*WindowHistory)(nil)

// NewWindowHistory creates a history store keeping the last window messages
// per conversation. window <= 0 falls back to DefaultWindow.
func NewWindowHistory(window int) *WindowHistory {
	if window <= 0 {
		window = DefaultWindow
	}
	return &WindowHistory{
		window: window,
		convos: make(map[string][]provider.LLMMessage),
	}
}

// Append adds msgs to the conversation and trims to the window.
func (h *WindowHistory) Append(conversationID string, msgs ...provider.LLMMessage) {
	if len(msgs) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	hist := append(h.convos[conversationID], msgs...)
	if len(hist) > h.window {
		hist = hist[len(hist)-h.window:]
	}
	h.convos[conversationID] = hist
}

// Recent returns a copy of the conversation window, oldest first.
func (h *WindowHistory) Recent(conversationID string) []provider.LLMMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist := h.convos[conversationID]
	out := make([]provider.LLMMessage, len(hist))
	copy(out, hist)
	return out
}

// Len returns the number of messages currently stored for the conversation.
func (h *WindowHistory) Len(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.convos[conversationID])
}
