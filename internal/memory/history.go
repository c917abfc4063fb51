// Package memory holds conversation state: the bounded short-term message
// window and the append-only long-term fact log.
package memory

import (
	"context"

	"github.com/flemzord/chatd/internal/provider"
)

// DefaultWindow is the number of recent messages kept per conversation
// when no window is configured.
const DefaultWindow = 12

// HistoryStore keeps the short-term message window for each conversation.
// Only the most recent W messages survive; older ones are dropped FIFO.
type HistoryStore interface {
	// Append adds messages to the conversation, evicting the oldest
	// entries once the window is full.
	Append(conversationID string, msgs ...provider.LLMMessage)

	// Recent returns the current window, oldest first.
	Recent(conversationID string) []provider.LLMMessage

	// Len returns the number of messages currently in the window.
	Len(conversationID string) int
}

// FactRecord is one entry of the append-only fact log.
type FactRecord struct {
	ConversationID string
	Key            string
	Value          string
	CreatedAt      int64
}

// FactStore is the long-term fact log. Appends never overwrite; reads
// resolve each key to its most recently appended value.
type FactStore interface {
	// Append records a fact. The previous value for the same key is
	// retained in the log but shadowed on Read.
	Append(ctx context.Context, conversationID, key, value string) error

	// Read returns the effective facts for a conversation, latest value
	// per key.
	Read(ctx context.Context, conversationID string) (map[string]string, error)

	// Log returns the full append-only history for a conversation,
	// oldest first.
	Log(ctx context.Context, conversationID string) ([]FactRecord, error)

	// Close releases underlying resources.
	Close() error
}
