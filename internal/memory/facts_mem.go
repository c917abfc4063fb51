package memory

import (
	"context"
	"sync"
	"time"
)

// MemFactStore is an in-memory FactStore, used when long-term memory is
// disabled or in tests. Safe for concurrent use.
type MemFactStore struct {
	mu      sync.RWMutex
	records []FactRecord
	now     func() time.Time
}

// Compile-time check.
var _ FactStore = (*MemFactStore)(nil)

// NewMemFactStore creates an empty in-memory fact store.
func NewMemFactStore() *MemFactStore {
	return &MemFactStore{now: time.Now}
}

// Append records a fact in the log.
func (s *MemFactStore) Append(_ context.Context, conversationID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, FactRecord{
		ConversationID: conversationID,
		Key:            key,
		Value:          value,
		CreatedAt:      s.now().Unix(),
	})
	return nil
}

// Read resolves the latest value per key for the conversation.
func (s *MemFactStore) Read(_ context.Context, conversationID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := make(map[string]string)
	for _, r := range s.records {
		if r.ConversationID == conversationID {
			facts[r.Key] = r.Value
		}
	}
	return facts, nil
}

// Log returns the full append-only history for the conversation.
func (s *MemFactStore) Log(_ context.Context, conversationID string) ([]FactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []FactRecord
	for _, r := range s.records {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemFactStore) Close() error { return nil }
