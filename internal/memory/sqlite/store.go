package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flemzord/chatd/internal/memory"
)

// FactLog is a durable, append-only memory.FactStore. Rows are never
// updated or deleted; Read resolves each key to its latest entry.
type FactLog struct {
	db *sql.DB
}

// Compile-time check.
var _ memory.FactStore = (*FactLog)(nil)

// Append records a fact in the log.
func (l *FactLog) Append(ctx context.Context, conversationID, key, value string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO fact_log (conversation_id, key, value, created_at)
		VALUES (?, ?, ?, ?)`,
		conversationID, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append fact: %w", err)
	}
	return nil
}

// Read resolves the latest value per key for the conversation.
func (l *FactLog) Read(ctx context.Context, conversationID string) (map[string]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT key, value
		FROM fact_log
		WHERE conversation_id = ?
		ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	facts := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scan fact: %w", err)
		}
		facts[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read facts: %w", err)
	}
	return facts, nil
}

// Log returns the full append-only history for the conversation,
// oldest first.
func (l *FactLog) Log(ctx context.Context, conversationID string) ([]memory.FactRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT conversation_id, key, value, created_at
		FROM fact_log
		WHERE conversation_id = ?
		ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read fact log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []memory.FactRecord
	for rows.Next() {
		var r memory.FactRecord
		if err := rows.Scan(&r.ConversationID, &r.Key, &r.Value, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan fact record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read fact log: %w", err)
	}
	return records, nil
}

// Close closes the underlying database.
func (l *FactLog) Close() error {
	return l.db.Close()
}
