package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/casedesk/casedesk/internal/conversation"
	"github.com/casedesk/casedesk/internal/observability"
)

// Store persists conversations in the conversation_entry table created by
// the embedded migrations.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// ForSession scopes the store to one conversation.
func (s *Store) ForSession(sessionID string) conversation.History {
	return &sessionHistory{db: s.db, sessionID: strings.TrimSpace(sessionID)}
}

type sessionHistory struct {
	db        *sql.DB
	sessionID string
}

func (h *sessionHistory) Append(ctx context.Context, question, answer string) error {
	if h.sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
INSERT INTO conversation_entry (session_id, speaker, text)
VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, h.sessionID, string(conversation.SpeakerUser), question); err != nil {
		return fmt.Errorf("insert user entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, h.sessionID, string(conversation.SpeakerBot), answer); err != nil {
		return fmt.Errorf("insert bot entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversation entries: %w", err)
	}
	observability.AddConversationEntries(2)
	return nil
}

func (h *sessionHistory) Entries(ctx context.Context) ([]conversation.Entry, error) {
	query := `
SELECT speaker, text, created_at
FROM conversation_entry
WHERE session_id = $1
ORDER BY entry_id ASC`
	rows, err := h.db.QueryContext(ctx, query, h.sessionID)
	if err != nil {
		return nil, fmt.Errorf("list conversation entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]conversation.Entry, 0)
	for rows.Next() {
		var (
			entry   conversation.Entry
			speaker string
		)
		if err := rows.Scan(&speaker, &entry.Text, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation entry: %w", err)
		}
		entry.Speaker = conversation.Speaker(speaker)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation entries: %w", err)
	}
	return entries, nil
}
