// Package conversation provides PostgreSQL-backed storage for promoted
// conversations. A conversation is created when both participants of an
// ephemeral room agree to connect; from then on messages are written here
// instead of the room's in-memory history.
package conversation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Message is one persisted message, ordered by insertion.
type Message struct {
	SenderID string
	Text     string
}

// Store manages conversations and their messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new conversation store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new conversation with the given participants and returns
// its id. The insert is transactional so a half-created conversation is
// never visible.
func (s *Store) Create(ctx context.Context, participantIDs []string) (string, error) {
	if len(participantIDs) < 2 {
		return "", fmt.Errorf("conversation: need at least 2 participants, got %d", len(participantIDs))
	}

	convID := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("conversation: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id) VALUES ($1)`, convID); err != nil {
		return "", fmt.Errorf("conversation: insert: %w", err)
	}

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			convID, uid); err != nil {
			return "", fmt.Errorf("conversation: insert participant %s: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("conversation: commit: %w", err)
	}
	return convID, nil
}

// AppendMessage persists a single message to a conversation.
func (s *Store) AppendMessage(ctx context.Context, convID, senderID, text string) error {
	const query = `
		INSERT INTO messages (conversation_id, sender_id, content)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, convID, senderID, text); err != nil {
		return fmt.Errorf("conversation: append message: %w", err)
	}
	return nil
}

// AppendMessages bulk-writes an ordered batch of messages to a conversation,
// preserving the input order. Used when promoting a room to copy the
// buffered ephemeral history into durable storage.
func (s *Store) AppendMessages(ctx context.Context, convID string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("conversation: prepare: %w", err)
	}
	defer stmt.Close()

	// Inserted one at a time inside the transaction so the BIGSERIAL ids
	// preserve the original ordering.
	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx, convID, m.SenderID, m.Text); err != nil {
			return fmt.Errorf("conversation: append batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: commit batch: %w", err)
	}
	return nil
}
