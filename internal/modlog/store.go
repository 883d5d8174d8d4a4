// Package modlog provides PostgreSQL-backed storage for moderation logs.
// Each log captures the two participants of a chat, the full transcript
// exchanged (for moderator review), and a synthesized description.
package modlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Log types, matching the CHECK constraint on the moderation_logs table.
const (
	TypeChatLog    = "CHAT_LOG"
	TypeUserReport = "USER_REPORT"
)

// validTypes is the set of allowed log type values.
var validTypes = map[string]bool{
	TypeChatLog:    true,
	TypeUserReport: true,
}

// TranscriptEntry is one message in the transcript attached to a log.
// Sender is the display alias, not the account id.
type TranscriptEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Log represents a single moderation log to be persisted.
type Log struct {
	ReporterID string
	ReportedID string
	Type       string
	Transcript []TranscriptEntry
	Reason     string
}

// Store manages moderation logs in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new moderation log store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a moderation log into PostgreSQL. The transcript is
// marshalled to JSONB. The log type is validated against the allowed set
// before insertion.
func (s *Store) Create(ctx context.Context, entry *Log) error {
	if !validTypes[entry.Type] {
		return fmt.Errorf("modlog: invalid log type %q", entry.Type)
	}

	var transcriptJSON []byte
	if len(entry.Transcript) > 0 {
		var err error
		transcriptJSON, err = json.Marshal(entry.Transcript)
		if err != nil {
			return fmt.Errorf("modlog: marshal transcript: %w", err)
		}
	}

	const query = `
		INSERT INTO moderation_logs (reporter_id, reported_id, log_type, transcript, reason)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ReporterID,
		entry.ReportedID,
		entry.Type,
		transcriptJSON,
		entry.Reason,
	)
	if err != nil {
		return fmt.Errorf("modlog: insert: %w", err)
	}
	return nil
}
