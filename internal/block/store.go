// Package block provides PostgreSQL-backed access to block records. A block
// is one-directional at the storage level, but matchmaking treats either
// direction as excluding a pairing.
package block

import (
	"context"
	"database/sql"
	"fmt"
)

// Record is a single one-directional block row.
type Record struct {
	BlockerID string
	BlockedID string
}

// Store manages block records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new block store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListBlocksInvolving returns every block record in which the given user
// appears on either side.
func (s *Store) ListBlocksInvolving(ctx context.Context, userID string) ([]Record, error) {
	const query = `
		SELECT blocker_id, blocked_id
		FROM blocks
		WHERE blocker_id = $1 OR blocked_id = $1`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("block: list involving %s: %w", userID, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.BlockerID, &r.BlockedID); err != nil {
			return nil, fmt.Errorf("block: scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("block: iterate records: %w", err)
	}
	return records, nil
}
