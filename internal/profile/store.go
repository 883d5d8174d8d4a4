// Package profile provides PostgreSQL-backed access to user profiles. The
// matchmaking engine reads profiles to build waiting-pool snapshots and to
// gate matching on account status; the unfreeze sweeper flips suspended
// accounts back to active once their timeout elapses.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Account status values, matching the CHECK constraint on the users table.
const (
	StatusActive = "ACTIVE"
	StatusFrozen = "FROZEN"
	StatusBanned = "BANNED"
)

// ErrNotFound is returned when no profile exists for the requested user id.
var ErrNotFound = errors.New("profile: user not found")

// User is a user profile row as seen by the engine.
type User struct {
	ID              string
	AliasName       string
	Gender          string
	AggregateRating float64
	RatingCount     int
	Status          string
	UnfreezeAt      *time.Time
}

// IsActive reports whether the account is eligible for matchmaking.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// Store manages user profiles in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new profile store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUser fetches a single profile by id. Returns ErrNotFound if the user
// does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, alias_name, gender, aggregate_rating, rating_count, status, unfreeze_at
		FROM users
		WHERE id = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.AliasName,
		&u.Gender,
		&u.AggregateRating,
		&u.RatingCount,
		&u.Status,
		&u.UnfreezeAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get user: %w", err)
	}
	return &u, nil
}

// UnfreezeDue reactivates all frozen accounts whose unfreeze timestamp has
// passed and returns how many were flipped back to active.
func (s *Store) UnfreezeDue(ctx context.Context) (int, error) {
	const query = `
		UPDATE users
		SET status = $1, unfreeze_at = NULL
		WHERE status = $2
		  AND unfreeze_at IS NOT NULL
		  AND unfreeze_at <= NOW()`

	res, err := s.db.ExecContext(ctx, query, StatusActive, StatusFrozen)
	if err != nil {
		return 0, fmt.Errorf("profile: unfreeze due: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("profile: unfreeze rows affected: %w", err)
	}
	return int(n), nil
}
