// Package unfreeze periodically reactivates accounts whose suspension has
// lapsed, so moderation freezes expire without manual intervention.
package unfreeze

import (
	"context"
	"log"
	"time"
)

// DefaultInterval is how often the sweep runs unless configured otherwise.
const DefaultInterval = time.Minute

// Reactivator flips due accounts back to active and reports how many
// changed. Implemented by the profile store.
type Reactivator interface {
	UnfreezeDue(ctx context.Context) (int, error)
}

// Sweeper runs the reactivation sweep on a fixed interval.
type Sweeper struct {
	store    Reactivator
	interval time.Duration
}

// NewSweeper creates a Sweeper. A non-positive interval falls back to
// DefaultInterval.
func NewSweeper(store Reactivator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{store: store, interval: interval}
}

// Run blocks, sweeping every interval until the context is cancelled.
// Sweep errors are logged and the loop continues; a flaky database must not
// kill the sweeper.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("[unfreeze] sweeper started (interval=%s)", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[unfreeze] sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := s.store.UnfreezeDue(sweepCtx)
	if err != nil {
		log.Printf("[unfreeze] sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[unfreeze] reactivated %d account(s)", n)
	}
}
