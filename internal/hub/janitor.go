package hub

import (
	"context"
	"log"
	"time"

	"github.com/strangerhub/realtime/internal/metrics"
	"github.com/strangerhub/realtime/internal/protocol"
)

// Run starts the janitor loop, which periodically evicts users who have
// waited too long for a match and ends rooms that have gone idle. It blocks
// until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.JanitorInterval)
	defer ticker.Stop()

	log.Printf("[hub] janitor started (interval=%s wait_timeout=%s idle_timeout=%s)",
		h.cfg.JanitorInterval, h.cfg.MatchWaitTimeout, h.cfg.RoomIdleTimeout)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[hub] janitor stopped")
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep runs one janitor pass.
func (h *Hub) sweep() {
	now := h.now()

	if h.cfg.MatchWaitTimeout > 0 {
		h.mu.Lock()
		evicted := h.pool.expired(now.Add(-h.cfg.MatchWaitTimeout))
		metrics.WaitingPoolSize.Set(float64(h.pool.len()))
		h.mu.Unlock()

		for _, e := range evicted {
			h.send(e.ConnID, protocol.TypeFindChatTimeout, protocol.FindChatTimeoutEvent{})
			log.Printf("[hub] user=%s evicted from waiting pool after timeout", e.UserID)
		}
	}

	if h.cfg.RoomIdleTimeout > 0 {
		cutoff := now.Add(-h.cfg.RoomIdleTimeout)
		h.mu.Lock()
		var idle []*Room
		for id, room := range h.rooms {
			if room.LastActivity.Before(cutoff) {
				idle = append(idle, room)
				delete(h.rooms, id)
			}
		}
		metrics.ActiveRooms.Set(float64(len(h.rooms)))
		h.mu.Unlock()

		for _, room := range idle {
			log.Printf("[hub] room=%s ended after idle timeout", room.ID)
			h.finishRoom(room)
		}
	}
}
