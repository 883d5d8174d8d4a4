package hub

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/strangerhub/realtime/internal/metrics"
	"github.com/strangerhub/realtime/internal/profile"
	"github.com/strangerhub/realtime/internal/protocol"
)

// RequestMatch tries to pair the requesting user with the longest-waiting
// compatible candidate; if none exists the requester joins the tail of the
// waiting pool.
//
// Compatibility is a hard filter: a candidate in a block relationship with
// the requester, in either direction, is skipped and the scan continues.
// Collaborator lookups (profile, block set) run before the critical section;
// a lookup failure aborts the operation with no state change, so a user is
// never pooled or matched with stale constraint data.
func (h *Hub) RequestMatch(ctx context.Context, userID, connID string) error {
	user, err := h.profiles.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			// Unknown user: an invariant guard, not an error the client
			// hears about.
			log.Printf("[hub] user=%s unknown, ignored find_chat", userID)
			return nil
		}
		return fmt.Errorf("hub: match request for user=%s: %w", userID, err)
	}
	if !user.IsActive() {
		// Frozen and banned users cannot enter matchmaking. Silent: the
		// client learns nothing beyond the absence of a match.
		log.Printf("[hub] user=%s status=%s ignored find_chat", userID, user.Status)
		return nil
	}

	blocked, err := h.blocks.BlockedSet(ctx, userID)
	if err != nil {
		return fmt.Errorf("hub: block lookup for user=%s: %w", userID, err)
	}

	self := participant{
		UserID:      user.ID,
		ConnID:      connID,
		Alias:       user.AliasName,
		Gender:      user.Gender,
		Rating:      user.AggregateRating,
		RatingCount: user.RatingCount,
	}

	h.mu.Lock()
	// The lookups above ran outside the lock; the world may have moved.
	if cur, ok := h.presence.handleFor(userID); !ok || cur != connID {
		h.mu.Unlock()
		return nil
	}
	if h.pool.contains(userID) {
		h.mu.Unlock()
		return nil
	}
	if h.roomForConn(connID) != nil {
		// One active room per user; a second find_chat mid-session is
		// ignored.
		h.mu.Unlock()
		return nil
	}

	candidate := h.pool.firstEligible(userID, blocked)
	if candidate == nil {
		h.pool.add(&waitingEntry{participant: self, JoinedAt: h.now()})
		metrics.WaitingPoolSize.Set(float64(h.pool.len()))
		h.mu.Unlock()
		log.Printf("[hub] user=%s pooled conn=%s", userID, connID)
		return nil
	}

	h.pool.remove(candidate.UserID)
	room := newRoom(self, candidate.participant, h.now())
	h.rooms[room.ID] = room
	metrics.WaitingPoolSize.Set(float64(h.pool.len()))
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	waited := h.now().Sub(candidate.JoinedAt)
	h.mu.Unlock()

	metrics.MatchesTotal.Inc()
	metrics.MatchWaitSeconds.Observe(waited.Seconds())

	// Subscribe both ends to the room channel before announcing the match
	// so neither side can publish into a channel the other is not on yet.
	if err := h.bus.SubscribeRoom(room.ID, room.A.ConnID, h.roomEventHandler(room.A.ConnID)); err != nil {
		log.Printf("[hub] room=%s subscribe conn=%s failed: %v", room.ID, room.A.ConnID, err)
	}
	if err := h.bus.SubscribeRoom(room.ID, room.B.ConnID, h.roomEventHandler(room.B.ConnID)); err != nil {
		log.Printf("[hub] room=%s subscribe conn=%s failed: %v", room.ID, room.B.ConnID, err)
	}

	h.send(room.A.ConnID, protocol.TypeChatStarted, protocol.ChatStartedEvent{
		RoomID:  room.ID,
		Partner: snapshotOf(room.B),
	})
	h.send(room.B.ConnID, protocol.TypeChatStarted, protocol.ChatStartedEvent{
		RoomID:  room.ID,
		Partner: snapshotOf(room.A),
	})

	log.Printf("[hub] room=%s matched %s with %s", room.ID, room.A.UserID, room.B.UserID)
	return nil
}

// CancelMatch removes a user from the waiting pool. Idempotent: cancelling
// while not pooled — including after a match has already been committed for
// this user — is a no-op. The room from such a race stands.
func (h *Hub) CancelMatch(userID string) {
	h.mu.Lock()
	removed := h.pool.remove(userID)
	metrics.WaitingPoolSize.Set(float64(h.pool.len()))
	h.mu.Unlock()

	if removed {
		log.Printf("[hub] user=%s left waiting pool", userID)
	}
}

// roomForConn returns the room the connection participates in, if any.
// Callers hold the hub mutex.
func (h *Hub) roomForConn(connID string) *Room {
	for _, room := range h.rooms {
		if room.hasConn(connID) {
			return room
		}
	}
	return nil
}
