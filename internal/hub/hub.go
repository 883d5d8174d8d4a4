// Package hub is the session-coordination engine. It owns all process-wide
// mutable state — the presence registry, the waiting pool, and the room
// table — behind a single mutex, so matchmaking and room lifecycle never
// race: two concurrent match requests cannot claim the same waiting entry,
// and a room is never created with a participant that has already
// disconnected. Collaborator I/O (profile lookups, block lookups, persisted
// writes) happens outside the critical section; in-memory state is mutated
// only after those checks succeed.
//
// The state is process-local and not persisted: a restart drops all waiting
// users and active ephemeral rooms.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/strangerhub/realtime/internal/conversation"
	"github.com/strangerhub/realtime/internal/metrics"
	"github.com/strangerhub/realtime/internal/modlog"
	"github.com/strangerhub/realtime/internal/profile"
	"github.com/strangerhub/realtime/internal/protocol"
)

// Sender delivers server events to client connections. Implemented by the
// WebSocket server. Delivery is fire-and-forget: an offline recipient simply
// misses the event.
type Sender interface {
	SendMessage(connID string, data []byte) error
	Broadcast(data []byte)
}

// RoomBus is the room channel fabric. Both participants' connections are
// subscribed to their room's channel and relay traffic flows through it.
// Implemented by the NATS client.
type RoomBus interface {
	SubscribeRoom(roomID, connID string, handler func(data []byte)) error
	UnsubscribeRoom(connID string) error
	PublishRoom(roomID string, data []byte) error
}

// ProfileStore is the user-profile collaborator.
type ProfileStore interface {
	GetUser(ctx context.Context, id string) (*profile.User, error)
}

// BlockIndex answers which users are in a block relationship (either
// direction) with a given user.
type BlockIndex interface {
	BlockedSet(ctx context.Context, userID string) (map[string]struct{}, error)
}

// ConversationStore is the persisted-conversation collaborator, used
// synchronously during room promotion.
type ConversationStore interface {
	Create(ctx context.Context, participantIDs []string) (string, error)
	AppendMessages(ctx context.Context, convID string, msgs []conversation.Message) error
}

// Recorder queues asynchronous storage writes: persistent message appends
// and moderation logs. Implemented by the persist worker.
type Recorder interface {
	EnqueueMessage(convID, senderID, text string) bool
	EnqueueLog(entry *modlog.Log) bool
}

// Config holds hub tunables.
type Config struct {
	// MatchWaitTimeout evicts users from the waiting pool after this long
	// without a match and notifies them. Zero disables eviction.
	MatchWaitTimeout time.Duration

	// RoomIdleTimeout ends rooms with no relay activity for this long.
	// Zero disables idle expiry.
	RoomIdleTimeout time.Duration

	// JanitorInterval is how often the timeout sweep runs.
	JanitorInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MatchWaitTimeout: 2 * time.Minute,
		RoomIdleTimeout:  30 * time.Minute,
		JanitorInterval:  30 * time.Second,
	}
}

// Hub coordinates presence, matchmaking, message relay, and room lifecycle.
type Hub struct {
	cfg Config

	mu       sync.Mutex
	presence *registry
	pool     *waitingPool
	rooms    map[string]*Room

	// promoted maps a room id to its durable conversation id. Entries
	// outlive the room-table entry so a rejoined conversation can keep
	// persisting messages under the original room id.
	promoted map[string]string

	profiles      ProfileStore
	blocks        BlockIndex
	conversations ConversationStore
	recorder      Recorder
	sender        Sender
	bus           RoomBus

	// now is the clock source; replaced in tests.
	now func() time.Time
}

// New creates a Hub wired to its collaborators.
func New(cfg Config, profiles ProfileStore, blocks BlockIndex, conversations ConversationStore, recorder Recorder, sender Sender, bus RoomBus) *Hub {
	return &Hub{
		cfg:           cfg,
		presence:      newRegistry(),
		pool:          newWaitingPool(),
		rooms:         make(map[string]*Room),
		promoted:      make(map[string]string),
		profiles:      profiles,
		blocks:        blocks,
		conversations: conversations,
		recorder:      recorder,
		sender:        sender,
		bus:           bus,
		now:           time.Now,
	}
}

// ---------------------------------------------------------------------------
// Presence
// ---------------------------------------------------------------------------

// Connect registers a user's connection in the presence registry and
// broadcasts the new online count to every connection.
//
// Registering displaces any handle the user still held from a previous
// socket. A pool entry on the displaced handle can never be matched, and a
// room holding it would signal into a void, so the displaced handle gets the
// same teardown a disconnect would run: pool removal, end-of-chat for its
// room, channel unsubscribe.
func (h *Hub) Connect(userID, connID string) {
	h.mu.Lock()
	displaced, hadOld := h.presence.register(userID, connID)
	var ended *Room
	if hadOld {
		h.pool.remove(userID)
		metrics.WaitingPoolSize.Set(float64(h.pool.len()))
		for _, room := range h.rooms {
			if room.hasConn(displaced) {
				ended = room
				delete(h.rooms, room.ID)
				break
			}
		}
		metrics.ActiveRooms.Set(float64(len(h.rooms)))
	}
	count := h.presence.count()
	h.mu.Unlock()

	if hadOld {
		_ = h.bus.UnsubscribeRoom(displaced)
		if ended != nil {
			h.finishRoom(ended)
		}
		log.Printf("[hub] user=%s reconnected, displaced conn=%s", userID, displaced)
	}

	metrics.OnlineUsers.Set(float64(count))
	h.broadcastOnlineCount(count)
	log.Printf("[hub] user=%s connected conn=%s (online=%d)", userID, connID, count)
}

// Disconnect tears down all state tied to a connection: presence, a waiting
// pool entry if the user was mid-queue, and at most one active room. It
// broadcasts the updated online count.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	userID, ok := h.presence.unregisterConn(connID)
	count := h.presence.count()

	if ok {
		h.pool.remove(userID)
		metrics.WaitingPoolSize.Set(float64(h.pool.len()))
	}

	// A user is a participant of at most one room, so the first hit is
	// the only one.
	var ended *Room
	for _, room := range h.rooms {
		if room.hasConn(connID) {
			ended = room
			delete(h.rooms, room.ID)
			break
		}
	}
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.mu.Unlock()

	if ok {
		metrics.OnlineUsers.Set(float64(count))
		h.broadcastOnlineCount(count)
		log.Printf("[hub] user=%s disconnected conn=%s (online=%d)", userID, connID, count)
	}

	_ = h.bus.UnsubscribeRoom(connID)

	if ended != nil {
		h.finishRoom(ended)
	}
}

// OnlineCount returns the current presence registry size.
func (h *Hub) OnlineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.count()
}

// HandleFor returns the connection handle registered for a user, if any.
func (h *Hub) HandleFor(userID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.handleFor(userID)
}

func (h *Hub) broadcastOnlineCount(count int) {
	data, err := protocol.NewServerEvent(protocol.TypeOnlineCount, protocol.OnlineCountEvent{Count: count})
	if err != nil {
		log.Printf("[hub] failed to build online count event: %v", err)
		return
	}
	h.sender.Broadcast(data)
}

// send builds and delivers one server event to a single connection.
// Delivery failures are logged, not propagated.
func (h *Hub) send(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerEvent(msgType, payload)
	if err != nil {
		log.Printf("[hub] failed to build %s event: %v", msgType, err)
		return
	}
	if err := h.sender.SendMessage(connID, data); err != nil {
		log.Printf("[hub] failed to send %s to conn=%s: %v", msgType, connID, err)
	}
}
