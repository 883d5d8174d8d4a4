package hub

import (
	"encoding/json"
	"time"

	"github.com/strangerhub/realtime/internal/protocol"
)

// RoomState tracks whether a room is still ephemeral or has been promoted
// to a durable conversation.
type RoomState int

const (
	// RoomEphemeral rooms keep their transcript in memory only.
	RoomEphemeral RoomState = iota
	// RoomPromoted rooms have a durable conversation; messages flagged
	// persistent are written to it.
	RoomPromoted
)

// historyEntry is one line of an ephemeral room's in-memory transcript.
type historyEntry struct {
	Sender participant
	Text   string
}

// Room is an active chat session between two matched participants. All
// fields are guarded by the hub mutex.
type Room struct {
	// ID is derived from the two connection handles so it is unique per
	// pairing and trivially recomputable by both clients.
	ID string

	A participant // the match requester
	B participant // the waiting partner

	State RoomState

	// ConversationID is the durable conversation key, set on promotion.
	ConversationID string

	// history holds the transcript while the room is ephemeral. It is
	// flushed to storage on promotion and feeds the moderation log when
	// an unpromoted chat ends.
	history []historyEntry

	CreatedAt    time.Time
	LastActivity time.Time
}

func newRoom(a, b participant, now time.Time) *Room {
	return &Room{
		ID:           a.ConnID + "-" + b.ConnID,
		A:            a,
		B:            b,
		State:        RoomEphemeral,
		CreatedAt:    now,
		LastActivity: now,
	}
}

func (r *Room) hasConn(connID string) bool {
	return r.A.ConnID == connID || r.B.ConnID == connID
}

// participantByConn resolves a connection handle to its participant.
func (r *Room) participantByConn(connID string) (participant, bool) {
	switch connID {
	case r.A.ConnID:
		return r.A, true
	case r.B.ConnID:
		return r.B, true
	}
	return participant{}, false
}

// partnerOf resolves a connection handle to the other participant.
func (r *Room) partnerOf(connID string) (participant, bool) {
	switch connID {
	case r.A.ConnID:
		return r.B, true
	case r.B.ConnID:
		return r.A, true
	}
	return participant{}, false
}

func snapshotOf(p participant) protocol.PartnerSnapshot {
	return protocol.PartnerSnapshot{
		ID:          p.UserID,
		Alias:       p.Alias,
		Gender:      p.Gender,
		Rating:      p.Rating,
		RatingCount: p.RatingCount,
	}
}

// ---------------------------------------------------------------------------
// Room channel events
// ---------------------------------------------------------------------------

// Room channel event kinds carried over the bus.
const (
	roomEventMessage        = "message"
	roomEventTyping         = "typing"
	roomEventConnectRequest = "connect_request"
	roomEventConnectSuccess = "connect_success"
)

// roomEvent is the payload published on a room's bus channel. From holds
// the originating connection handle so subscribers can filter their own
// traffic; connect_success is the exception and is delivered to everyone
// in the room, sender included.
type roomEvent struct {
	Kind     string `json:"kind"`
	From     string `json:"from"`
	Text     string `json:"text,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

func (e roomEvent) encode() ([]byte, error) {
	return json.Marshal(e)
}

// publishRoomEvent serializes and publishes one event on a room channel.
func (h *Hub) publishRoomEvent(roomID string, ev roomEvent) error {
	data, err := ev.encode()
	if err != nil {
		return err
	}
	return h.bus.PublishRoom(roomID, data)
}

// roomEventHandler returns the bus callback for one subscribed connection.
// It translates room channel traffic into client events, dropping the
// subscriber's own echoes for everything except connect_success.
func (h *Hub) roomEventHandler(connID string) func(data []byte) {
	return func(data []byte) {
		var ev roomEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}

		switch ev.Kind {
		case roomEventMessage:
			if ev.From == connID {
				return
			}
			h.send(connID, protocol.TypeNewMessage, protocol.NewMessageEvent{Text: ev.Text})
		case roomEventTyping:
			if ev.From == connID {
				return
			}
			if ev.IsTyping {
				h.send(connID, protocol.TypePartnerStartedTyping, protocol.PartnerStartedTypingEvent{})
			} else {
				h.send(connID, protocol.TypePartnerStoppedTyping, protocol.PartnerStoppedTypingEvent{})
			}
		case roomEventConnectRequest:
			if ev.From == connID {
				return
			}
			h.send(connID, protocol.TypeReceiveConnectRequest, protocol.ReceiveConnectRequestEvent{})
		case roomEventConnectSuccess:
			h.send(connID, protocol.TypeConnectSuccess, protocol.ConnectSuccessEvent{Message: ev.Text})
		}
	}
}
