package hub

import (
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/strangerhub/realtime/internal/metrics"
)

// maxMessageRunes caps a single chat message.
const maxMessageRunes = 2000

// ErrInvalidMessage is returned for empty or oversized message text.
var ErrInvalidMessage = errors.New("hub: invalid message text")

func validateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrInvalidMessage
	}
	if utf8.RuneCountInString(text) > maxMessageRunes {
		return "", ErrInvalidMessage
	}
	return text, nil
}

// SendMessage relays a chat message within a room. Non-persistent messages
// on an ephemeral room are appended to the in-memory transcript; persistent
// messages on a promoted room are queued for durable storage. Either way the
// message is published on the room channel so the partner's subscription
// delivers it.
//
// A promoted room's channel outlives its room-table entry: after the live
// session ends, participants who rejoined via join_persistent_room can keep
// sending under the original room id, with persistent messages resolved to
// the conversation recorded at promotion. Rooms that were never promoted
// and non-participants are ignored.
func (h *Hub) SendMessage(connID, roomID, text string, persistent bool) error {
	text, err := validateMessage(text)
	if err != nil {
		return err
	}

	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		convID := h.promoted[roomID]
		senderID, online := h.presence.userFor(connID)
		h.mu.Unlock()
		if convID == "" || !online {
			return nil
		}
		if persistent {
			if !h.recorder.EnqueueMessage(convID, senderID, text) {
				metrics.MessagesTotal.WithLabelValues("dropped").Inc()
			} else {
				metrics.MessagesTotal.WithLabelValues("persisted").Inc()
			}
		} else {
			metrics.MessagesTotal.WithLabelValues("relayed").Inc()
		}
		return h.publishRoomEvent(roomID, roomEvent{
			Kind: roomEventMessage,
			From: connID,
			Text: text,
		})
	}
	sender, ok := room.participantByConn(connID)
	if !ok {
		h.mu.Unlock()
		return nil
	}
	room.LastActivity = h.now()

	var convID string
	switch {
	case persistent && room.State == RoomPromoted:
		convID = room.ConversationID
	case room.State == RoomEphemeral:
		room.history = append(room.history, historyEntry{Sender: sender, Text: text})
	}
	h.mu.Unlock()

	if convID != "" {
		if !h.recorder.EnqueueMessage(convID, sender.UserID, text) {
			metrics.MessagesTotal.WithLabelValues("dropped").Inc()
		} else {
			metrics.MessagesTotal.WithLabelValues("persisted").Inc()
		}
	} else {
		metrics.MessagesTotal.WithLabelValues("relayed").Inc()
	}

	return h.publishRoomEvent(roomID, roomEvent{
		Kind: roomEventMessage,
		From: connID,
		Text: text,
	})
}

// SetTyping publishes a typing indicator on the room channel. Pure signal:
// no state is touched and unknown rooms are ignored.
func (h *Hub) SetTyping(connID, roomID string, isTyping bool) error {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if ok {
		_, ok = room.participantByConn(connID)
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}

	return h.publishRoomEvent(roomID, roomEvent{
		Kind:     roomEventTyping,
		From:     connID,
		IsTyping: isTyping,
	})
}

// RequestConnect signals the partner that the sender wants to promote the
// room to a saved conversation. Pure signal, no state change.
func (h *Hub) RequestConnect(connID, roomID string) error {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if ok {
		_, ok = room.participantByConn(connID)
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}

	return h.publishRoomEvent(roomID, roomEvent{
		Kind: roomEventConnectRequest,
		From: connID,
	})
}

// JoinPersistentRoom subscribes a connection to a promoted room's channel,
// e.g. when a client re-opens a saved conversation. The room need not be in
// the live room table.
func (h *Hub) JoinPersistentRoom(connID, roomID string) error {
	if err := h.bus.SubscribeRoom(roomID, connID, h.roomEventHandler(connID)); err != nil {
		return err
	}
	log.Printf("[hub] conn=%s joined persistent room=%s", connID, roomID)
	return nil
}
