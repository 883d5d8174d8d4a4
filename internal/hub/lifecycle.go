package hub

import (
	"context"
	"fmt"
	"log"

	"github.com/strangerhub/realtime/internal/conversation"
	"github.com/strangerhub/realtime/internal/metrics"
	"github.com/strangerhub/realtime/internal/modlog"
	"github.com/strangerhub/realtime/internal/protocol"
)

// connectSuccessMessage accompanies the connect_success event delivered to
// both participants after promotion.
const connectSuccessMessage = "You are now connected. Your chats will be saved."

// AcceptConnect promotes an ephemeral room to a durable conversation: it
// creates the conversation, flushes the in-memory transcript into it in
// original order, then marks the room promoted and announces connect_success
// on the room channel. The room stays alive — the pair keeps chatting in it,
// now with persistent messages.
//
// The durable writes run synchronously and outside the hub lock. If either
// write fails the promotion is abandoned with the room left ephemeral and
// intact, so a retry starts from a clean slate.
func (h *Hub) AcceptConnect(ctx context.Context, connID, roomID string) error {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return nil
	}
	if _, ok := room.participantByConn(connID); !ok {
		h.mu.Unlock()
		return nil
	}
	if room.State != RoomEphemeral {
		// Already promoted; a duplicate accept must not mint a second
		// conversation.
		h.mu.Unlock()
		return nil
	}
	ids := []string{room.A.UserID, room.B.UserID}
	transcript := make([]conversation.Message, 0, len(room.history))
	for _, e := range room.history {
		transcript = append(transcript, conversation.Message{SenderID: e.Sender.UserID, Text: e.Text})
	}
	h.mu.Unlock()

	convID, err := h.conversations.Create(ctx, ids)
	if err != nil {
		return fmt.Errorf("hub: promote room=%s: %w", roomID, err)
	}
	if len(transcript) > 0 {
		if err := h.conversations.AppendMessages(ctx, convID, transcript); err != nil {
			return fmt.Errorf("hub: promote room=%s: flush transcript: %w", roomID, err)
		}
	}

	h.mu.Lock()
	room, ok = h.rooms[roomID]
	if !ok || room.State != RoomEphemeral {
		// The room ended (or a concurrent accept won) while the durable
		// writes were in flight. The conversation row stands on its own;
		// record the mapping so a rejoin can still reach it.
		if _, exists := h.promoted[roomID]; !exists {
			h.promoted[roomID] = convID
		}
		h.mu.Unlock()
		log.Printf("[hub] room=%s vanished during promotion, conversation=%s kept", roomID, convID)
		return nil
	}
	room.State = RoomPromoted
	room.ConversationID = convID
	room.LastActivity = h.now()
	h.promoted[roomID] = convID
	h.mu.Unlock()

	metrics.PromotionsTotal.Inc()
	log.Printf("[hub] room=%s promoted to conversation=%s", roomID, convID)

	return h.publishRoomEvent(roomID, roomEvent{
		Kind: roomEventConnectSuccess,
		From: connID,
		Text: connectSuccessMessage,
	})
}

// LeaveChat ends a room on behalf of one participant. Both sides are
// notified and the room is removed unconditionally, whatever its state.
func (h *Hub) LeaveChat(connID, roomID string) {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if ok {
		_, ok = room.participantByConn(connID)
	}
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, roomID)
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	h.mu.Unlock()

	h.finishRoom(room)
}

// finishRoom runs the teardown side effects for a room already removed from
// the table: the transcript is queued as a moderation chat log, both
// participants get chat_ended with the other's identity, and both ends are
// unsubscribed from the room channel. Storage failures here are absorbed by
// the persist worker — teardown itself never fails.
func (h *Hub) finishRoom(room *Room) {
	if len(room.history) > 0 {
		entry := &modlog.Log{
			ReporterID: room.A.UserID,
			ReportedID: room.B.UserID,
			Type:       modlog.TypeChatLog,
			Reason:     fmt.Sprintf("Chat log between %s and %s", room.A.Alias, room.B.Alias),
			Transcript: make([]modlog.TranscriptEntry, 0, len(room.history)),
		}
		for _, e := range room.history {
			entry.Transcript = append(entry.Transcript, modlog.TranscriptEntry{
				Sender: e.Sender.Alias,
				Text:   e.Text,
			})
		}
		if !h.recorder.EnqueueLog(entry) {
			log.Printf("[hub] room=%s chat log dropped, persist queue full", room.ID)
		}
	}

	h.send(room.A.ConnID, protocol.TypeChatEnded, protocol.ChatEndedEvent{PartnerID: room.B.UserID})
	h.send(room.B.ConnID, protocol.TypeChatEnded, protocol.ChatEndedEvent{PartnerID: room.A.UserID})

	_ = h.bus.UnsubscribeRoom(room.A.ConnID)
	_ = h.bus.UnsubscribeRoom(room.B.ConnID)

	log.Printf("[hub] room=%s ended", room.ID)
}
