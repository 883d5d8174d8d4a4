// Package protocol defines the WebSocket event types and structures used for
// communication between the client and server. All events are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
// Malformed payloads are rejected at parse time rather than trusted by shape.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event type constants
// ---------------------------------------------------------------------------

// Client -> Server event types.
const (
	TypeFindChat             = "find_chat"
	TypeCancelFindChat       = "cancel_find_chat"
	TypeSendMessage          = "send_message"
	TypeStartTyping          = "start_typing"
	TypeStopTyping           = "stop_typing"
	TypeSendConnectRequest   = "send_connect_request"
	TypeAcceptConnectRequest = "accept_connect_request"
	TypeLeaveChat            = "leave_chat"
	TypeJoinPersistentRoom   = "join_persistent_room"
	TypePing                 = "ping"
)

// Server -> Client event types.
const (
	TypeOnlineCount           = "update_online_count"
	TypeChatStarted           = "chat_started"
	TypeNewMessage            = "new_message"
	TypePartnerStartedTyping  = "partner_started_typing"
	TypePartnerStoppedTyping  = "partner_stopped_typing"
	TypeReceiveConnectRequest = "receive_connect_request"
	TypeConnectSuccess        = "connect_success"
	TypeChatEnded             = "chat_ended"
	TypeFindChatTimeout       = "find_chat_timeout"
	TypeError                 = "error"
	TypePong                  = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the event type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Shared payload structs
// ---------------------------------------------------------------------------

// PartnerSnapshot is the public view of a matched partner sent with
// chat_started. It carries only fields the partner has already made public:
// display alias, gender, and the aggregate rating.
type PartnerSnapshot struct {
	ID          string  `json:"id"`
	Alias       string  `json:"alias"`
	Gender      string  `json:"gender"`
	Rating      float64 `json:"rating"`
	RatingCount int     `json:"rating_count"`
}

// ---------------------------------------------------------------------------
// Client -> Server event structs
// ---------------------------------------------------------------------------

// FindChatEvent is sent by the client to enter the waiting pool and attempt
// an immediate match.
type FindChatEvent struct {
	Type string `json:"type"`
}

// CancelFindChatEvent is sent by the client to leave the waiting pool.
type CancelFindChatEvent struct {
	Type string `json:"type"`
}

// SendMessageEvent relays a chat message within a room. Persistent marks the
// message as belonging to an already-promoted conversation, in which case it
// is written to durable storage instead of the in-memory history.
type SendMessageEvent struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	Message    string `json:"message"`
	Persistent bool   `json:"persistent"`
}

// StartTypingEvent signals that the client began typing in a room.
type StartTypingEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// StopTypingEvent signals that the client stopped typing in a room.
type StopTypingEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// SendConnectRequestEvent asks the partner to promote the room to a
// permanently saved conversation.
type SendConnectRequestEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// AcceptConnectRequestEvent accepts the partner's connect request and
// triggers room promotion.
type AcceptConnectRequestEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// LeaveChatEvent ends the chat in the given room.
type LeaveChatEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// JoinPersistentRoomEvent resubscribes the connection to a promoted room's
// channel, e.g. after re-opening a saved conversation.
type JoinPersistentRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// PingEvent is a client-initiated keepalive ping.
type PingEvent struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client event structs
// ---------------------------------------------------------------------------

// OnlineCountEvent broadcasts the current number of connected users. It is
// sent to every connection whenever the presence registry size changes.
type OnlineCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ChatStartedEvent is sent to both participants when a match is made. Each
// participant receives the other participant's snapshot.
type ChatStartedEvent struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id"`
	Partner PartnerSnapshot `json:"partner"`
}

// NewMessageEvent delivers an incoming chat message from the partner.
type NewMessageEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PartnerStartedTypingEvent tells the client the partner began typing.
type PartnerStartedTypingEvent struct {
	Type string `json:"type"`
}

// PartnerStoppedTypingEvent tells the client the partner stopped typing.
type PartnerStoppedTypingEvent struct {
	Type string `json:"type"`
}

// ReceiveConnectRequestEvent tells the client the partner wants to promote
// the room to a saved conversation.
type ReceiveConnectRequestEvent struct {
	Type string `json:"type"`
}

// ConnectSuccessEvent is sent to both participants when promotion succeeds.
type ConnectSuccessEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ChatEndedEvent is sent to both participants when a room terminates. The
// partner's identity is included so the UI can offer rating.
type ChatEndedEvent struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id"`
}

// FindChatTimeoutEvent is sent when a user's waiting-pool residency exceeded
// the configured maximum without a match being found.
type FindChatTimeoutEvent struct {
	Type string `json:"type"`
}

// ErrorEvent is sent by the server to communicate an error condition.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongEvent is the server's response to a client ping.
type PongEvent struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientEvent parses raw WebSocket bytes into a typed client event.
// It returns the event type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only event types.
func ParseClientEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse event: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeFindChat:
		var m FindChatEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCancelFindChat:
		var m CancelFindChatEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStartTyping:
		var m StartTypingEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStopTyping:
		var m StopTypingEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendConnectRequest:
		var m SendConnectRequestEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeAcceptConnectRequest:
		var m AcceptConnectRequestEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveChat:
		var m LeaveChatEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeJoinPersistentRoom:
		var m JoinPersistentRoomEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerEvent creates a JSON-encoded byte slice for a server event.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server event structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerEvent(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server event: %w", err)
	}
	return out, nil
}
