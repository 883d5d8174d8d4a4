package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEnvelope_UnmarshalValid(t *testing.T) {
	data := []byte(`{"type":"send_message","room_id":"r1","message":"hi"}`)

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != "send_message" {
		t.Errorf("expected type send_message, got %q", env.Type)
	}
	if string(env.Raw) != string(data) {
		t.Errorf("raw payload not preserved")
	}
}

func TestEnvelope_MissingType(t *testing.T) {
	var env Envelope
	err := json.Unmarshal([]byte(`{"room_id":"r1"}`), &env)
	if err == nil {
		t.Fatal("expected error for missing type field")
	}
}

func TestParseClientEvent_SendMessage(t *testing.T) {
	data := []byte(`{"type":"send_message","room_id":"abc","message":"hello","persistent":true}`)

	msgType, msg, err := ParseClientEvent(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Errorf("expected type %q, got %q", TypeSendMessage, msgType)
	}

	sendMsg, ok := msg.(SendMessageEvent)
	if !ok {
		t.Fatalf("expected SendMessageEvent, got %T", msg)
	}
	if sendMsg.RoomID != "abc" {
		t.Errorf("unexpected room_id: %q", sendMsg.RoomID)
	}
	if sendMsg.Message != "hello" {
		t.Errorf("unexpected message: %q", sendMsg.Message)
	}
	if !sendMsg.Persistent {
		t.Error("expected persistent=true")
	}
}

func TestParseClientEvent_AllTypes(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"find_chat", `{"type":"find_chat"}`, TypeFindChat},
		{"cancel_find_chat", `{"type":"cancel_find_chat"}`, TypeCancelFindChat},
		{"start_typing", `{"type":"start_typing","room_id":"r"}`, TypeStartTyping},
		{"stop_typing", `{"type":"stop_typing","room_id":"r"}`, TypeStopTyping},
		{"send_connect_request", `{"type":"send_connect_request","room_id":"r"}`, TypeSendConnectRequest},
		{"accept_connect_request", `{"type":"accept_connect_request","room_id":"r"}`, TypeAcceptConnectRequest},
		{"leave_chat", `{"type":"leave_chat","room_id":"r"}`, TypeLeaveChat},
		{"join_persistent_room", `{"type":"join_persistent_room","room_id":"r"}`, TypeJoinPersistentRoom},
		{"ping", `{"type":"ping"}`, TypePing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgType, msg, err := ParseClientEvent([]byte(tc.data))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msgType != tc.want {
				t.Errorf("expected type %q, got %q", tc.want, msgType)
			}
			if msg == nil {
				t.Error("expected non-nil decoded event")
			}
		})
	}
}

func TestParseClientEvent_UnknownType(t *testing.T) {
	_, _, err := ParseClientEvent([]byte(`{"type":"bogus"}`))
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	if !strings.Contains(err.Error(), "unknown client event type") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParseClientEvent_ServerOnlyType(t *testing.T) {
	// Server -> client types must not be accepted from clients.
	_, _, err := ParseClientEvent([]byte(`{"type":"chat_started"}`))
	if err == nil {
		t.Fatal("expected error for server-only type")
	}
}

func TestParseClientEvent_InvalidJSON(t *testing.T) {
	_, _, err := ParseClientEvent([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestNewServerEvent_InjectsType(t *testing.T) {
	data, err := NewServerEvent(TypeChatStarted, ChatStartedEvent{
		RoomID: "r1",
		Partner: PartnerSnapshot{
			ID:     "u2",
			Alias:  "Moonlight",
			Gender: "F",
			Rating: 4.5,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if m["type"] != TypeChatStarted {
		t.Errorf("expected type %q, got %v", TypeChatStarted, m["type"])
	}
	if m["room_id"] != "r1" {
		t.Errorf("expected room_id r1, got %v", m["room_id"])
	}

	partner, ok := m["partner"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected partner object, got %T", m["partner"])
	}
	if partner["alias"] != "Moonlight" {
		t.Errorf("unexpected partner alias: %v", partner["alias"])
	}
}

func TestNewServerEvent_OnlineCount(t *testing.T) {
	data, err := NewServerEvent(TypeOnlineCount, OnlineCountEvent{Count: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if m["count"] != float64(42) {
		t.Errorf("expected count 42, got %v", m["count"])
	}
}

func TestNewServerEvent_RoundTrip(t *testing.T) {
	data, err := NewServerEvent(TypeChatEnded, ChatEndedEvent{PartnerID: "u7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ev ChatEndedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type != TypeChatEnded {
		t.Errorf("expected type %q, got %q", TypeChatEnded, ev.Type)
	}
	if ev.PartnerID != "u7" {
		t.Errorf("expected partner_id u7, got %q", ev.PartnerID)
	}
}
