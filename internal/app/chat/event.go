package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"roomhub/internal/pkg/randx"
)

// EventType names what happened; clients switch on it.
type EventType string

const (
	EventMessageCreated    EventType = "message.created"
	EventMemberAdded       EventType = "member.added"
	EventMemberRemoved     EventType = "member.removed"
	EventMembershipRevoked EventType = "membership.revoked"
	EventRoomUpdated       EventType = "room.updated"
	EventRoomDeleted       EventType = "room.deleted"

	// Session-level replies, never fanned out.
	EventAck   EventType = "ack"
	EventError EventType = "error"
	EventPong  EventType = "pong"
)

// Event is the unit of delivery to a live session.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MemberPayload accompanies member.added, member.removed and membership.revoked.
type MemberPayload struct {
	UserID string `json:"userId"`
}

// AckPayload confirms an inbound frame that carried a tempId.
type AckPayload struct {
	TempID    string `json:"tempId"`
	MessageID string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorPayload reports a failed inbound frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(eventType EventType, roomID string, payload any) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		raw = b
	}

	return Event{
		ID:        randx.RecordID(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}, nil
}

// mustEvent is NewEvent for payloads that always marshal.
func mustEvent(eventType EventType, roomID string, payload any) Event {
	ev, err := NewEvent(eventType, roomID, payload)
	if err != nil {
		panic(err)
	}
	return ev
}
