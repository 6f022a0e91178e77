package chat

import (
	"encoding/json"
	"fmt"
)

// Inbound event kinds, client to server.
const (
	EventCheckUsername = "check-username"
	EventJoin          = "join"
	EventMessage       = "message"
	EventTyping        = "typing"
	EventLeave         = "leave"
)

// Outbound event kinds, server to client.
const (
	EventUsernameChecked = "username-checked"
	EventJoinError       = "join-error"
	EventUsers           = "users"
	EventError           = "error"
	// EventMessage and EventTyping are reused for outbound delivery.
)

// Envelope frames every message on the wire in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CheckUsernamePayload asks whether a name is currently available.
type CheckUsernamePayload struct {
	Username string `json:"username" validate:"required,max=20"`
}

// JoinPayload claims a display name for this connection.
type JoinPayload struct {
	Username string `json:"username" validate:"required,max=20"`
}

// MessagePayload carries the text of a user message. Any client-supplied
// username field is deliberately absent: the sender is the bound identity.
type MessagePayload struct {
	Text string `json:"text" validate:"required,max=500"`
}

// TypingPayload signals composing state on or off.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// LeavePayload accompanies an explicit leave. The username is advisory only
// and ignored by the server, which trusts the identity bound at join time.
type LeavePayload struct {
	Username string `json:"username"`
}

// UsernameCheckedPayload is the advisory reply to a check-username request.
type UsernameCheckedPayload struct {
	Username    string `json:"username"`
	IsAvailable bool   `json:"isAvailable"`
}

// ErrorPayload carries a human-readable rejection reason.
type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent frames a payload into an envelope ready for the wire.
func encodeEvent(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return frame, nil
}

// mustEncodeEvent is encodeEvent for payloads built from our own types,
// where a marshal failure is a programming error.
func mustEncodeEvent(eventType string, payload any) []byte {
	frame, err := encodeEvent(eventType, payload)
	if err != nil {
		panic(err)
	}
	return frame
}
