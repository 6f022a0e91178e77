package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates user messages from system announcements.
type EventKind string

const (
	KindMessage EventKind = "message"
	KindSystem  EventKind = "system"
)

// SystemUsername is the sender name attached to system announcements.
const SystemUsername = "System"

// ChatEvent is one unit of chat history: a user message or a system-generated
// announcement. Events are immutable once created.
type ChatEvent struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"type"`
}

// NewUserMessage builds a message event on behalf of the bound identity.
// The ID is freshly generated; the username always comes from the session,
// never from the client payload.
func NewUserMessage(username, text string) ChatEvent {
	return ChatEvent{
		ID:        fmt.Sprintf("msg-%s", uuid.NewString()),
		Username:  username,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Kind:      KindMessage,
	}
}

// NewSystemEvent builds a system announcement.
func NewSystemEvent(text string) ChatEvent {
	return ChatEvent{
		ID:        fmt.Sprintf("system-%s", uuid.NewString()),
		Username:  SystemUsername,
		Text:      text,
		Timestamp: time.Now().UTC(),
		Kind:      KindSystem,
	}
}

// Identity is a connection's claimed, uniqueness-enforced display name.
type Identity struct {
	ConnectionID string    `json:"id"`
	Username     string    `json:"username"`
	Online       bool      `json:"isOnline"`
	JoinedAt     time.Time `json:"-"`
}

// TypingSignal is the raw typing event relayed between clients.
type TypingSignal struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}
