package chat

import (
	"sync"

	"github.com/nfrund/relay/internal/domain"
)

// State tracks where a connection is in its lifecycle. There is no
// reconnection state: every new transport connection is a fresh session.
type State int

const (
	// StateConnecting covers a connection that has not successfully joined.
	StateConnecting State = iota
	// StateJoined means the connection holds a registered identity.
	StateJoined
	// StateClosed means the leave path has run for this connection.
	StateClosed
)

// Session is the per-connection record the room keeps: the connection ID,
// the identity bound at join time, and the lifecycle state.
type Session struct {
	ConnectionID string

	state    State
	identity domain.Identity

	// leaveOnce deduplicates the cleanup path when an explicit leave and the
	// transport close race.
	leaveOnce sync.Once
}

func newSession(connectionID string) *Session {
	return &Session{
		ConnectionID: connectionID,
		state:        StateConnecting,
	}
}
