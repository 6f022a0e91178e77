// Package history keeps the bounded, append-only log of recent chat events
// that is replayed to every newly joined connection.
package history

import (
	"sync"

	"github.com/nfrund/relay/internal/domain"
)

// DefaultLimit matches the retention the original deployment ran with.
const DefaultLimit = 100

// Buffer is a fixed-capacity FIFO of chat events. Eviction is strictly by
// arrival order, not by timestamp.
type Buffer struct {
	mu     sync.RWMutex
	events []domain.ChatEvent
	limit  int
}

// NewBuffer creates a buffer retaining at most limit events. A non-positive
// limit falls back to DefaultLimit.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Buffer{
		events: make([]domain.ChatEvent, 0, limit),
		limit:  limit,
	}
}

// Append adds the event at the end, evicting from the front once the buffer
// exceeds its capacity.
func (b *Buffer) Append(event domain.ChatEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.limit {
		over := len(b.events) - b.limit
		b.events = append(b.events[:0], b.events[over:]...)
	}
}

// Snapshot returns the retained events oldest first, in arrival order.
func (b *Buffer) Snapshot() []domain.ChatEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.ChatEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Len reports how many events are currently retained.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
