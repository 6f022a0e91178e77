// Package typing keeps the ephemeral record of who is currently composing a
// message. Entries expire on their own: a client that stops signaling simply
// ages out on the next sweep.
package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long a typing entry survives without a fresh signal.
	DefaultTTL = 3 * time.Second

	// DefaultSweepInterval is how often the periodic sweep runs, independent
	// of message traffic.
	DefaultSweepInterval = time.Second
)

// Tracker holds one entry per currently-typing user, keyed by username.
type Tracker struct {
	mu            sync.RWMutex
	entries       map[string]time.Time // username -> lastSignaledAt
	ttl           time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTTL overrides the expiry age for typing entries.
func WithTTL(d time.Duration) Option {
	return func(t *Tracker) {
		t.ttl = d
	}
}

// WithSweepInterval overrides the periodic sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(t *Tracker) {
		t.sweepInterval = d
	}
}

// NewTracker creates a tracker with the default expiry and sweep cadence.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		entries:       make(map[string]time.Time),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		logger:        slog.Default().With("service", "typing"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set upserts the entry for username when isTyping is true, and removes it
// eagerly when false.
func (t *Tracker) Set(username string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		t.entries[username] = time.Now()
		return
	}
	delete(t.entries, username)
}

// SweepExpired removes every entry whose last signal is at least the TTL old.
func (t *Tracker) SweepExpired(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for username, lastSignaledAt := range t.entries {
		if now.Sub(lastSignaledAt) >= t.ttl {
			delete(t.entries, username)
			t.logger.Debug("Typing entry expired", "username", username)
		}
	}
}

// Active returns the usernames currently typing, in no particular order.
func (t *Tracker) Active() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.entries))
	for username := range t.entries {
		out = append(out, username)
	}
	return out
}

// Run sweeps on a fixed interval until the context is canceled. It never
// blocks message handling; callers start it in its own goroutine.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			t.SweepExpired(now)
		case <-ctx.Done():
			return
		}
	}
}
