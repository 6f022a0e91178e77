// Package session is the authoritative record of who is online right now.
// It enforces the one rule the relay has about identity: at most one online
// connection per case-insensitive display name.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/nfrund/relay/internal/domain"
)

// ErrNameTaken is returned when another online identity already holds the
// requested name. It is a business-rule rejection, never fatal.
var ErrNameTaken = errors.New("username is already taken")

// Registry holds the set of currently online identities, keyed by connection
// ID. All mutation happens under a single mutex so the availability check and
// the insert in Register are one atomic step.
type Registry struct {
	mu         sync.RWMutex
	identities map[string]domain.Identity // connectionID -> identity
	names      map[string]string          // folded username -> connectionID
	fold       cases.Caser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[string]domain.Identity),
		names:      make(map[string]string),
		fold:       cases.Fold(),
	}
}

// IsNameAvailable reports whether no online identity currently holds the
// name. Purely advisory: a subsequent Register can still lose the race.
func (r *Registry) IsNameAvailable(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, taken := r.names[r.fold.String(name)]
	return !taken
}

// Register atomically re-checks availability and binds the name to the
// connection. It returns ErrNameTaken when another online identity holds the
// name; the caller reports that to the joining connection only.
func (r *Registry) Register(connectionID, name string) (domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	folded := r.fold.String(name)
	if _, taken := r.names[folded]; taken {
		return domain.Identity{}, ErrNameTaken
	}

	identity := domain.Identity{
		ConnectionID: connectionID,
		Username:     name,
		Online:       true,
		JoinedAt:     time.Now().UTC(),
	}
	r.identities[connectionID] = identity
	r.names[folded] = connectionID

	return identity, nil
}

// Unregister removes the identity bound to the connection, returning it and
// true when present. Unregistering an unknown connection is a no-op, which
// makes the leave path idempotent.
func (r *Registry) Unregister(connectionID string) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[connectionID]
	if !ok {
		return domain.Identity{}, false
	}

	delete(r.identities, connectionID)
	delete(r.names, r.fold.String(identity.Username))

	return identity, true
}

// Online returns a snapshot of all online identities, ordered by join time
// so presence lists render stably.
func (r *Registry) Online() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Identity, 0, len(r.identities))
	for _, identity := range r.identities {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
