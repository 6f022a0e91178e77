package typing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_SetAndActive(t *testing.T) {
	tracker := NewTracker()

	tracker.Set("alice", true)
	tracker.Set("bob", true)

	active := tracker.Active()
	assert.Len(t, active, 2)
	assert.ElementsMatch(t, []string{"alice", "bob"}, active)
}

func TestTracker_ExplicitStopRemovesEagerly(t *testing.T) {
	tracker := NewTracker()

	tracker.Set("alice", true)
	tracker.Set("alice", false)

	assert.Empty(t, tracker.Active())
}

func TestTracker_StopForUnknownUserIsANoOp(t *testing.T) {
	tracker := NewTracker()
	tracker.Set("ghost", false)
	assert.Empty(t, tracker.Active())
}

func TestTracker_SweepRemovesOnlyExpired(t *testing.T) {
	tracker := NewTracker()

	tracker.Set("alice", true)
	time.Sleep(10 * time.Millisecond)
	tracker.Set("bob", true)

	// Alice's entry is older than the TTL relative to this reference point.
	tracker.SweepExpired(time.Now().Add(DefaultTTL - 5*time.Millisecond))

	active := tracker.Active()
	assert.Equal(t, []string{"bob"}, active)
}

func TestTracker_FreshSignalResetsExpiry(t *testing.T) {
	tracker := NewTracker()

	tracker.Set("alice", true)
	start := time.Now()

	// A second signal renews the entry, so sweeping relative to the first
	// signal's expiry leaves it alone.
	time.Sleep(10 * time.Millisecond)
	tracker.Set("alice", true)

	tracker.SweepExpired(start.Add(DefaultTTL))
	assert.Equal(t, []string{"alice"}, tracker.Active())
}

func TestTracker_RunSweepsPeriodically(t *testing.T) {
	tracker := NewTracker(WithTTL(30*time.Millisecond), WithSweepInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)

	tracker.Set("alice", true)

	assert.Eventually(t, func() bool {
		return len(tracker.Active()) == 0
	}, time.Second, 5*time.Millisecond, "entry should age out without a fresh signal")
}
