package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/domain"
)

func event(i int) domain.ChatEvent {
	return domain.ChatEvent{
		ID:       fmt.Sprintf("msg-%d", i),
		Username: "alice",
		Text:     fmt.Sprintf("message %d", i),
		Kind:     domain.KindMessage,
	}
}

func TestBuffer_SnapshotPreservesArrivalOrder(t *testing.T) {
	buf := NewBuffer(10)

	for i := 0; i < 5; i++ {
		buf.Append(event(i))
	}

	snap := buf.Snapshot()
	require.Len(t, snap, 5)
	for i, e := range snap {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), e.ID)
	}
}

func TestBuffer_EvictsOldestFirst(t *testing.T) {
	buf := NewBuffer(100)

	for i := 0; i < 101; i++ {
		buf.Append(event(i))
	}

	snap := buf.Snapshot()
	require.Len(t, snap, 100)
	// Event #0 is gone, the rest keep their relative order.
	for i, e := range snap {
		assert.Equal(t, fmt.Sprintf("msg-%d", i+1), e.ID)
	}
}

func TestBuffer_NeverExceedsLimit(t *testing.T) {
	buf := NewBuffer(3)

	for i := 0; i < 50; i++ {
		buf.Append(event(i))
		assert.LessOrEqual(t, buf.Len(), 3)
	}

	snap := buf.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "msg-47", snap[0].ID)
	assert.Equal(t, "msg-49", snap[2].ID)
}

func TestBuffer_SnapshotIsACopy(t *testing.T) {
	buf := NewBuffer(10)
	buf.Append(event(0))

	snap := buf.Snapshot()
	snap[0].Text = "mutated"

	assert.Equal(t, "message 0", buf.Snapshot()[0].Text)
}

func TestBuffer_ConcurrentAppends(t *testing.T) {
	buf := NewBuffer(100)

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf.Append(event(i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, buf.Len())
}
