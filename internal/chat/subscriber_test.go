package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/topics"
	"github.com/nfrund/relay/internal/typing"
)

func typingMessage(t *testing.T, username string, isTyping bool, excludeConnID string) pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(domain.TypingSignal{Username: username, IsTyping: isTyping})
	require.NoError(t, err)
	return pubsub.Message{
		Topic:        topics.TypingSignals.Name(),
		ConnectionID: excludeConnID,
		Payload:      payload,
		Metadata:     map[string]string{metaKeyExclude: excludeConnID},
	}
}

func TestSubscriber_TypingSignalUpdatesTrackerAndRelays(t *testing.T) {
	sender := newRecorderSender()
	tracker := typing.NewTracker()
	sub := NewSubscriber(nil, tracker, sender)

	err := sub.handleTypingSignal(context.Background(), typingMessage(t, "alice", true, "conn-1"))
	require.NoError(t, err)

	assert.Contains(t, tracker.Active(), "alice")

	frames := sender.broadcastFrames()
	require.Len(t, frames, 1)
	signal := decodeEvent[domain.TypingSignal](t, frames[0], EventTyping)
	assert.Equal(t, "alice", signal.Username)
	assert.True(t, signal.IsTyping)
	require.Len(t, sender.excepted, 1)
	assert.Equal(t, "conn-1", sender.excepted[0])
}

func TestSubscriber_TypingStopClearsTracker(t *testing.T) {
	sender := newRecorderSender()
	tracker := typing.NewTracker()
	sub := NewSubscriber(nil, tracker, sender)

	require.NoError(t, sub.handleTypingSignal(context.Background(), typingMessage(t, "alice", true, "conn-1")))
	require.NoError(t, sub.handleTypingSignal(context.Background(), typingMessage(t, "alice", false, "conn-1")))

	assert.Empty(t, tracker.Active())
}

func TestSubscriber_MalformedSignalIsReported(t *testing.T) {
	sender := newRecorderSender()
	sub := NewSubscriber(nil, typing.NewTracker(), sender)

	err := sub.handleTypingSignal(context.Background(), pubsub.Message{
		Topic:   topics.TypingSignals.Name(),
		Payload: []byte("not json"),
	})

	assert.Error(t, err)
	assert.Empty(t, sender.broadcastFrames())
}

func TestSubscriber_RelaysOverTheBus(t *testing.T) {
	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	sender := newRecorderSender()
	tracker := typing.NewTracker()
	sub := NewSubscriber(bridge, tracker, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub.Start(ctx)

	err := bridge.Publish(ctx, typingMessage(t, "bob", true, "conn-2"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(sender.broadcastFrames()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, tracker.Active(), "bob")
}
