package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/topics"
	"github.com/nfrund/relay/internal/typing"
)

// Subscriber listens on the bus for typing signals and lifecycle events.
// It keeps the typing tracker current and relays typing state to every
// connection except the one that signaled.
type Subscriber struct {
	subscriber pubsub.Subscriber
	tracker    *typing.Tracker
	sender     Sender
	logger     *slog.Logger
}

// NewSubscriber creates the chat module's bus subscriber.
func NewSubscriber(sub pubsub.Subscriber, tracker *typing.Tracker, sender Sender) *Subscriber {
	return &Subscriber{
		subscriber: sub,
		tracker:    tracker,
		sender:     sender,
		logger:     slog.Default().With("service", "chat.subscriber"),
	}
}

// Start begins listening for chat-related bus traffic. Subscriptions run
// until the context is canceled.
func (s *Subscriber) Start(ctx context.Context) {
	s.logger.Info("Starting chat subscriber")

	if err := s.subscriber.Subscribe(ctx, topics.TypingSignals.Name(), s.handleTypingSignal); err != nil {
		s.logger.Error("Failed to subscribe to typing signals", "error", err)
	}
	if err := s.subscriber.Subscribe(ctx, topics.ChatEvents.Name(), s.handleChatEvent); err != nil {
		s.logger.Error("Failed to subscribe to chat events", "error", err)
	}
	if err := s.subscriber.Subscribe(ctx, topics.ClientConnected.Name(), s.handleLifecycle); err != nil {
		s.logger.Error("Failed to subscribe to connect events", "error", err)
	}
	if err := s.subscriber.Subscribe(ctx, topics.ClientDisconnected.Name(), s.handleLifecycle); err != nil {
		s.logger.Error("Failed to subscribe to disconnect events", "error", err)
	}
}

// handleTypingSignal updates the tracker and relays the raw signal to every
// other connection. The sender is excluded via the message metadata.
func (s *Subscriber) handleTypingSignal(ctx context.Context, msg pubsub.Message) error {
	var signal domain.TypingSignal
	if err := json.Unmarshal(msg.Payload, &signal); err != nil {
		s.logger.Error("Failed to unmarshal typing signal", "error", err)
		return err
	}

	s.tracker.Set(signal.Username, signal.IsTyping)
	s.sender.BroadcastExcept(mustEncodeEvent(EventTyping, signal), msg.Metadata[metaKeyExclude])
	return nil
}

// handleChatEvent logs committed chat traffic. Client delivery has already
// happened through the hub; this is the audit trail.
func (s *Subscriber) handleChatEvent(ctx context.Context, msg pubsub.Message) error {
	var event domain.ChatEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		s.logger.Error("Failed to unmarshal chat event", "error", err)
		return err
	}

	s.logger.Info("Chat event", "kind", event.Kind, "username", event.Username, "text", event.Text)
	return nil
}

func (s *Subscriber) handleLifecycle(ctx context.Context, msg pubsub.Message) error {
	s.logger.Debug("Connection lifecycle event", "topic", msg.Topic, "connection_id", msg.ConnectionID)
	return nil
}
