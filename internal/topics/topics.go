// Package topics names the pub/sub topics the relay's components exchange
// events on. Keeping them in one place prevents typo'd topic strings from
// silently splitting a conversation.
package topics

// Topic identifies a named channel on the in-process message bus.
type Topic string

// Name returns the topic's string form, suitable for the pubsub layer.
func (t Topic) Name() string { return string(t) }

var (
	// TypingSignals carries raw typing on/off signals from connections.
	// The publisher sets the "exclude" metadata key to the sender's
	// connection ID so the relay can skip it during fan-out.
	TypingSignals = Topic("chat.typing.signals")

	// ChatEvents is a tap of every chat event (user message or system
	// announcement) after it has been committed to history. Consumers must
	// not assume delivery order relative to WebSocket fan-out.
	ChatEvents = Topic("chat.events")

	// ClientConnected is published when a WebSocket connection is accepted.
	ClientConnected = Topic("system.websocket.connected")

	// ClientDisconnected is published when a WebSocket connection goes away,
	// whether by explicit leave or transport failure.
	ClientDisconnected = Topic("system.websocket.disconnected")
)
