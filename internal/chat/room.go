// Package chat implements the relay's connection manager: the per-connection
// state machine, the inbound event dispatch table, and the orchestration of
// the session registry, history buffer, typing tracker and broadcast hub.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nfrund/relay/internal/domain"
	"github.com/nfrund/relay/internal/history"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/session"
	"github.com/nfrund/relay/internal/topics"
)

// User-facing texts, unchanged from the original deployment.
const (
	textJoined          = "%s님이 입장했습니다"
	textLeft            = "%s님이 퇴장했습니다"
	textNameTaken       = "이미 사용 중인 닉네임입니다."
	textNameInvalid     = "사용할 수 없는 닉네임입니다."
	textJoinRequired    = "join required"
	textMessageRejected = "invalid message"
)

// metaKeyExclude carries the sender's connection ID on typing signals so the
// relay can skip it during fan-out.
const metaKeyExclude = "exclude"

// Sender is the slice of the hub the room needs: best-effort frame delivery
// to all, all-but-one, or a single connection.
type Sender interface {
	BroadcastAll(frame []byte)
	BroadcastExcept(frame []byte, excludedConnectionID string)
	SendTo(connectionID string, frame []byte)
}

// Dependencies holds the services the Room requires to operate.
type Dependencies struct {
	Registry  *session.Registry
	History   *history.Buffer
	Sender    Sender
	Publisher pubsub.Publisher
}

type frameHandlerFunc func(sess *Session, payload json.RawMessage)

// Room coordinates every live connection of the single chat room.
//
// All state mutation and the matching broadcast enqueues happen under one
// mutex, so a joining connection's history replay and its subsequent live
// deliveries can have no gaps and no duplicates. Enqueueing is non-blocking;
// actual network writes happen in the hub's write pumps, never under the lock.
type Room struct {
	mu       sync.Mutex
	sessions map[string]*Session

	registry  *session.Registry
	history   *history.Buffer
	sender    Sender
	publisher pubsub.Publisher
	validate  *validator.Validate
	logger    *slog.Logger

	dispatch map[string]frameHandlerFunc
}

// NewRoom creates the room and its dispatch table.
func NewRoom(deps Dependencies) *Room {
	r := &Room{
		sessions:  make(map[string]*Session),
		registry:  deps.Registry,
		history:   deps.History,
		sender:    deps.Sender,
		publisher: deps.Publisher,
		validate:  validator.New(),
		logger:    slog.Default().With("service", "chat"),
	}
	r.dispatch = map[string]frameHandlerFunc{
		EventCheckUsername: r.handleCheckUsername,
		EventJoin:          r.handleJoin,
		EventMessage:       r.handleMessage,
		EventTyping:        r.handleTyping,
		EventLeave:         r.handleLeave,
	}
	return r
}

// HandleFrame implements hub.FrameHandler. Frames for different connections
// may arrive concurrently; each handler serializes shared-state access on the
// room mutex.
func (r *Room) HandleFrame(connectionID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.logger.Warn("Dropping malformed frame", "connection_id", connectionID, "error", err)
		return
	}

	handler, ok := r.dispatch[env.Type]
	if !ok {
		r.logger.Warn("Dropping frame with unknown type", "connection_id", connectionID, "type", env.Type)
		return
	}

	handler(r.sessionFor(connectionID), env.Payload)
}

// HandleDisconnect implements hub.FrameHandler. It runs the leave path for
// transport-level closes; leave-then-disconnect collapses to one cleanup.
func (r *Room) HandleDisconnect(connectionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[connectionID]
	delete(r.sessions, connectionID)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.leave(sess)
}

// sessionFor returns the connection's session record, creating it on the
// first frame.
func (r *Room) sessionFor(connectionID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[connectionID]; ok {
		return sess
	}
	sess := newSession(connectionID)
	r.sessions[connectionID] = sess
	return sess
}

// handleCheckUsername answers an advisory availability probe. It reserves
// nothing: a subsequent join can still lose the race.
func (r *Room) handleCheckUsername(sess *Session, payload json.RawMessage) {
	var req CheckUsernamePayload
	if err := r.decode(payload, &req); err != nil {
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventError, ErrorPayload{Message: textNameInvalid}))
		return
	}

	r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventUsernameChecked, UsernameCheckedPayload{
		Username:    req.Username,
		IsAvailable: r.registry.IsNameAvailable(req.Username),
	}))
}

// handleJoin moves a connection from Connecting to Joined. On a name
// collision the connection stays in Connecting and only the joiner hears
// about it.
func (r *Room) handleJoin(sess *Session, payload json.RawMessage) {
	var req JoinPayload
	if err := r.decode(payload, &req); err != nil {
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventJoinError, ErrorPayload{Message: textNameInvalid}))
		return
	}

	r.mu.Lock()
	if sess.state != StateConnecting {
		r.mu.Unlock()
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventJoinError, ErrorPayload{Message: textNameInvalid}))
		return
	}

	identity, err := r.registry.Register(sess.ConnectionID, req.Username)
	if err != nil {
		r.mu.Unlock()
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventJoinError, ErrorPayload{Message: textNameTaken}))
		return
	}

	sess.state = StateJoined
	sess.identity = identity

	// Replay the full history to the joiner first, then announce the join to
	// everyone including the joiner, then the refreshed user list. All three
	// happen under the room lock so no event can slip between replay and live
	// delivery.
	for _, event := range r.history.Snapshot() {
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventMessage, event))
	}

	announcement := domain.NewSystemEvent(fmt.Sprintf(textJoined, identity.Username))
	r.history.Append(announcement)
	r.sender.BroadcastAll(mustEncodeEvent(EventMessage, announcement))
	r.sender.BroadcastAll(mustEncodeEvent(EventUsers, r.registry.Online()))
	r.mu.Unlock()

	r.logger.Info("User joined", "username", identity.Username, "connection_id", sess.ConnectionID)
	r.publishEventTap(announcement)
}

// handleMessage relays a user message. Non-joined senders are rejected with
// an error envelope rather than silently dropped.
func (r *Room) handleMessage(sess *Session, payload json.RawMessage) {
	var req MessagePayload
	if err := r.decode(payload, &req); err != nil {
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventError, ErrorPayload{Message: textMessageRejected}))
		return
	}

	r.mu.Lock()
	if sess.state != StateJoined {
		r.mu.Unlock()
		r.sender.SendTo(sess.ConnectionID, mustEncodeEvent(EventError, ErrorPayload{Message: textJoinRequired}))
		return
	}

	// The username always comes from the bound identity, never the payload.
	event := domain.NewUserMessage(sess.identity.Username, req.Text)
	r.history.Append(event)
	r.sender.BroadcastAll(mustEncodeEvent(EventMessage, event))
	r.mu.Unlock()

	r.publishEventTap(event)
}

// handleTyping forwards a composing signal to the bus. The subscriber updates
// the tracker and relays it to every other connection; typing carries no
// ordering contract, so the async hop is fine.
func (r *Room) handleTyping(sess *Session, payload json.RawMessage) {
	var req TypingPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}

	r.mu.Lock()
	joined := sess.state == StateJoined
	username := sess.identity.Username
	r.mu.Unlock()
	if !joined {
		return
	}

	r.publishTyping(sess.ConnectionID, username, req.IsTyping)
}

// handleLeave runs the explicit leave path. The payload's username is
// ignored; the identity bound at join time is authoritative.
func (r *Room) handleLeave(sess *Session, payload json.RawMessage) {
	r.leave(sess)
}

// leave unregisters the identity, announces the departure and refreshes the
// user list, exactly once per session no matter how often it is invoked.
func (r *Room) leave(sess *Session) {
	sess.leaveOnce.Do(func() {
		r.mu.Lock()
		wasJoined := sess.state == StateJoined
		sess.state = StateClosed

		if !wasJoined {
			r.mu.Unlock()
			return
		}

		identity, ok := r.registry.Unregister(sess.ConnectionID)
		if !ok {
			r.mu.Unlock()
			return
		}

		announcement := domain.NewSystemEvent(fmt.Sprintf(textLeft, identity.Username))
		r.history.Append(announcement)
		r.sender.BroadcastAll(mustEncodeEvent(EventMessage, announcement))
		r.sender.BroadcastAll(mustEncodeEvent(EventUsers, r.registry.Online()))
		r.mu.Unlock()

		r.logger.Info("User left", "username", identity.Username, "connection_id", sess.ConnectionID)
		r.publishEventTap(announcement)
		// Clear any lingering typing state for the departed user.
		r.publishTyping(sess.ConnectionID, identity.Username, false)
	})
}

func (r *Room) decode(payload json.RawMessage, into any) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := r.validate.Struct(into); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	return nil
}

// publishTyping puts a raw typing signal on the bus with the sender excluded
// from fan-out.
func (r *Room) publishTyping(connectionID, username string, isTyping bool) {
	payload, _ := json.Marshal(domain.TypingSignal{Username: username, IsTyping: isTyping})
	msg := pubsub.Message{
		Topic:        topics.TypingSignals.Name(),
		ConnectionID: connectionID,
		Payload:      payload,
		Metadata:     map[string]string{metaKeyExclude: connectionID},
	}
	if err := r.publisher.Publish(context.Background(), msg); err != nil {
		r.logger.Error("Failed to publish typing signal", "username", username, "error", err)
	}
}

// publishEventTap mirrors a committed chat event onto the bus for decoupled
// consumers. Client delivery has already happened through the hub.
func (r *Room) publishEventTap(event domain.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to marshal chat event", "event_id", event.ID, "error", err)
		return
	}
	msg := pubsub.Message{
		Topic:   topics.ChatEvents.Name(),
		Payload: payload,
	}
	if err := r.publisher.Publish(context.Background(), msg); err != nil {
		r.logger.Error("Failed to publish chat event", "event_id", event.ID, "error", err)
	}
}
