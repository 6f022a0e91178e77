// Package hub owns the set of open WebSocket connections and fans frames out
// to them. It is deliberately ignorant of the chat protocol: it moves opaque
// byte frames and reports connection lifecycle to a FrameHandler.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/topics"
)

// sendQueueSize bounds the per-client outbound buffer. A client that falls
// this far behind starts losing frames rather than stalling the broadcaster.
const sendQueueSize = 256

// FrameHandler receives inbound frames and disconnect notifications.
// The chat room implements it.
type FrameHandler interface {
	// HandleFrame is invoked for every frame a connection reads.
	HandleFrame(connectionID string, frame []byte)
	// HandleDisconnect is invoked exactly once per connection after its read
	// pump ends, whether the close was explicit or a transport failure.
	HandleDisconnect(connectionID string)
}

// Hub manages the lifecycle of WebSocket clients and delivers frames to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	handler   FrameHandler
	publisher pubsub.Publisher
}

// New creates a Hub. The frame handler is attached afterwards with
// SetHandler because the room and the hub reference each other.
func New(publisher pubsub.Publisher) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		publisher: publisher,
	}
}

// SetHandler attaches the protocol layer. It must be called before the hub
// accepts its first connection.
func (h *Hub) SetHandler(handler FrameHandler) {
	h.handler = handler
}

// Handler returns the echo handler that upgrades requests to WebSocket
// connections and starts the per-connection pumps.
func (h *Hub) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			// The relay fronts a same-origin client app; authorization beyond
			// name uniqueness is out of scope.
			InsecureSkipVerify: true,
		})
		if err != nil {
			slog.Error("Failed to upgrade connection to WebSocket", "error", err)
			return err
		}

		client := &Client{
			ID:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, sendQueueSize),
			hub:  h,
		}

		h.mu.Lock()
		h.clients[client.ID] = client
		total := len(h.clients)
		h.mu.Unlock()
		slog.Info("Client connected", "connection_id", client.ID, "total_clients", total)

		go client.writePump()
		go client.readPump()

		h.publishLifecycle(topics.ClientConnected, client.ID, "")

		return nil
	}
}

// drop removes a client, closes its send queue and notifies the protocol
// layer. Safe to call more than once per client; only the first call after
// registration does anything.
func (h *Hub) drop(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	total := len(h.clients)
	h.mu.Unlock()

	client.close()
	slog.Info("Client disconnected", "connection_id", client.ID, "total_clients", total, "reason", reason)

	if h.handler != nil {
		h.handler.HandleDisconnect(client.ID)
	}

	h.publishLifecycle(topics.ClientDisconnected, client.ID, reason)
}

// BroadcastAll delivers the frame to every currently open connection.
func (h *Hub) BroadcastAll(frame []byte) {
	for _, client := range h.snapshot() {
		client.enqueue(frame)
	}
}

// BroadcastExcept delivers the frame to every open connection except one,
// typically the sender of a typing signal.
func (h *Hub) BroadcastExcept(frame []byte, excludedConnectionID string) {
	for _, client := range h.snapshot() {
		if client.ID == excludedConnectionID {
			continue
		}
		client.enqueue(frame)
	}
}

// SendTo delivers the frame to a single connection. A connection that is
// mid-close simply does not receive it; no error surfaces.
func (h *Hub) SendTo(connectionID string, frame []byte) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()

	if !ok {
		return
	}
	client.enqueue(frame)
}

// Len reports the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every open connection.
func (h *Hub) Shutdown() {
	for _, client := range h.snapshot() {
		client.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// snapshot copies the client set so fan-out never holds the lock while
// touching per-client state.
func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		out = append(out, client)
	}
	return out
}

func (h *Hub) publishLifecycle(topic topics.Topic, connectionID, reason string) {
	payload, _ := json.Marshal(map[string]string{
		"connectionID": connectionID,
		"reason":       reason,
	})
	msg := pubsub.Message{
		Topic:        topic.Name(),
		ConnectionID: connectionID,
		Payload:      payload,
	}
	if err := h.publisher.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish lifecycle event", "topic", topic.Name(), "error", err)
	}
}
