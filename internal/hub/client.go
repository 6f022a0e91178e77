package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Client represents a single connected WebSocket client.
type Client struct {
	// ID is the connection's unique identifier, assigned at upgrade time and
	// never reused while the connection is open.
	ID string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	mu   sync.RWMutex
}

// enqueue places a frame on the client's send queue without blocking.
// Delivery is best-effort: a full queue or a mid-close client simply drops
// the frame.
func (c *Client) enqueue(frame []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// A nil channel means the client is already disconnected.
	if c.send == nil {
		return
	}

	select {
	case c.send <- frame:
	default:
		slog.Warn("Client send queue full, dropping frame", "connection_id", c.ID)
	}
}

// close shuts the send queue exactly once, terminating the write pump.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.send != nil {
		close(c.send)
		c.send = nil
	}
}

// readPump pumps frames from the WebSocket connection into the hub's handler.
// There is at most one reader per connection: all reads happen here.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c, "read loop ended")
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, frame, err := c.conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("WebSocket closed by client", "connection_id", c.ID)
			} else {
				slog.Debug("WebSocket read ended", "connection_id", c.ID, "error", err)
			}
			return
		}

		c.hub.handler.HandleFrame(c.ID, frame)
	}
}

// writePump drains the client's send queue to the WebSocket connection.
// There is at most one writer per connection: all writes happen here.
func (c *Client) writePump() {
	defer func() {
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.mu.RLock()
	queue := c.send
	c.mu.RUnlock()
	if queue == nil {
		return
	}

	for frame := range queue {
		if err := c.conn.Write(context.Background(), websocket.MessageText, frame); err != nil {
			slog.Debug("WebSocket write failed", "connection_id", c.ID, "error", err)
			return
		}
	}
}
