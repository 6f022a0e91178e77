package hub_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/hub"
	"github.com/nfrund/relay/internal/pubsub"
)

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, msg pubsub.Message) error { return nil }
func (nopPublisher) Close() error                                          { return nil }

// recordingHandler captures frames and disconnects delivered by the hub.
type recordingHandler struct {
	mu          sync.Mutex
	frames      []string
	connections []string
	disconnects []string
}

func (r *recordingHandler) HandleFrame(connectionID string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, connectionID)
	r.frames = append(r.frames, string(frame))
}

func (r *recordingHandler) HandleDisconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnects = append(r.disconnects, connectionID)
}

func (r *recordingHandler) frameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *recordingHandler) disconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.disconnects)
}

func setupHub(t *testing.T) (*hub.Hub, *recordingHandler, *httptest.Server) {
	t.Helper()

	h := hub.New(nopPublisher{})
	handler := &recordingHandler{}
	h.SetHandler(handler)

	e := echo.New()
	e.GET("/ws", h.Handler())
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return h, handler, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	return string(data)
}

func TestHub_BroadcastAllReachesEveryConnection(t *testing.T) {
	h, _, server := setupHub(t)

	conn1 := dial(t, server)
	conn2 := dial(t, server)

	require.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 10*time.Millisecond)

	h.BroadcastAll([]byte("hello"))

	assert.Equal(t, "hello", readFrame(t, conn1))
	assert.Equal(t, "hello", readFrame(t, conn2))
}

func TestHub_BroadcastExceptSkipsTheSender(t *testing.T) {
	h, handler, server := setupHub(t)

	conn1 := dial(t, server)
	conn2 := dial(t, server)

	require.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 10*time.Millisecond)

	// Learn conn1's connection ID by sending a frame through it.
	require.NoError(t, conn1.Write(context.Background(), websocket.MessageText, []byte("ping")))
	require.Eventually(t, func() bool { return handler.frameCount() == 1 }, time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	senderID := handler.connections[0]
	handler.mu.Unlock()

	h.BroadcastExcept([]byte("to-others"), senderID)
	h.BroadcastAll([]byte("to-all"))

	// conn2 sees both frames; conn1 only sees the second.
	assert.Equal(t, "to-others", readFrame(t, conn2))
	assert.Equal(t, "to-all", readFrame(t, conn2))
	assert.Equal(t, "to-all", readFrame(t, conn1))
}

func TestHub_SendToTargetsOneConnection(t *testing.T) {
	h, handler, server := setupHub(t)

	conn1 := dial(t, server)
	conn2 := dial(t, server)

	require.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn1.Write(context.Background(), websocket.MessageText, []byte("ping")))
	require.Eventually(t, func() bool { return handler.frameCount() == 1 }, time.Second, 10*time.Millisecond)

	handler.mu.Lock()
	targetID := handler.connections[0]
	handler.mu.Unlock()

	h.SendTo(targetID, []byte("direct"))
	h.BroadcastAll([]byte("broadcast"))

	assert.Equal(t, "direct", readFrame(t, conn1))
	assert.Equal(t, "broadcast", readFrame(t, conn1))
	assert.Equal(t, "broadcast", readFrame(t, conn2))
}

func TestHub_SendToUnknownConnectionIsANoOp(t *testing.T) {
	h, _, server := setupHub(t)
	_ = dial(t, server)

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)

	// Must not panic or error.
	h.SendTo("no-such-connection", []byte("lost"))
}

func TestHub_DisconnectNotifiesHandlerExactlyOnce(t *testing.T) {
	h, handler, server := setupHub(t)

	conn := dial(t, server)
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return handler.disconnectCount() == 1 }, time.Second, 10*time.Millisecond)

	// Give any stray duplicate notification a chance to land.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, handler.disconnectCount())
}
