package chat

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/history"
	"github.com/nfrund/relay/internal/session"
	"github.com/nfrund/relay/internal/typing"
)

// Handler serves the read-only JSON inspection endpoints. The live protocol
// runs over the WebSocket; these exist for the presentation layer and for
// poking at a running relay.
type Handler struct {
	registry *session.Registry
	history  *history.Buffer
	tracker  *typing.Tracker
}

// NewHandler creates the chat module's HTTP handler.
func NewHandler(registry *session.Registry, buf *history.Buffer, tracker *typing.Tracker) *Handler {
	return &Handler{
		registry: registry,
		history:  buf,
		tracker:  tracker,
	}
}

// MessagesGet returns the retained history, oldest first.
func (h *Handler) MessagesGet(c echo.Context) error {
	return c.JSON(http.StatusOK, h.history.Snapshot())
}

// UsersGet returns the currently online identities.
func (h *Handler) UsersGet(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Online())
}

// TypingGet returns the usernames currently composing a message.
func (h *Handler) TypingGet(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Active())
}
