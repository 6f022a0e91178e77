package chat

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/history"
	"github.com/nfrund/relay/internal/module"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/registry"
	"github.com/nfrund/relay/internal/session"
	"github.com/nfrund/relay/internal/typing"
)

// Service keys the chat module shares through the registry.
var (
	RoomKey     = registry.Key[*Room]("chat.room")
	RegistryKey = registry.Key[*session.Registry]("chat.sessions")
	HistoryKey  = registry.Key[*history.Buffer]("chat.history")
	TrackerKey  = registry.Key[*typing.Tracker]("chat.typing")
)

// Module wires the chat feature into the application kernel: background
// subscriber and sweep loop, plus the inspection routes.
type Module struct {
	module.BaseModule

	room       *Room
	tracker    *typing.Tracker
	subscriber *Subscriber

	cancel context.CancelFunc
}

// ModuleDependencies holds the services the chat module requires.
type ModuleDependencies struct {
	Room       *Room
	Tracker    *typing.Tracker
	Subscriber pubsub.Subscriber
	Sender     Sender
}

// NewModule creates the chat module with its dependencies injected.
func NewModule(deps ModuleDependencies) *Module {
	return &Module{
		room:       deps.Room,
		tracker:    deps.Tracker,
		subscriber: NewSubscriber(deps.Subscriber, deps.Tracker, deps.Sender),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Register shares the chat services with other modules.
func (m *Module) Register(reg *registry.Registry) error {
	registry.Set(reg, RoomKey, m.room)
	registry.Set(reg, TrackerKey, m.tracker)
	return nil
}

// Boot starts the background services and mounts the inspection routes.
func (m *Module) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	slog.Info("Booting chat module")

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.subscriber.Start(runCtx)
	go m.tracker.Run(runCtx)

	handler := NewHandler(
		registry.MustGet(reg, RegistryKey),
		registry.MustGet(reg, HistoryKey),
		m.tracker,
	)
	g.GET("/messages", handler.MessagesGet)
	g.GET("/users", handler.UsersGet)
	g.GET("/typing", handler.TypingGet)

	return nil
}

// Shutdown stops the background loops.
func (m *Module) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down chat module")
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}
