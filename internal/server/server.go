package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/relay/internal/chat"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/history"
	"github.com/nfrund/relay/internal/hub"
	"github.com/nfrund/relay/internal/logging"
	"github.com/nfrund/relay/internal/middleware"
	"github.com/nfrund/relay/internal/module"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/registry"
	"github.com/nfrund/relay/internal/session"
	"github.com/nfrund/relay/internal/typing"
)

// Server holds the dependencies for the relay.
type Server struct {
	E   *echo.Echo
	Cfg config.Provider

	// PubSub is exported so integration tests can publish onto the bus.
	PubSub *pubsub.WatermillBridge

	Hub      *hub.Hub
	Room     *chat.Room
	Registry *registry.Registry

	sessions *session.Registry
	history  *history.Buffer
	tracker  *typing.Tracker
	modules  []module.Module

	bootCancel context.CancelFunc
}

// New creates a fully wired Server instance.
func New() *Server {
	logging.New()

	cfg, err := config.New()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig wires a server around the given configuration. Tests use it
// to control timings without touching the environment.
func NewWithConfig(cfg config.Provider) *Server {
	bus := pubsub.NewWatermillBridge()

	sessions := session.NewRegistry()
	buf := history.NewBuffer(cfg.GetHistoryLimit())
	tracker := typing.NewTracker(
		typing.WithTTL(cfg.GetTypingTTL()),
		typing.WithSweepInterval(cfg.GetTypingSweepInterval()),
	)

	h := hub.New(bus)
	room := chat.NewRoom(chat.Dependencies{
		Registry:  sessions,
		History:   buf,
		Sender:    h,
		Publisher: bus,
	})
	h.SetHandler(room)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)

	reg := registry.New(cfg)
	registry.Set(reg, chat.RegistryKey, sessions)
	registry.Set(reg, chat.HistoryKey, buf)

	chatModule := chat.NewModule(chat.ModuleDependencies{
		Room:       room,
		Tracker:    tracker,
		Subscriber: bus,
		Sender:     h,
	})

	return &Server{
		E:        e,
		Cfg:      cfg,
		PubSub:   bus,
		Hub:      h,
		Room:     room,
		Registry: reg,
		sessions: sessions,
		history:  buf,
		tracker:  tracker,
		modules:  append([]module.Module{}, AppModules(chatModule)...),
	}
}

// RegisterRoutes sets up all application routes and boots the modules.
func (s *Server) RegisterRoutes() {
	s.E.GET("/ws", s.Hub.Handler())
	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.bootCancel = cancel

	api := s.E.Group("/api")
	for _, m := range s.modules {
		if err := m.Register(s.Registry); err != nil {
			slog.Error("Module registration failed", "module", m.Name(), "error", err)
			os.Exit(1)
		}
	}
	for _, m := range s.modules {
		if err := m.Boot(ctx, api, s.Registry); err != nil {
			slog.Error("Module boot failed", "module", m.Name(), "error", err)
			os.Exit(1)
		}
	}
}
