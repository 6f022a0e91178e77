package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start runs the HTTP server and blocks until an interrupt or terminate
// signal arrives, then shuts everything down gracefully.
func (s *Server) Start() {
	go func() {
		if err := s.E.Start(s.Cfg.GetAddr()); err != nil && err != http.ErrServerClosed {
			// Failing to bind the listening port is the one startup-fatal
			// condition.
			s.E.Logger.Fatalf("shutting down the server: %v", err)
		}
	}()
	slog.Info("Relay listening", "addr", s.Cfg.GetAddr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), s.Cfg.GetShutdownTimeout())
	defer cancel()
	s.Shutdown(ctx)
}

// Shutdown stops the modules, closes every client connection and the bus,
// then stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) {
	for _, m := range s.modules {
		if err := m.Shutdown(ctx); err != nil {
			slog.Error("Module shutdown failed", "module", m.Name(), "error", err)
		}
	}
	if s.bootCancel != nil {
		s.bootCancel()
	}

	s.Hub.Shutdown()

	if err := s.PubSub.Close(); err != nil {
		slog.Error("Failed to close pub/sub bridge", "error", err)
	}

	if err := s.E.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
}
