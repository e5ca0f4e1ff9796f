// Package server exposes the running pipeline's metrics over HTTP: a
// JSON status/config/logs API and a WebSocket endpoint that pushes
// Snapshot updates, so the watch TUI (or any other client) can observe
// a pipeline without attaching to its process.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jfoltran/intake/internal/config"
	"github.com/jfoltran/intake/internal/metrics"
)

// Server is the HTTP server that serves the status API and WebSocket
// endpoint described in the configuration's http.addr.
type Server struct {
	collector *metrics.Collector
	cfg       *config.Config
	logger    zerolog.Logger
	hub       *Hub
	srv       *http.Server
}

// New creates a new Server.
func New(collector *metrics.Collector, cfg *config.Config, logger zerolog.Logger) *Server {
	hub := newHub(collector, logger)
	return &Server{
		collector: collector,
		cfg:       cfg,
		logger:    logger.With().Str("component", "http-server").Logger(),
		hub:       hub,
	}
}

// Start begins serving on addr (host:port). It blocks until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	h := &handlers{collector: s.collector, cfg: s.cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", h.status)
	mux.HandleFunc("GET /api/v1/config", h.configHandler)
	mux.HandleFunc("GET /api/v1/logs", h.logs)
	mux.HandleFunc("/api/v1/ws", s.hub.handleWS)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	go s.hub.start(ctx)

	s.logger.Info().Str("addr", addr).Msg("starting status server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.srv.Close()
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	}
}

// StartBackground starts the server in a goroutine (non-blocking).
func (s *Server) StartBackground(ctx context.Context, addr string) {
	go func() {
		if err := s.Start(ctx, addr); err != nil {
			s.logger.Err(err).Msg("status server error")
		}
	}()
}
