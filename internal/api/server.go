package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
)

// Server is the control-plane HTTP server.
type Server struct {
	httpServer *http.Server
	serveErrs  chan error
}

// NewServer creates the API server from the gateway configuration.
func NewServer(cfg *config.Config, store Store, health HealthReporter) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("0.0.0.0:%d", cfg.API.Port),
			Handler:      NewRouter(store, health),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		serveErrs: make(chan error, 1),
	}
}

// Start binds the listener and serves in the background. Binding
// happens synchronously so a busy port fails here, not later.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errors.NewProcessError(fmt.Sprintf("failed to listen on %s", s.httpServer.Addr), err)
	}

	log.Infof("API server listening on %s", ln.Addr())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.serveErrs <- errors.NewProcessError("API server failed", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Err returns the channel carrying a fatal serve error, if one occurs.
func (s *Server) Err() <-chan error {
	return s.serveErrs
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
