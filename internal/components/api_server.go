package components

import (
	"context"
	"time"

	"github.com/hearthgate/hearthgate/internal/api"
)

// UnitControlAPI is the control-plane HTTP server.
const UnitControlAPI = "ControlAPI"

const apiShutdownTimeout = 5 * time.Second

// APIServer wraps the control-plane server as a managed component.
// The server binds synchronously in Start, so no readiness probe is
// needed.
type APIServer struct {
	server *api.Server
}

func NewAPIServer(server *api.Server) *APIServer {
	return &APIServer{server: server}
}

func (a *APIServer) Name() string {
	return UnitControlAPI
}

func (a *APIServer) Start() error {
	return a.server.Start()
}

func (a *APIServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
	defer cancel()
	return a.server.Stop(ctx)
}

// Err exposes the server's fatal error channel for supervision.
func (a *APIServer) Err() <-chan error {
	return a.server.Err()
}
