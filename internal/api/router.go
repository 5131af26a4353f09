package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates the HTTP router with all API endpoints.
func NewRouter(store Store, health HealthReporter) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(Logger)
	r.Use(CORS)
	r.Use(JSONContentType)

	h := NewHandler(store, health)

	r.Route("/api/v1", func(r chi.Router) {
		// Statistics endpoints
		r.Get("/stats/overview", h.GetOverview)
		r.Get("/stats/top-domains", h.GetTopDomains)
		r.Get("/stats/traffic/hourly", h.GetHourlyTraffic)

		// Devices endpoints
		r.Get("/devices", h.GetDevices)
		r.Put("/devices/{id}/name", h.RenameDevice)

		// Activity endpoints
		r.Get("/connections/recent", h.GetRecentConnections)
		r.Get("/dns/recent", h.GetRecentQueries)

		// Status and health endpoints
		r.Get("/status", h.GetStatus)
		r.Get("/health", h.CheckHealth)
	})

	// External probes check the bare path without the API prefix.
	r.Get("/health", h.CheckHealth)

	// Realtime state stream for dashboards
	r.Get("/ws/realtime", h.Realtime)

	return r
}
