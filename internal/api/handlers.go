package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	defaultRecentLimit = 100
	maxRecentLimit     = 1000

	defaultTopDomains = 20
	maxTopDomains     = 100

	defaultTrafficHours = 24
	maxTrafficHours     = 168
)

// Handler serves the gateway's control-plane endpoints.
type Handler struct {
	store  Store
	health HealthReporter
}

func NewHandler(store Store, health HealthReporter) *Handler {
	return &Handler{store: store, health: health}
}

// GetOverview handles GET /api/v1/stats/overview.
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Overview())
}

// GetDevices handles GET /api/v1/devices.
func (h *Handler) GetDevices(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Devices())
}

// RenameDevice handles PUT /api/v1/devices/{id}/name.
func (h *Handler) RenameDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RenameDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteInvalidRequest(w, "invalid JSON body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteInvalidRequest(w, "name must not be empty")
		return
	}

	device, err := h.store.RenameDevice(id, name)
	if err != nil {
		WriteNotFound(w, "device")
		return
	}
	WriteJSON(w, http.StatusOK, device)
}

// GetRecentConnections handles GET /api/v1/connections/recent.
func (h *Handler) GetRecentConnections(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultRecentLimit, maxRecentLimit)
	if !ok {
		return
	}
	deviceIP := r.URL.Query().Get("device_ip")
	WriteJSON(w, http.StatusOK, h.store.RecentConnections(limit, deviceIP))
}

// GetRecentQueries handles GET /api/v1/dns/recent.
func (h *Handler) GetRecentQueries(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultRecentLimit, maxRecentLimit)
	if !ok {
		return
	}
	deviceIP := r.URL.Query().Get("device_ip")
	WriteJSON(w, http.StatusOK, h.store.RecentQueries(limit, deviceIP))
}

// GetHourlyTraffic handles GET /api/v1/stats/traffic/hourly.
func (h *Handler) GetHourlyTraffic(w http.ResponseWriter, r *http.Request) {
	hours := defaultTrafficHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteInvalidRequest(w, "hours must be a positive integer")
			return
		}
		hours = parsed
	}
	if hours > maxTrafficHours {
		hours = maxTrafficHours
	}
	WriteJSON(w, http.StatusOK, h.store.HourlyTraffic(hours))
}

// GetTopDomains handles GET /api/v1/stats/top-domains.
func (h *Handler) GetTopDomains(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultTopDomains, maxTopDomains)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, h.store.TopDomains(limit))
}

// GetStatus handles GET /api/v1/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, StatusResponse{
		Ready: h.health.Ready(),
		Units: h.health.Units(),
	})
}

// CheckHealth handles GET /api/v1/health. It answers 503 until every
// unit has come up, so external probes see the whole gateway, not just
// the HTTP listener.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if !h.health.Ready() {
		WriteNotReady(w, "gateway is starting")
		return
	}
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func parseLimit(w http.ResponseWriter, r *http.Request, def, max int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		WriteInvalidRequest(w, "limit must be a positive integer")
		return 0, false
	}
	if limit > max {
		limit = max
	}
	return limit, true
}
