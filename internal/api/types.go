package api

import "github.com/hearthgate/hearthgate/internal/storage"

// Store is the subset of the storage layer the API reads and writes.
type Store interface {
	Devices() []storage.Device
	RenameDevice(id, name string) (storage.Device, error)
	RecentConnections(limit int, deviceIP string) []storage.ConnectionRecord
	RecentQueries(limit int, deviceIP string) []storage.DNSQueryRecord
	Overview() storage.OverviewStats
	TopDomains(limit int) []storage.DomainCount
	HourlyTraffic(hours int) []storage.HourlyTraffic
}

// RenameDeviceRequest is the body of PUT /devices/{id}/name.
type RenameDeviceRequest struct {
	Name string `json:"name"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Ready bool         `json:"ready"`
	Units []UnitStatus `json:"units"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// RealtimeSnapshot is one message pushed over the realtime websocket.
type RealtimeSnapshot struct {
	Ts          string                     `json:"ts"`
	Overview    storage.OverviewStats      `json:"overview"`
	Devices     []storage.Device           `json:"devices"`
	Connections []storage.ConnectionRecord `json:"connections"`
	Queries     []storage.DNSQueryRecord   `json:"queries"`
}
