package api

import "time"

// UnitStatus describes one managed service unit of the gateway.
type UnitStatus struct {
	Name  string    `json:"name"`
	State string    `json:"state"`
	Since time.Time `json:"since"`
	Error string    `json:"error,omitempty"`
}

// HealthReporter exposes the orchestrator's view of the gateway to the
// API without the API depending on the orchestration code.
type HealthReporter interface {
	// Ready reports whether every unit has started successfully.
	Ready() bool
	// Units returns the current state of each unit, in startup order.
	Units() []UnitStatus
}
