package components

// Component represents a service component with lifecycle management.
type Component interface {
	// Start starts the component.
	Start() error

	// Stop stops the component.
	Stop() error

	// Name returns the component name for logging and status reporting.
	Name() string
}

// readyChecker is implemented by components whose Start returns before
// the component can actually serve. The orchestrator blocks on WaitReady
// before moving on to the next component.
type readyChecker interface {
	WaitReady() error
}
