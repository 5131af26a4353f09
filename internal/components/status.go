package components

import (
	"sync"
	"time"

	"github.com/hearthgate/hearthgate/internal/api"
)

// Unit states as reported through the status API.
const (
	StateNotStarted = "not_started"
	StateStarting   = "starting"
	StateReady      = "ready"
	StateFailed     = "failed"
	StateStopped    = "stopped"
)

// Transition is one recorded unit state change.
type Transition struct {
	Unit  string
	State string
	At    time.Time
}

// Status tracks the lifecycle state of every managed unit. It
// implements the API's health reporter so /health and /status reflect
// the orchestrator's view.
type Status struct {
	mu          sync.RWMutex
	order       []string
	states      map[string]string
	since       map[string]time.Time
	errors      map[string]string
	transitions []Transition
}

// NewStatus creates a status tracker for the given units, which are
// reported in the given order.
func NewStatus(units []string) *Status {
	s := &Status{
		order:  append([]string(nil), units...),
		states: make(map[string]string, len(units)),
		since:  make(map[string]time.Time, len(units)),
		errors: make(map[string]string, len(units)),
	}
	now := time.Now()
	for _, unit := range units {
		s.states[unit] = StateNotStarted
		s.since[unit] = now
	}
	return s
}

func (s *Status) set(unit, state, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(unit, state, errMsg)
}

func (s *Status) setLocked(unit, state, errMsg string) {
	now := time.Now()
	s.states[unit] = state
	s.since[unit] = now
	s.errors[unit] = errMsg
	s.transitions = append(s.transitions, Transition{Unit: unit, State: state, At: now})
}

func (s *Status) MarkStarting(unit string) { s.set(unit, StateStarting, "") }
func (s *Status) MarkReady(unit string)    { s.set(unit, StateReady, "") }

// MarkStopped records an orderly stop. A failed unit keeps its failure:
// teardown after an aborted startup must not erase the cause.
func (s *Status) MarkStopped(unit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[unit] == StateFailed {
		return
	}
	s.setLocked(unit, StateStopped, "")
}

func (s *Status) MarkFailed(unit string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.set(unit, StateFailed, msg)
}

// Ready reports whether every unit is up.
func (s *Status) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, unit := range s.order {
		if s.states[unit] != StateReady {
			return false
		}
	}
	return true
}

// Units returns the current state of each unit in startup order.
func (s *Status) Units() []api.UnitStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.UnitStatus, 0, len(s.order))
	for _, unit := range s.order {
		out = append(out, api.UnitStatus{
			Name:  unit,
			State: s.states[unit],
			Since: s.since[unit],
			Error: s.errors[unit],
		})
	}
	return out
}

// Transitions returns the recorded state changes in chronological order.
func (s *Status) Transitions() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transition(nil), s.transitions...)
}
