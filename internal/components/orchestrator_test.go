package components

import (
	"fmt"
	"testing"
)

// fakeComponent records its lifecycle into a shared event list.
type fakeComponent struct {
	name     string
	events   *[]string
	startErr error
	stopErr  error
	readyErr error
	probed   bool
}

func (f *fakeComponent) Name() string { return f.name }

func (f *fakeComponent) Start() error {
	*f.events = append(*f.events, "start "+f.name)
	return f.startErr
}

func (f *fakeComponent) Stop() error {
	*f.events = append(*f.events, "stop "+f.name)
	return f.stopErr
}

// probedComponent additionally implements the readiness check.
type probedComponent struct {
	fakeComponent
}

func (p *probedComponent) WaitReady() error {
	p.probed = true
	*p.events = append(*p.events, "probe "+p.name)
	return p.readyErr
}

func newOrchestratorUnderTest(components ...Component) (*Orchestrator, *Status) {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name()
	}
	status := NewStatus(names)
	return NewOrchestrator(components, status), status
}

func TestOrchestrator_StartsInOrder(t *testing.T) {
	var events []string
	a := &fakeComponent{name: "a", events: &events}
	b := &probedComponent{fakeComponent{name: "b", events: &events}}
	c := &fakeComponent{name: "c", events: &events}

	o, status := newOrchestratorUnderTest(a, b, c)

	if err := o.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	expected := []string{"start a", "start b", "probe b", "start c"}
	if fmt.Sprint(events) != fmt.Sprint(expected) {
		t.Errorf("Expected events %v, got %v", expected, events)
	}

	if !status.Ready() {
		t.Error("Expected status ready after full startup")
	}
	for _, u := range status.Units() {
		if u.State != StateReady {
			t.Errorf("Expected unit %s ready, got %s", u.Name, u.State)
		}
	}
}

func TestOrchestrator_FailFastStopsStarted(t *testing.T) {
	var events []string
	a := &fakeComponent{name: "a", events: &events}
	b := &fakeComponent{name: "b", events: &events, startErr: fmt.Errorf("bind failed")}
	c := &fakeComponent{name: "c", events: &events}

	o, status := newOrchestratorUnderTest(a, b, c)

	if err := o.Start(); err == nil {
		t.Fatal("Expected Start to fail")
	}

	// c is never started; b failed to start so only a is wound down.
	expected := []string{"start a", "start b", "stop a"}
	if fmt.Sprint(events) != fmt.Sprint(expected) {
		t.Errorf("Expected events %v, got %v", expected, events)
	}

	if status.Ready() {
		t.Error("Expected status not ready after failure")
	}

	units := status.Units()
	if units[1].State != StateFailed {
		t.Errorf("Expected unit b failed, got %s", units[1].State)
	}
	if units[1].Error == "" {
		t.Error("Expected failure reason on unit b")
	}
	if units[2].State != StateNotStarted {
		t.Errorf("Expected unit c untouched, got %s", units[2].State)
	}
}

func TestOrchestrator_ReadinessFailureAborts(t *testing.T) {
	var events []string
	a := &fakeComponent{name: "a", events: &events}
	b := &probedComponent{fakeComponent{name: "b", events: &events, readyErr: fmt.Errorf("never came up")}}

	o, status := newOrchestratorUnderTest(a, b)

	if err := o.Start(); err == nil {
		t.Fatal("Expected Start to fail")
	}

	expected := []string{"start a", "start b", "probe b", "stop b", "stop a"}
	if fmt.Sprint(events) != fmt.Sprint(expected) {
		t.Errorf("Expected events %v, got %v", expected, events)
	}

	if status.Units()[1].State != StateFailed {
		t.Errorf("Expected unit b failed, got %s", status.Units()[1].State)
	}
}

func TestOrchestrator_StopReversesOrder(t *testing.T) {
	var events []string
	a := &fakeComponent{name: "a", events: &events}
	b := &fakeComponent{name: "b", events: &events}

	o, status := newOrchestratorUnderTest(a, b)
	if err := o.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events = events[:0]
	if err := o.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	expected := []string{"stop b", "stop a"}
	if fmt.Sprint(events) != fmt.Sprint(expected) {
		t.Errorf("Expected events %v, got %v", expected, events)
	}

	for _, u := range status.Units() {
		if u.State != StateStopped {
			t.Errorf("Expected unit %s stopped, got %s", u.Name, u.State)
		}
	}
}

func TestOrchestrator_StopContinuesPastErrors(t *testing.T) {
	var events []string
	a := &fakeComponent{name: "a", events: &events}
	b := &fakeComponent{name: "b", events: &events, stopErr: fmt.Errorf("stuck")}

	o, _ := newOrchestratorUnderTest(a, b)
	if err := o.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events = events[:0]
	err := o.Stop()
	if err == nil {
		t.Fatal("Expected Stop to report the error")
	}

	expected := []string{"stop b", "stop a"}
	if fmt.Sprint(events) != fmt.Sprint(expected) {
		t.Errorf("Expected both components stopped, got %v", events)
	}
}

func TestStatus_FailureSurvivesStop(t *testing.T) {
	status := NewStatus([]string{"a"})
	status.MarkStarting("a")
	status.MarkFailed("a", fmt.Errorf("bind failed"))
	status.MarkStopped("a")

	u := status.Units()[0]
	if u.State != StateFailed {
		t.Errorf("Expected unit to stay failed through stop, got %s", u.State)
	}
	if u.Error != "bind failed" {
		t.Errorf("Expected failure reason preserved, got %q", u.Error)
	}
}

func TestStatus_Transitions(t *testing.T) {
	status := NewStatus([]string{"a"})
	status.MarkStarting("a")
	status.MarkReady("a")

	tr := status.Transitions()
	if len(tr) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(tr))
	}
	if tr[0].State != StateStarting || tr[1].State != StateReady {
		t.Errorf("Unexpected transitions: %v", tr)
	}
}
