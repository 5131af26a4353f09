package components

import (
	"fmt"

	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
)

// Orchestrator starts the gateway's components in strict order and
// tears them down in reverse. A component failure aborts startup
// immediately: a gateway missing any stage would blackhole or leak
// client traffic, so partial operation is never allowed.
type Orchestrator struct {
	components []Component
	status     *Status
	started    []Component
}

// NewOrchestrator creates an orchestrator for the given components.
// The slice order is the startup order.
func NewOrchestrator(components []Component, status *Status) *Orchestrator {
	return &Orchestrator{
		components: components,
		status:     status,
	}
}

// Status returns the shared status tracker.
func (o *Orchestrator) Status() *Status {
	return o.status
}

// Start brings up every component in order. Each component is started,
// then probed for readiness when it supports probing, before the next
// one begins. On failure the already-started components are stopped in
// reverse and the error is returned.
func (o *Orchestrator) Start() error {
	for _, c := range o.components {
		name := c.Name()
		log.Infof("Starting %s...", name)
		o.status.MarkStarting(name)

		if err := c.Start(); err != nil {
			o.status.MarkFailed(name, err)
			o.stopStarted()
			return errors.NewProcessError(fmt.Sprintf("failed to start %s", name), err)
		}
		o.started = append(o.started, c)

		if rc, ok := c.(readyChecker); ok {
			if err := rc.WaitReady(); err != nil {
				o.status.MarkFailed(name, err)
				o.stopStarted()
				return errors.NewProcessError(fmt.Sprintf("%s failed readiness check", name), err)
			}
		}

		o.status.MarkReady(name)
		log.Infof("%s is ready", name)
	}

	log.Infof("All components started")
	return nil
}

// Stop tears down the started components in reverse order. Every
// component gets its Stop call even when an earlier one fails; the
// first error is returned.
func (o *Orchestrator) Stop() error {
	var firstErr error
	for i := len(o.started) - 1; i >= 0; i-- {
		c := o.started[i]
		name := c.Name()
		log.Infof("Stopping %s...", name)

		if err := c.Stop(); err != nil {
			log.Errorf("Failed to stop %s: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			o.status.MarkStopped(name)
		}
	}
	o.started = nil
	return firstErr
}

func (o *Orchestrator) stopStarted() {
	if err := o.Stop(); err != nil {
		log.Errorf("Teardown after failed startup reported: %v", err)
	}
}
