package components

import (
	"fmt"
	"net"
	"time"

	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
)

const (
	probeInitialDelay = 50 * time.Millisecond
	probeMaxDelay     = 1 * time.Second
	probeTimeout      = 10 * time.Second
)

// waitReady polls probe with exponential backoff until it succeeds or
// the overall timeout elapses. Replaces fixed startup sleeps: a slow
// component delays startup only as long as it actually needs.
func waitReady(name string, probe func() error) error {
	deadline := time.Now().Add(probeTimeout)
	delay := probeInitialDelay

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = probe()
		if lastErr == nil {
			log.Debugf("%s is ready (attempt %d)", name, attempt)
			return nil
		}
		if time.Now().Add(delay).After(deadline) {
			break
		}

		log.Debugf("%s not ready yet (attempt %d): %v", name, attempt, lastErr)
		time.Sleep(delay)
		delay *= 2
		if delay > probeMaxDelay {
			delay = probeMaxDelay
		}
	}

	return errors.NewDependencyNotReadyError(
		fmt.Sprintf("%s did not become ready within %v", name, probeTimeout), lastErr)
}

// loopbackAddr rewrites a wildcard listen address to its loopback
// equivalent for probing.
func loopbackAddr(addr string) string {
	if host, port, err := net.SplitHostPort(addr); err == nil && (host == "0.0.0.0" || host == "" || host == "::") {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return addr
}
