package networking

import (
	"os"
	"strings"

	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
)

// ipForwardPath is the sysctl file controlling IPv4 forwarding.
// Overridable in tests.
var ipForwardPath = "/proc/sys/net/ipv4/ip_forward"

// EnableForwarding turns on IPv4 packet forwarding. Without it the
// gateway silently drops every packet a LAN client sends through it.
func EnableForwarding() error {
	if enabled, err := IsForwardingEnabled(); err == nil && enabled {
		log.Debugf("IPv4 forwarding is already enabled")
		return nil
	}

	log.Infof("Enabling IPv4 forwarding...")
	if err := os.WriteFile(ipForwardPath, []byte("1\n"), 0644); err != nil {
		return errors.NewProcessError("failed to enable IPv4 forwarding", err)
	}

	return nil
}

// IsForwardingEnabled reports the current state of IPv4 forwarding.
func IsForwardingEnabled() (bool, error) {
	data, err := os.ReadFile(ipForwardPath)
	if err != nil {
		return false, errors.NewProcessError("failed to read IPv4 forwarding state", err)
	}

	return strings.TrimSpace(string(data)) == "1", nil
}
