package components

import (
	"github.com/hearthgate/hearthgate/internal/networking"
)

// UnitForwarding is the kernel IPv4 forwarding switch.
const UnitForwarding = "Forwarding"

// Forwarding enables IPv4 packet forwarding. It is left enabled on
// shutdown: other services on the host may rely on it, and disabling
// forwarding under LAN clients mid-session cuts them off abruptly.
type Forwarding struct{}

func NewForwarding() *Forwarding {
	return &Forwarding{}
}

func (f *Forwarding) Name() string {
	return UnitForwarding
}

func (f *Forwarding) Start() error {
	return networking.EnableForwarding()
}

func (f *Forwarding) Stop() error {
	return nil
}
