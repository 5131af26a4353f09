package components

import (
	"github.com/hearthgate/hearthgate/internal/networking"
)

// UnitRules is the interception rule set in the kernel.
const UnitRules = "Rules"

// FirewallRules applies the interception rules on start and removes
// them on stop, so a stopped gateway leaves no traffic blackholed.
type FirewallRules struct {
	firewall *networking.Firewall
}

func NewFirewallRules(firewall *networking.Firewall) *FirewallRules {
	return &FirewallRules{firewall: firewall}
}

func (f *FirewallRules) Name() string {
	return UnitRules
}

func (f *FirewallRules) Start() error {
	return f.firewall.Apply()
}

func (f *FirewallRules) Stop() error {
	return f.firewall.Undo()
}
