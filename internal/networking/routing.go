package networking

import (
	"fmt"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/log"
)

// policyRouting maintains the policy routes for marked packets.
// The netlink-backed implementation talks to the kernel; tests use a fake.
type policyRouting interface {
	Ensure() error
	Remove() error
}

// netlinkRouting loops marked packets back to the gateway itself: an ip
// rule sends fwmark-carrying packets to a dedicated table, and that table
// holds a single local default route.
type netlinkRouting struct {
	fw *config.FirewallConfig
}

func buildPolicyRouting(fw *config.FirewallConfig) policyRouting {
	return &netlinkRouting{fw: fw}
}

func (nr *netlinkRouting) Ensure() error {
	rule := BuildMarkRule(nr.fw.FwMark, nr.fw.RouteTable, nr.fw.RulePriority)
	if _, err := rule.AddIfNotExists(); err != nil {
		return fmt.Errorf("failed to add ip rule for mark %d: %w", nr.fw.FwMark, err)
	}

	route, err := BuildLocalDefaultRoute(nr.fw.RouteTable)
	if err != nil {
		return err
	}
	if _, err := route.AddIfNotExists(); err != nil {
		return fmt.Errorf("failed to add local route in table %d: %w", nr.fw.RouteTable, err)
	}

	return nil
}

func (nr *netlinkRouting) Remove() error {
	rule := BuildMarkRule(nr.fw.FwMark, nr.fw.RouteTable, nr.fw.RulePriority)
	if _, err := rule.DelIfExists(); err != nil {
		return fmt.Errorf("failed to delete ip rule for mark %d: %w", nr.fw.FwMark, err)
	}

	if err := DelIpRouteTable(nr.fw.RouteTable); err != nil {
		log.Warnf("Failed to clear route table %d: %v", nr.fw.RouteTable, err)
		return err
	}

	return nil
}
