package networking

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"github.com/hearthgate/hearthgate/internal/log"
)

// IpRule wraps a netlink policy-routing rule directing marked packets to
// a routing table.
type IpRule struct {
	*netlink.Rule
}

func (r *IpRule) String() string {
	return fmt.Sprintf("rule %d: fwmark=%d -> table %d", r.Priority, r.Mark, r.Table)
}

// BuildMarkRule builds an ip rule sending packets carrying fwmark to table.
func BuildMarkRule(fwmark uint32, table int, priority int) *IpRule {
	ipr := netlink.NewRule()

	ipr.Table = table
	ipr.Mark = fwmark
	ipr.Priority = priority
	ipr.Family = netlink.FAMILY_V4

	return &IpRule{ipr}
}

func (ipr *IpRule) Add() error {
	log.Debugf("Adding IP rule [%v]", ipr)
	if err := netlink.RuleAdd(ipr.Rule); err != nil {
		log.Warnf("Failed to add IP rule [%v]: %v", ipr, err)
		return err
	}

	return nil
}

// AddIfNotExists adds the rule unless an equivalent rule is already
// present. Re-adding an existing policy is a no-op, not an error.
func (ipr *IpRule) AddIfNotExists() (bool, error) {
	if exists, err := ipr.IsExists(); err != nil {
		return false, err
	} else if !exists {
		if err := ipr.Add(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (ipr *IpRule) IsExists() (bool, error) {
	filtered, err := netlink.RuleListFiltered(ipr.Family, ipr.Rule, netlink.RT_FILTER_TABLE|netlink.RT_FILTER_MARK|netlink.RT_FILTER_PRIORITY)
	if err != nil {
		log.Warnf("Checking if IP rule exists [%v] is failed: %v", ipr, err)
		return false, err
	}
	if len(filtered) > 0 {
		log.Debugf("Checking if IP rule exists [%v]: YES", ipr)
		return true, nil
	}

	log.Debugf("Checking if IP rule exists [%v]: NO", ipr)
	return false, nil
}

func (ipr *IpRule) Del() error {
	log.Debugf("Deleting IP rule [%v]", ipr)
	if err := netlink.RuleDel(ipr.Rule); err != nil {
		log.Warnf("Failed to delete IP rule [%v]: %v", ipr, err)
		return err
	}

	return nil
}

// DelIfExists deletes the rule if it is present.
func (ipr *IpRule) DelIfExists() (bool, error) {
	if exists, err := ipr.IsExists(); err != nil {
		return false, err
	} else if exists {
		if err := ipr.Del(); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
