package networking

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/hearthgate/hearthgate/internal/log"
)

// IpRoute wraps a netlink route in a gateway-managed routing table.
type IpRoute struct {
	*netlink.Route
}

func (r *IpRoute) String() string {
	dst := "all"
	if r.Dst != nil && r.Dst.String() != "<nil>" {
		dst = r.Dst.String()
	}
	return fmt.Sprintf("table %d: dst=%s type=%d dev-idx=%d", r.Table, dst, r.Type, r.LinkIndex)
}

// BuildLocalDefaultRoute builds a route that treats every destination in
// the given table as local, delivering redirected packets to a socket
// bound on this host instead of forwarding them externally.
func BuildLocalDefaultRoute(table int) (*IpRoute, error) {
	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return nil, fmt.Errorf("failed to find loopback interface: %w", err)
	}

	route := netlink.Route{
		Table:     table,
		Type:      unix.RTN_LOCAL,
		Scope:     netlink.SCOPE_HOST,
		LinkIndex: lo.Attrs().Index,
		Family:    netlink.FAMILY_V4,
		Dst: &net.IPNet{
			IP:   net.IPv4zero,
			Mask: net.CIDRMask(0, 32),
		},
	}

	return &IpRoute{&route}, nil
}

func (ipr *IpRoute) Add() error {
	log.Debugf("Adding IP route [%v]", ipr)
	if err := netlink.RouteAdd(ipr.Route); err != nil {
		log.Warnf("Failed to add IP route [%v]: %v", ipr, err)
		return err
	}

	return nil
}

// AddIfNotExists adds the route unless the table already contains it.
func (ipr *IpRoute) AddIfNotExists() (bool, error) {
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

func (ipr *IpRoute) IsExists() (bool, error) {
	filtered, err := netlink.RouteListFiltered(ipr.Family, ipr.Route, netlink.RT_FILTER_TABLE|netlink.RT_FILTER_TYPE)
	if err != nil {
		log.Warnf("Checking if IP route exists [%v] is failed: %v", ipr, err)
		return false, err
	}
	if len(filtered) > 0 {
		log.Debugf("Checking if IP route exists [%v]: YES", ipr)
		return true, nil
	}

	log.Debugf("Checking if IP route exists [%v]: NO", ipr)
	return false, nil
}

func (ipr *IpRoute) Del() error {
	log.Debugf("Deleting IP route [%v]", ipr)
	if err := netlink.RouteDel(ipr.Route); err != nil {
		log.Warnf("Failed to delete IP route [%v]: %v", ipr, err)
		return err
	}

	return nil
}

// DelIpRouteTable removes every route in the given routing table.
func DelIpRouteTable(table int) error {
	log.Debugf("Deleting IP route table [%d]", table)
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_ALL, &netlink.Route{Table: table}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return err
	}

	for _, route := range routes {
		if err := netlink.RouteDel(&route); err != nil {
			return err
		}
	}

	return nil
}
