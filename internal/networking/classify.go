package networking

import "fmt"

// Packet describes an inbound packet for classification purposes.
type Packet struct {
	Proto       string
	DstPort     uint16
	InInterface string
	// Established is true when the packet belongs to a kernel-tracked connection.
	Established bool
}

// Verdict is the classification outcome for a packet.
type Verdict struct {
	// Redirect is true when the packet is diverted to the local proxy.
	Redirect bool
	// RedirectPort is the local port the packet is delivered to when Redirect is set.
	RedirectPort uint16
	// Mark is the connection mark carried by the packet, 0 if unmarked.
	Mark uint32
}

func (v Verdict) String() string {
	if v.Redirect {
		return fmt.Sprintf("redirect to port %d (mark %d)", v.RedirectPort, v.Mark)
	}
	if v.Mark != 0 {
		return fmt.Sprintf("forward (mark %d)", v.Mark)
	}
	return "forward"
}

// Classify evaluates the rule set against a packet the way the kernel
// traverses it on the prerouting path: first the mangle table, then nat.
// Within a chain, evaluation stops at the first matching terminal action.
// This never touches the kernel and backs both the self-check command and
// the rule-semantics tests.
func (rs *InterceptRuleSet) Classify(pkt Packet) Verdict {
	v := Verdict{}

	rs.walkChain(TableMangle, ChainPrerouting, pkt, &v)
	rs.walkChain(TableNat, ChainPrerouting, pkt, &v)

	return v
}

// walkChain evaluates one chain and returns true if a terminal action fired.
func (rs *InterceptRuleSet) walkChain(table, chain string, pkt Packet, v *Verdict) bool {
	for _, r := range rs.Rules {
		if r.Table != table || r.Chain != chain {
			continue
		}
		if !r.matches(pkt) {
			continue
		}

		switch r.Action {
		case ActionMark:
			v.Mark = r.SetMark
		case ActionAccept:
			return true
		case ActionJump:
			if rs.walkChain(table, r.JumpChain, pkt, v) {
				return true
			}
		case ActionRedirect:
			v.Redirect = true
			v.RedirectPort = r.RedirectPort
			return true
		case ActionMasquerade:
			return true
		}
	}
	return false
}

func (r *Rule) matches(pkt Packet) bool {
	if r.Proto != "" && r.Proto != pkt.Proto {
		return false
	}
	if len(r.DPorts) > 0 && !containsPort(r.DPorts, pkt.DstPort) {
		return false
	}
	if r.InInterface != "" && r.InInterface != pkt.InInterface {
		return false
	}
	if len(r.CtStates) > 0 && !matchesCtState(r.CtStates, pkt.Established) {
		return false
	}
	return true
}

func containsPort(ports []uint16, port uint16) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

func matchesCtState(states []string, established bool) bool {
	for _, s := range states {
		switch s {
		case "NEW":
			if !established {
				return true
			}
		case "ESTABLISHED", "RELATED":
			if established {
				return true
			}
		}
	}
	return false
}
