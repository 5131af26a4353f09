package networking

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/hearthgate/hearthgate/internal/config"
)

// DivertChain is the dedicated chain representing "connection already
// classified". Packets sent here are marked and accepted without ever
// reaching the redirect rules again.
const DivertChain = "HEARTHGATE_DIVERT"

// Built-in iptables tables and chains used by the interception rules.
const (
	TableMangle = "mangle"
	TableNat    = "nat"
	TableFilter = "filter"

	ChainPrerouting  = "PREROUTING"
	ChainPostrouting = "POSTROUTING"
	ChainForward     = "FORWARD"
)

// Ports intercepted and redirected to the transparent proxy.
var interceptPorts = []uint16{80, 443}

// RuleAction is the action a matching rule takes.
type RuleAction int

const (
	// ActionAccept stops evaluation in the current table and lets the packet pass.
	ActionAccept RuleAction = iota
	// ActionMark tags the packet with a connection mark. Non-terminal.
	ActionMark
	// ActionJump descends into another chain.
	ActionJump
	// ActionRedirect rewrites the destination to a local port. Terminal.
	ActionRedirect
	// ActionMasquerade rewrites the source address to the gateway's own. Terminal.
	ActionMasquerade
)

// Rule is one interception rule: a match predicate plus an action.
// Rules within a chain are order-sensitive; evaluation stops at the
// first matching terminal action.
type Rule struct {
	Table string
	Chain string

	// Match predicate. Zero values match everything.
	Proto           string
	DPorts          []uint16
	InInterface     string
	NotOutInterface string
	CtStates        []string

	// Action and its parameters.
	Action       RuleAction
	JumpChain    string
	SetMark      uint32
	RedirectPort uint16
}

// Spec renders the rule as iptables arguments (everything after the chain name).
func (r *Rule) Spec() []string {
	var spec []string

	if r.Proto != "" {
		spec = append(spec, "-p", r.Proto)
	}
	if len(r.DPorts) == 1 {
		spec = append(spec, "--dport", strconv.Itoa(int(r.DPorts[0])))
	} else if len(r.DPorts) > 1 {
		ports := make([]string, len(r.DPorts))
		for i, p := range r.DPorts {
			ports[i] = strconv.Itoa(int(p))
		}
		spec = append(spec, "-m", "multiport", "--dports", strings.Join(ports, ","))
	}
	if r.InInterface != "" {
		spec = append(spec, "-i", r.InInterface)
	}
	if r.NotOutInterface != "" {
		spec = append(spec, "!", "-o", r.NotOutInterface)
	}
	if len(r.CtStates) > 0 {
		spec = append(spec, "-m", "conntrack", "--ctstate", strings.Join(r.CtStates, ","))
	}

	switch r.Action {
	case ActionAccept:
		spec = append(spec, "-j", "ACCEPT")
	case ActionMark:
		spec = append(spec, "-j", "MARK", "--set-mark", strconv.FormatUint(uint64(r.SetMark), 10))
	case ActionJump:
		spec = append(spec, "-j", r.JumpChain)
	case ActionRedirect:
		spec = append(spec, "-j", "REDIRECT", "--to-ports", strconv.Itoa(int(r.RedirectPort)))
	case ActionMasquerade:
		spec = append(spec, "-j", "MASQUERADE")
	}

	return spec
}

func (r *Rule) String() string {
	return fmt.Sprintf("-t %s -A %s %s", r.Table, r.Chain, strings.Join(r.Spec(), " "))
}

// InterceptRuleSet is the full ordered interception rule set for a given
// proxy port. The order of Rules is significant and mirrors the order in
// which they are appended to the kernel.
type InterceptRuleSet struct {
	ProxyPort uint16
	FwMark    uint32

	Rules []*Rule

	// ExtraRules are operator-supplied templated rules, already expanded.
	ExtraRules []*config.RuleTemplate
}

// BuildInterceptRules constructs the interception rule set from the
// gateway configuration. The result is pure data: nothing is applied to
// the kernel until Firewall.Apply is called.
func BuildInterceptRules(cfg *config.Config) *InterceptRuleSet {
	mark := cfg.Firewall.FwMark
	proxyPort := cfg.Proxy.Port

	rules := []*Rule{
		// Divert chain: connection is already classified. Tag it and let it pass.
		{Table: TableMangle, Chain: DivertChain, Action: ActionMark, SetMark: mark},
		{Table: TableMangle, Chain: DivertChain, Action: ActionAccept},

		// Loopback traffic passes unmarked. The nat rule below keeps it off
		// the proxy; this one keeps it out of the fwmark routing table.
		{Table: TableMangle, Chain: ChainPrerouting, InInterface: "lo", Action: ActionAccept},

		// Packets of kernel-tracked connections go to the divert chain so
		// established flows are never re-intercepted mid-stream.
		{Table: TableMangle, Chain: ChainPrerouting, CtStates: []string{"ESTABLISHED", "RELATED"}, Action: ActionJump, JumpChain: DivertChain},

		// New HTTP/HTTPS connections carry the classification mark.
		{Table: TableMangle, Chain: ChainPrerouting, Proto: "tcp", DPorts: interceptPorts, CtStates: []string{"NEW"}, Action: ActionMark, SetMark: mark},

		// The proxy's own outbound connections enter on loopback and must
		// not be re-redirected, or redirection loops forever.
		{Table: TableNat, Chain: ChainPrerouting, InInterface: "lo", Action: ActionAccept},

		// Transparent redirect of new HTTP/HTTPS connections to the proxy.
		{Table: TableNat, Chain: ChainPrerouting, Proto: "tcp", DPorts: interceptPorts, CtStates: []string{"NEW"}, Action: ActionRedirect, RedirectPort: proxyPort},

		// LAN clients' outbound traffic appears to originate from the gateway.
		{Table: TableNat, Chain: ChainPostrouting, NotOutInterface: "lo", Action: ActionMasquerade},
	}

	return &InterceptRuleSet{
		ProxyPort:  proxyPort,
		FwMark:     mark,
		Rules:      rules,
		ExtraRules: expandRuleTemplates(cfg),
	}
}

// expandRuleTemplates substitutes template variables in operator-supplied rules.
func expandRuleTemplates(cfg *config.Config) []*config.RuleTemplate {
	expanded := make([]*config.RuleTemplate, 0, len(cfg.Firewall.ExtraRules))

	for _, tmpl := range cfg.Firewall.ExtraRules {
		spec := make([]string, len(tmpl.Rule))
		for i, part := range tmpl.Rule {
			spec[i] = expandRulePart(part, cfg)
		}
		expanded = append(expanded, &config.RuleTemplate{
			Table: expandRulePart(tmpl.Table, cfg),
			Chain: expandRulePart(tmpl.Chain, cfg),
			Rule:  spec,
		})
	}

	return expanded
}

func expandRulePart(template string, cfg *config.Config) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	t := fasttemplate.New(template, "{{", "}}")
	return t.ExecuteString(map[string]interface{}{
		config.TmplProxyPort: strconv.Itoa(int(cfg.Proxy.Port)),
		config.TmplFwMark:    strconv.FormatUint(uint64(cfg.Firewall.FwMark), 10),
		config.TmplTable:     strconv.Itoa(cfg.Firewall.RouteTable),
		config.TmplPriority:  strconv.Itoa(cfg.Firewall.RulePriority),
	})
}
