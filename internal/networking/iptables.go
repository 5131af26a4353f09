package networking

import (
	"fmt"

	"github.com/coreos/go-iptables/iptables"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
)

// ipTables is the subset of go-iptables used by the firewall, plus the
// backend's own notion of which errors mean "object already exists".
// realIpTables adapts *iptables.IPTables; tests use a fake.
type ipTables interface {
	ListChains(table string) ([]string, error)
	ClearChain(table, chain string) error
	NewChain(table, chain string) error
	DeleteChain(table, chain string) error
	Append(table, chain string, rulespec ...string) error
	DeleteIfExists(table, chain string, rulespec ...string) error
	ChangePolicy(table, chain, target string) error
	IsExistsErr(err error) bool
}

// realIpTables adapts go-iptables to the ipTables seam.
type realIpTables struct {
	*iptables.IPTables
}

// IsExistsErr reports whether an iptables error means "object already
// exists" (exit status 1), which idempotent operations swallow.
func (r realIpTables) IsExistsErr(err error) bool {
	eerr, ok := err.(*iptables.Error)
	return ok && eerr.ExitStatus() == 1
}

// Firewall owns the kernel packet-classification state of the gateway.
// The kernel tables are a host-wide singleton: only one gateway instance
// may hold this state at a time, and nothing else in the process mutates
// it. This cannot be enforced in-process.
type Firewall struct {
	ipt     ipTables
	routing policyRouting
	rules   *InterceptRuleSet
}

// NewFirewall creates a firewall for the given configuration, talking to
// the real kernel via iptables and netlink.
func NewFirewall(cfg *config.Config) (*Firewall, error) {
	ipt, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, errors.NewRuleError("failed to initialize iptables", err)
	}

	return &Firewall{
		ipt:     realIpTables{ipt},
		routing: buildPolicyRouting(cfg.Firewall),
		rules:   BuildInterceptRules(cfg),
	}, nil
}

// RuleSet returns the declarative rule set this firewall applies.
func (f *Firewall) RuleSet() *InterceptRuleSet {
	return f.rules
}

// Apply installs the full interception rule set. It is idempotent: the
// affected tables are flushed before rules are re-added, and "already
// exists" outcomes while creating chains or routing policies count as
// success. Any other failure aborts immediately; a partial rule set must
// not be left running, so callers treat an error here as fatal.
func (f *Firewall) Apply() error {
	log.Infof("Applying interception rules (proxy port %d, mark %d)...", f.rules.ProxyPort, f.rules.FwMark)

	// Start from a known state.
	for _, table := range []string{TableMangle, TableNat} {
		if err := f.flushTable(table); err != nil {
			return errors.NewRuleError(fmt.Sprintf("failed to flush %s table", table), err)
		}
	}

	if err := f.ensureEmptyChain(TableMangle, DivertChain); err != nil {
		return errors.NewRuleError(fmt.Sprintf("failed to create chain %s", DivertChain), err)
	}

	for _, rule := range f.rules.Rules {
		log.Debugf("Adding iptables rule [%v]", rule)
		if err := f.ipt.Append(rule.Table, rule.Chain, rule.Spec()...); err != nil {
			return errors.NewRuleError(fmt.Sprintf("failed to add rule [%v]", rule), err)
		}
	}

	// Marked packets are looped back locally instead of being forwarded.
	if err := f.routing.Ensure(); err != nil {
		return errors.NewRuleError("failed to apply routing policy", err)
	}

	// The gateway still relays the traffic it does not intercept.
	if err := f.ipt.ChangePolicy(TableFilter, ChainForward, "ACCEPT"); err != nil {
		return errors.NewRuleError("failed to set FORWARD policy", err)
	}

	for _, extra := range f.rules.ExtraRules {
		log.Debugf("Adding extra iptables rule [%s/%s %v]", extra.Table, extra.Chain, extra.Rule)
		if err := f.ipt.Append(extra.Table, extra.Chain, extra.Rule...); err != nil {
			return errors.NewRuleError(fmt.Sprintf("failed to add extra rule [%s/%s %v]", extra.Table, extra.Chain, extra.Rule), err)
		}
	}

	log.Infof("Interception rules applied")
	return nil
}

// Undo removes the interception rules, the divert chain and the routing
// policy. Used by the undo command and on orderly shutdown.
func (f *Firewall) Undo() error {
	log.Infof("Removing interception rules...")

	for _, table := range []string{TableMangle, TableNat} {
		if err := f.flushTable(table); err != nil {
			return errors.NewRuleError(fmt.Sprintf("failed to flush %s table", table), err)
		}
	}

	if err := f.ipt.DeleteChain(TableMangle, DivertChain); err != nil {
		if !f.ipt.IsExistsErr(err) {
			log.Debugf("Failed to delete chain %s: %v", DivertChain, err)
		}
	}

	if err := f.routing.Remove(); err != nil {
		return errors.NewRuleError("failed to remove routing policy", err)
	}

	log.Infof("Interception rules removed")
	return nil
}

// flushTable clears all rules from every chain of the given table.
func (f *Firewall) flushTable(table string) error {
	chains, err := f.ipt.ListChains(table)
	if err != nil {
		return err
	}
	for _, chain := range chains {
		if err := f.ipt.ClearChain(table, chain); err != nil {
			return err
		}
	}
	return nil
}

// ensureEmptyChain creates the chain, and when creation fails because the
// chain already exists, flushes it instead. Any other failure propagates.
func (f *Firewall) ensureEmptyChain(table, chain string) error {
	err := f.ipt.NewChain(table, chain)
	if err == nil {
		return nil
	}
	if f.ipt.IsExistsErr(err) {
		log.Debugf("Chain %s/%s already exists, flushing it", table, chain)
		return f.ipt.ClearChain(table, chain)
	}
	return err
}
