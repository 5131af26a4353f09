package commands

import (
	"flag"
	"fmt"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/networking"
)

func CreateSelfCheckCommand() *SelfCheckCommand {
	return &SelfCheckCommand{
		fs: flag.NewFlagSet("self-check", flag.ExitOnError),
	}
}

// SelfCheckCommand prints the interception rule set and how sample
// traffic would be classified, without touching the kernel.
type SelfCheckCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (g *SelfCheckCommand) Name() string {
	return g.fs.Name()
}

func (g *SelfCheckCommand) Init(args []string, ctx *AppContext) error {
	if err := g.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfigOrFail(ctx)
	if err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

func (g *SelfCheckCommand) Run() error {
	if enabled, err := networking.IsForwardingEnabled(); err != nil {
		fmt.Printf("IPv4 forwarding: unknown (%v)\n", err)
	} else if enabled {
		fmt.Println("IPv4 forwarding: enabled")
	} else {
		fmt.Println("IPv4 forwarding: DISABLED (run 'apply' or 'serve' to enable)")
	}

	rules := networking.BuildInterceptRules(g.cfg)

	fmt.Printf("\nInterception rules (proxy port %d, mark %d):\n", rules.ProxyPort, rules.FwMark)
	for _, rule := range rules.Rules {
		fmt.Printf("  %v\n", rule)
	}
	for _, extra := range rules.ExtraRules {
		fmt.Printf("  -t %s -A %s %v (extra)\n", extra.Table, extra.Chain, extra.Rule)
	}

	fmt.Println("\nSample traffic classification:")
	samples := []struct {
		desc string
		pkt  networking.Packet
	}{
		{"HTTP from LAN client", networking.Packet{Proto: "tcp", DstPort: 80, InInterface: "br0"}},
		{"HTTPS from LAN client", networking.Packet{Proto: "tcp", DstPort: 443, InInterface: "br0"}},
		{"HTTPS, established flow", networking.Packet{Proto: "tcp", DstPort: 443, InInterface: "br0", Established: true}},
		{"HTTPS from loopback", networking.Packet{Proto: "tcp", DstPort: 443, InInterface: "lo"}},
		{"SSH from LAN client", networking.Packet{Proto: "tcp", DstPort: 22, InInterface: "br0"}},
		{"DNS over UDP", networking.Packet{Proto: "udp", DstPort: 53, InInterface: "br0"}},
	}
	for _, s := range samples {
		fmt.Printf("  %-26s -> %v\n", s.desc, rules.Classify(s.pkt))
	}

	return nil
}
