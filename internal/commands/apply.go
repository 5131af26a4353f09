package commands

import (
	"flag"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/networking"
)

func CreateApplyCommand() *ApplyCommand {
	gc := &ApplyCommand{
		fs: flag.NewFlagSet("apply", flag.ExitOnError),
	}

	gc.fs.BoolVar(&gc.SkipForwarding, "skip-forwarding", false, "Do not touch the IPv4 forwarding sysctl")

	return gc
}

// ApplyCommand installs the interception rules without running the
// gateway services. Useful for restoring rules after an external flush.
type ApplyCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config

	SkipForwarding bool
}

func (g *ApplyCommand) Name() string {
	return g.fs.Name()
}

func (g *ApplyCommand) Init(args []string, ctx *AppContext) error {
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

func (g *ApplyCommand) Run() error {
	if !g.SkipForwarding {
		if err := networking.EnableForwarding(); err != nil {
			return err
		}
	}

	firewall, err := networking.NewFirewall(g.cfg)
	if err != nil {
		return err
	}

	return firewall.Apply()
}
