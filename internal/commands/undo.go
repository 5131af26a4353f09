package commands

import (
	"flag"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/networking"
)

func CreateUndoCommand() *UndoCommand {
	return &UndoCommand{
		fs: flag.NewFlagSet("undo", flag.ExitOnError),
	}
}

// UndoCommand removes the interception rules and routing policy,
// reverting the apply command.
type UndoCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (g *UndoCommand) Name() string {
	return g.fs.Name()
}

func (g *UndoCommand) Init(args []string, ctx *AppContext) error {
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

func (g *UndoCommand) Run() error {
	firewall, err := networking.NewFirewall(g.cfg)
	if err != nil {
		return err
	}

	return firewall.Undo()
}
