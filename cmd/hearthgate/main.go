package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hearthgate/hearthgate/internal/commands"
	"github.com/hearthgate/hearthgate/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	ctx := &commands.AppContext{}

	flag.StringVar(&ctx.ConfigPath, "config", "/etc/hearthgate/hearthgate.conf", "Path to configuration file")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Hearthgate Parental Control Gateway\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  serve                   Run the gateway (interception, DNS monitor, proxy, API)\n")
		fmt.Fprintf(os.Stderr, "  apply                   Install interception rules without running services\n")
		fmt.Fprintf(os.Stderr, "  undo                    Remove interception rules (reverts \"apply\")\n")
		fmt.Fprintf(os.Stderr, "  self-check              Print rules and sample traffic classification\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if ctx.Verbose {
		log.SetVerbose(true)
	}

	cmds := []commands.Runner{
		commands.CreateServeCommand(),
		commands.CreateApplyCommand(),
		commands.CreateUndoCommand(),
		commands.CreateSelfCheckCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				log.Fatalf("Failed to initialize command: %v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("Failed to run command: %v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
