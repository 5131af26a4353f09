package commands

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hearthgate/hearthgate/internal/api"
	"github.com/hearthgate/hearthgate/internal/components"
	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/dnsproxy"
	"github.com/hearthgate/hearthgate/internal/log"
	"github.com/hearthgate/hearthgate/internal/networking"
	"github.com/hearthgate/hearthgate/internal/proxy"
	"github.com/hearthgate/hearthgate/internal/storage"
)

func CreateServeCommand() *ServeCommand {
	return &ServeCommand{
		fs: flag.NewFlagSet("serve", flag.ExitOnError),
	}
}

// ServeCommand runs the gateway: it brings every component up in order
// and keeps them running until a shutdown signal arrives.
type ServeCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (s *ServeCommand) Name() string {
	return s.fs.Name()
}

func (s *ServeCommand) Init(args []string, ctx *AppContext) error {
	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfigOrFail(ctx)
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func (s *ServeCommand) Run() error {
	log.Infof("Starting hearthgate (dns :%d, proxy :%d, api :%d)...",
		s.cfg.DNS.Port, s.cfg.Proxy.Port, s.cfg.API.Port)

	store := storage.NewStore(s.cfg)

	monitor, err := dnsproxy.NewMonitor(s.cfg, store)
	if err != nil {
		return err
	}

	firewall, err := networking.NewFirewall(s.cfg)
	if err != nil {
		return err
	}

	transparentProxy := proxy.NewTransparentProxy(s.cfg, store)

	status := components.NewStatus([]string{
		components.UnitForwarding,
		components.UnitRules,
		components.UnitDNSMonitor,
		components.UnitStorage,
		components.UnitTransparentProxy,
		components.UnitControlAPI,
	})

	apiServer := components.NewAPIServer(api.NewServer(s.cfg, store, status))

	orchestrator := components.NewOrchestrator([]components.Component{
		components.NewForwarding(),
		components.NewFirewallRules(firewall),
		components.NewDNSMonitor(monitor),
		components.NewStorageService(store),
		components.NewTransparentProxy(transparentProxy),
		apiServer,
	}, status)

	if err := orchestrator.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received signal %v, shutting down...", sig)
	case err := <-apiServer.Err():
		log.Errorf("API server failed: %v", err)
	}

	return orchestrator.Stop()
}
