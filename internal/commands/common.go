package commands

import (
	"fmt"

	"github.com/hearthgate/hearthgate/internal/config"
	"github.com/hearthgate/hearthgate/internal/log"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	Verbose    bool
}

// loadConfigOrFail loads and validates the configuration, then applies
// the configured log level unless -verbose already forced debug.
func loadConfigOrFail(ctx *AppContext) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	if !ctx.Verbose {
		log.SetLevel(cfg.General.LogLevel)
	}

	return cfg, nil
}
