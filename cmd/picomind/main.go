// picomind learns topics from web search into a persistent knowledge base
// and serves recall, consolidation and statistics over it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sipeed/picomind/pkg/config"
	"github.com/sipeed/picomind/pkg/logger"
)

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".picomind", "config.json")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.workspace != "" {
		cfg.Workspace = opts.workspace
	}
	if opts.backend != "" {
		cfg.Storage.Backend = opts.backend
	}
	if opts.offline {
		cfg.Search.Offline = true
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return nil, err
	}
	return cfg, nil
}
