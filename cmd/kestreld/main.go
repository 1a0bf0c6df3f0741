// Command kestreld runs a Kestrel ledger node: the actor graph, the
// submission endpoint and the telemetry endpoint, under one coordinated
// lifecycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/kestrelnode/kestrel/config"
	"github.com/kestrelnode/kestrel/node"
	"github.com/kestrelnode/kestrel/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kestreld: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to the configuration file (searches default locations when empty)")
	flag.Parse()

	loader := config.NewLoader()
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = loader.Load(*configFile)
	} else {
		cfg, err = loader.AutoLoad()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Node.Name, cfg.Log.Level.String(), cfg.Node.Environment.String())

	// With an explicit config file the log level follows edits to it. The
	// rest of the configuration needs a restart.
	if *configFile != "" {
		watcher, err := config.NewWatcher(*configFile, loader)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		watcher.OnChange(func(oldCfg, newCfg *config.Config) {
			if newCfg.Log.Level == oldCfg.Log.Level {
				return
			}
			lvl, err := zerolog.ParseLevel(newCfg.Log.Level.String())
			if err != nil {
				logger.Warn().Str("level", newCfg.Log.Level.String()).Msg("ignoring invalid log level")
				return
			}
			zerolog.SetGlobalLevel(lvl)
			logger.Info().Str("level", lvl.String()).Msg("log level updated")
		})
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		defer watcher.Stop()
	}

	n, err := node.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build node: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return n.Run(ctx)
}
