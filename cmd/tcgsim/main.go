package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tcgsim/tcgsim-go/internal/config"
	"github.com/tcgsim/tcgsim-go/internal/game/card"
	"github.com/tcgsim/tcgsim-go/internal/logging"
	"github.com/tcgsim/tcgsim-go/internal/repository"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	deckPath   = flag.String("deck", "", "optional deck list (count,name CSV) for preview games")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Debug("starting tcgsim console",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("verbosity", cfg.Logging.Verbosity),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	d := newDriver(os.Stdin, os.Stdout, cfg, store, logger)
	if *deckPath != "" {
		f, err := os.Open(*deckPath)
		if err != nil {
			logger.Fatal("failed to open deck list", zap.String("path", *deckPath), zap.Error(err))
		}
		d.deck, err = card.ParseDeckList(f)
		f.Close()
		if err != nil {
			logger.Fatal("failed to parse deck list", zap.String("path", *deckPath), zap.Error(err))
		}
	}

	if err := d.run(ctx); err != nil {
		logger.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
}
