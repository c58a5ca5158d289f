package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func initStoreCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := cfg.ValidateStore(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if cfg.EmbedDimension <= 0 {
		return cli.Exit("dimension must be positive", 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default()
	vs, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeStore()

	if err := vs.EnsureIndex(ctx, cfg.EmbedDimension); err != nil {
		return cli.Exit(fmt.Sprintf("init %s store: %v", cfg.StoreBackend, err), 1)
	}
	fmt.Fprintf(c.App.Writer, "%s store ready (dimension %d).\n", cfg.StoreBackend, cfg.EmbedDimension)
	return nil
}
