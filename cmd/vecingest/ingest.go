package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/vecingest/internal/pipeline"
	"github.com/urfave/cli/v2"
)

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("Usage: vecingest ingest <dir>", 1)
	}
	dir := c.Args().First()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return cli.Exit(fmt.Sprintf("Error: '%s' is not a directory", dir), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := slog.Default()
	rt, err := buildRuntime(ctx, c, cfg, log)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer rt.Close(log)

	log.Info("starting ingest", "dir", dir, "run_id", rt.orch.RunID(), "store", cfg.StoreBackend,
		"embed_provider", cfg.EmbedProvider, "concurrency", cfg.Concurrency)

	sum, err := rt.orch.ProcessDir(ctx, dir)
	if errors.Is(err, pipeline.ErrNotDirectory) {
		return cli.Exit(fmt.Sprintf("Error: '%s' is not a directory", dir), 1)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintf(c.App.Writer, "Done: %d succeeded, %d failed, %d chunks.\n", sum.Succeeded, sum.Failed, sum.Chunks)
	return nil
}
