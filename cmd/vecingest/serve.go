package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/vecingest/internal/api"
	"github.com/dgallion1/vecingest/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if err := cfg.ValidateServe(); err != nil {
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

	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	queue := pipeline.NewQueue(rt.orch, pipeline.QueueConfig{
		Workers:      cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, log)

	srv := api.NewServer(api.Deps{
		Queue:    queue,
		Ledger:   rt.ledger,
		Stats:    rt.stats,
		Gatherer: rt.registry,
	}, api.Options{
		APIKey:         cfg.APIKey,
		SpoolDir:       cfg.SpoolDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	queue.Start(gctx)

	g.Go(func() error {
		log.Info("starting vecingest", "port", cfg.Port, "run_id", rt.orch.RunID(), "store", cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		queue.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return cli.Exit(err.Error(), 1)
	}
	return nil
}
