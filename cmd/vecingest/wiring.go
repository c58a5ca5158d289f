package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/vecingest/internal/chunker"
	"github.com/dgallion1/vecingest/internal/config"
	"github.com/dgallion1/vecingest/internal/embed"
	"github.com/dgallion1/vecingest/internal/ledger"
	"github.com/dgallion1/vecingest/internal/parser"
	"github.com/dgallion1/vecingest/internal/pipeline"
	"github.com/dgallion1/vecingest/internal/store"
	badgerstore "github.com/dgallion1/vecingest/internal/store/badger"
	"github.com/dgallion1/vecingest/internal/store/pgvector"
	"github.com/dgallion1/vecingest/internal/store/pinecone"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// loadConfig reads config and applies any command flags that were set.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("store") {
		cfg.StoreBackend = c.String("store")
	}
	if c.IsSet("embed-provider") {
		cfg.EmbedProvider = c.String("embed-provider")
	}
	if c.IsSet("ledger") {
		cfg.LedgerPath = c.String("ledger")
	}
	if c.IsSet("chunk-max-tokens") {
		cfg.ChunkMaxTokens = c.Int("chunk-max-tokens")
	}
	if c.IsSet("chunk-overlap") {
		cfg.ChunkOverlap = c.Int("chunk-overlap")
	}
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.RetryBaseDelay = c.Duration("retry-delay")
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}
	if c.IsSet("spool-dir") {
		cfg.SpoolDir = c.String("spool-dir")
	}
	if c.IsSet("dimension") {
		cfg.EmbedDimension = c.Int("dimension")
	}
	return cfg, nil
}

type vectorStore interface {
	store.VectorStore
	store.Bootstrapper
}

// openStore builds the configured backend. The returned func closes it.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (vectorStore, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendPinecone:
		c := pinecone.NewClient(cfg.PineconeConfig(), log)
		return c, func() error { c.Close(); return nil }, nil
	case config.BackendPgvector:
		s, err := pgvector.Open(ctx, cfg.DatabaseURL, cfg.PgvectorTable, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendBadger:
		s, err := badgerstore.Open(cfg.BadgerPath, false, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// runtime holds everything an orchestrator run needs, plus the cleanup.
type runtime struct {
	orch     *pipeline.Orchestrator
	ledger   *ledger.Ledger
	stats    *embed.Stats
	registry *prometheus.Registry
	closers  []func() error
}

func (r *runtime) Close(log *slog.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

func buildRuntime(ctx context.Context, c *cli.Context, cfg config.Config, log *slog.Logger) (*runtime, error) {
	rt := &runtime{
		stats:    embed.NewStats(0),
		registry: prometheus.NewRegistry(),
	}
	ok := false
	defer func() {
		if !ok {
			rt.Close(log)
		}
	}()

	tok, err := chunker.New(cfg.TokenizerEncoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	emb, closeEmb, err := embed.New(ctx, cfg.EmbedConfig())
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	rt.closers = append(rt.closers, closeEmb)

	vs, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	rt.closers = append(rt.closers, closeStore)

	lg, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, err
	}
	rt.ledger = lg
	rt.closers = append(rt.closers, lg.Close)

	rt.orch, err = pipeline.NewOrchestrator(pipeline.Deps{
		Tokenizer: tok,
		Embedder:  embed.NewTimed(emb, rt.stats, log),
		Store:     vs,
		Ledger:    lg,
	},
		pipeline.WithChunkConfig(cfg.ChunkConfig()),
		pipeline.WithParserOptions(parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}),
		pipeline.WithLogger(log),
		pipeline.WithStatusWriter(c.App.Writer),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithRetry(cfg.MaxRetries, cfg.RetryBaseDelay),
		pipeline.WithStageTimeout(cfg.StageTimeout),
		pipeline.WithMetrics(pipeline.NewMetrics(rt.registry)),
	)
	if err != nil {
		return nil, err
	}
	ok = true
	return rt, nil
}
