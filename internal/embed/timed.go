package embed

import (
	"context"
	"log/slog"
	"time"
)

// Timed records the latency of every call to the wrapped Embedder.
type Timed struct {
	next  Embedder
	stats *Stats
	log   *slog.Logger
}

func NewTimed(next Embedder, stats *Stats, log *slog.Logger) *Timed {
	if log == nil {
		log = slog.Default()
	}
	return &Timed{next: next, stats: stats, log: log}
}

func (t *Timed) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := t.next.Embed(ctx, texts)
	elapsed := time.Since(start)
	t.stats.Record(elapsed.Milliseconds(), len(texts), err != nil)
	t.log.Debug("embed call", "texts", len(texts), "duration_ms", elapsed.Milliseconds(), "ok", err == nil)
	return vecs, err
}

func (t *Timed) Stats() *Stats { return t.stats }
