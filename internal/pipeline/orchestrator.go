package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/vecingest/internal/chunker"
	"github.com/dgallion1/vecingest/internal/doctree"
	"github.com/dgallion1/vecingest/internal/embed"
	"github.com/dgallion1/vecingest/internal/identity"
	"github.com/dgallion1/vecingest/internal/ledger"
	"github.com/dgallion1/vecingest/internal/parser"
	"github.com/dgallion1/vecingest/internal/store"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Ledger receives one entry per processed file.
type Ledger interface {
	Append(ledger.Entry) error
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Tokenizer chunker.Tokenizer
	Embedder  embed.Embedder
	Store     store.VectorStore
	Ledger    Ledger
}

// Orchestrator runs files through parse, chunk, embed, upsert and ledger.
type Orchestrator struct {
	deps         Deps
	chunkCfg     chunker.Config
	parserOpts   parser.Options
	log          *slog.Logger
	out          io.Writer
	outMu        sync.Mutex
	concurrency  int
	maxRetries   int
	retryBase    time.Duration
	stageTimeout time.Duration
	metrics      *Metrics
	runID        string
}

type Option func(*Orchestrator)

func WithChunkConfig(cfg chunker.Config) Option {
	return func(o *Orchestrator) { o.chunkCfg = cfg }
}

func WithParserOptions(opts parser.Options) Option {
	return func(o *Orchestrator) { o.parserOpts = opts }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithStatusWriter sets where per-file status lines go. Nil discards them.
func WithStatusWriter(w io.Writer) Option {
	return func(o *Orchestrator) {
		if w == nil {
			w = io.Discard
		}
		o.out = w
	}
}

// WithConcurrency sets how many files ProcessDir works on at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = max(n, 1) }
}

// WithRetry sets the attempt budget and base backoff for embed and upsert.
func WithRetry(attempts int, base time.Duration) Option {
	return func(o *Orchestrator) {
		o.maxRetries = max(attempts, 1)
		o.retryBase = base
	}
}

// WithStageTimeout bounds each embed or upsert call. Zero means no bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRunID sets the run id stamped on ledger entries.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

func NewOrchestrator(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Tokenizer == nil:
		return nil, fmt.Errorf("%w: tokenizer is required", ErrConfiguration)
	case deps.Embedder == nil:
		return nil, fmt.Errorf("%w: embedder is required", ErrConfiguration)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: vector store is required", ErrConfiguration)
	case deps.Ledger == nil:
		return nil, fmt.Errorf("%w: ledger is required", ErrConfiguration)
	}
	o := &Orchestrator{
		deps:        deps,
		chunkCfg:    chunker.DefaultConfig(),
		log:         slog.Default(),
		out:         os.Stdout,
		concurrency: 1,
		maxRetries:  MaxRetries,
		retryBase:   DefaultRetryBase,
		runID:       uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) RunID() string { return o.runID }

// Result is the outcome of one file.
type Result struct {
	Path      string
	DocID     string
	Parser    string
	Chunks    int
	Err       error
	LedgerErr error
	Duration  time.Duration
	States    []State
}

func (r Result) OK() bool { return r.Err == nil }

// ProcessFile ingests one file. It never returns early without a ledger
// append and a status line.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) Result {
	return o.processFile(ctx, path, nil)
}

func (o *Orchestrator) processFile(ctx context.Context, path string, observe func(State)) Result {
	start := time.Now()
	log := o.log.With("path", path)
	a := newAttempt(path, observe)

	res := Result{Path: path}
	if err := o.run(ctx, a, &res, log); err != nil {
		res.Err = err
		_ = a.SetState(StateFailed)
	}
	res.Duration = time.Since(start)
	return o.record(a, res, log)
}

// skipFile records a failed attempt for a file that was accepted but never
// processed.
func (o *Orchestrator) skipFile(path string, cause error) Result {
	a := newAttempt(path, nil)
	_ = a.SetState(StateFailed)
	return o.record(a, Result{Path: path, Err: cause}, o.log.With("path", path))
}

// record appends the ledger entry and writes the status line for res.
func (o *Orchestrator) record(a *Attempt, res Result, log *slog.Logger) Result {
	entry := ledger.Entry{
		DocID:      ledger.Ptr(res.DocID),
		SourcePath: res.Path,
		ChunkCount: res.Chunks,
		Parser:     ledger.Ptr(res.Parser),
		IngestedAt: time.Now().UTC(),
		Status:     ledger.StatusSuccess,
		RunID:      o.runID,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		entry.ChunkCount = 0
		entry.Status = ledger.StatusFailed
		entry.Error = ledger.Ptr(res.Err.Error())
	}
	if err := o.deps.Ledger.Append(entry); err != nil {
		log.Error("ledger append failed", "error", err)
		res.LedgerErr = err
	}
	_ = a.SetState(StateLogged)
	res.States = a.History()

	if res.Err != nil {
		var se *StageError
		stage := Stage("")
		if errors.As(res.Err, &se) {
			stage = se.Stage
		}
		log.Warn("ingest failed", "doc_id", res.DocID, "stage", stage, "error", res.Err)
		o.metrics.fileDone(ledger.StatusFailed, 0)
		o.status("[FAIL] %s: %v\n", res.Path, res.Err)
	} else {
		log.Info("ingested", "doc_id", res.DocID, "chunks", res.Chunks, "duration_ms", res.Duration.Milliseconds())
		o.metrics.fileDone(ledger.StatusSuccess, res.Chunks)
		o.status("[OK] %s -> %d chunks ingested.\n", res.Path, res.Chunks)
	}
	return res
}

func (o *Orchestrator) run(ctx context.Context, a *Attempt, res *Result, log *slog.Logger) error {
	p, err := parser.ForFile(a.Path, o.parserOpts)
	if err != nil {
		return stageErr(StageSelect, ErrUnsupportedFormat, err)
	}

	t := time.Now()
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return stageErr(StageRead, ErrParseFailure, err)
	}
	res.DocID = identity.DocumentID(a.Path, data)
	log = log.With("doc_id", res.DocID)

	tree, err := p.Parse(bytes.NewReader(data), filepath.Base(a.Path))
	o.metrics.observeStage(StageParse, t)
	if err != nil {
		return stageErr(StageParse, ErrParseFailure, err)
	}
	res.Parser = tree.Parser()
	_ = a.SetState(StateParsed)
	log.Debug("parsed", "title", tree.Title, "sections", len(tree.Sections), "parser", res.Parser)

	t = time.Now()
	chunks, err := chunker.ChunkSections(o.deps.Tokenizer, tree.Sections, o.chunkCfg)
	o.metrics.observeStage(StageChunk, t)
	if err != nil {
		return stageErr(StageChunk, ErrConfiguration, err)
	}
	_ = a.SetState(StateChunked)
	log.Debug("chunked", "chunks", len(chunks))

	if len(chunks) == 0 {
		_ = a.SetState(StateUpserted)
		return nil
	}

	vectors, err := o.embed(ctx, chunks, log)
	if err != nil {
		return err
	}

	records, err := store.BuildRecords(res.DocID, chunks, vectors)
	if err != nil {
		return stageErr(StageEmbed, ErrEmbeddingFailure, err)
	}

	t = time.Now()
	err = o.withRetry(ctx, StageUpsert, log, func(ctx context.Context) error {
		return o.deps.Store.Upsert(ctx, records)
	})
	o.metrics.observeStage(StageUpsert, t)
	if err != nil {
		return stageErr(StageUpsert, ErrStoreFailure, err)
	}
	_ = a.SetState(StateUpserted)
	res.Chunks = len(chunks)
	return nil
}

func (o *Orchestrator) embed(ctx context.Context, chunks []doctree.Chunk, log *slog.Logger) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	t := time.Now()
	var vectors [][]float32
	err := o.withRetry(ctx, StageEmbed, log, func(ctx context.Context) error {
		var err error
		vectors, err = o.deps.Embedder.Embed(ctx, texts)
		return err
	})
	o.metrics.observeStage(StageEmbed, t)
	if err != nil {
		return nil, stageErr(StageEmbed, ErrEmbeddingFailure, err)
	}
	return vectors, nil
}

func (o *Orchestrator) status(format string, args ...any) {
	o.outMu.Lock()
	defer o.outMu.Unlock()
	fmt.Fprintf(o.out, format, args...)
}

// Summary totals a directory run.
type Summary struct {
	Found     int
	Succeeded int
	Failed    int
	Chunks    int
	Results   []Result
}

// ProcessDir ingests every regular file directly inside dir, in name order.
// Subdirectories are skipped. One file's failure never stops the batch.
func (o *Orchestrator) ProcessDir(ctx context.Context, dir string) (Summary, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return Summary{}, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			continue
		}
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			continue
		}
		files = append(files, p)
	}
	o.status("Found %d files in %s\n", len(files), dir)

	results := make([]Result, len(files))
	pool, err := ants.NewPool(o.concurrency)
	if err != nil {
		return Summary{}, fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = o.ProcessFile(ctx, path)
		}); err != nil {
			wg.Done()
			results[i] = o.ProcessFile(ctx, path)
		}
	}
	wg.Wait()

	sum := Summary{Found: len(files), Results: results}
	for _, r := range results {
		if r.OK() {
			sum.Succeeded++
			sum.Chunks += r.Chunks
		} else {
			sum.Failed++
		}
	}
	o.log.Info("batch complete", "dir", dir, "found", sum.Found, "succeeded", sum.Succeeded,
		"failed", sum.Failed, "chunks", sum.Chunks, "run_id", o.runID)
	return sum, nil
}
