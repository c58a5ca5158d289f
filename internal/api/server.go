// Package api serves the upload queue, ledger and stats over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/vecingest/internal/embed"
	"github.com/dgallion1/vecingest/internal/ledger"
	"github.com/dgallion1/vecingest/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LedgerReader exposes recent ledger entries.
type LedgerReader interface {
	Tail(n int) ([]ledger.Entry, error)
}

// Deps are the components the handlers read from or feed.
type Deps struct {
	Queue    *pipeline.Queue
	Ledger   LedgerReader
	Stats    *embed.Stats
	Gatherer prometheus.Gatherer
}

type Options struct {
	APIKey         string
	SpoolDir       string
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Server is the HTTP API server for vecingest.
type Server struct {
	router chi.Router
	deps   Deps
	opts   Options
	log    *slog.Logger
}

func NewServer(deps Deps, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{deps: deps, opts: opts, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/ledger", s.handleLedger)
		r.Get("/api/stats/embed", s.handleEmbedStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if s.deps.Queue != nil {
		depth = s.deps.Queue.QueueDepth()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "queue_depth": depth})
}
