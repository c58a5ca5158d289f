package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vecingest",
		Usage: "Chunk, embed and store documents in a vector index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (text, json)",
				Value:   "text",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Optional config file (yaml, json or toml)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest every file in a directory (non-recursive)",
				ArgsUsage: "<dir>",
				Action:    ingestCommand,
				Flags: append(pipelineFlags(),
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Files processed in parallel",
					},
				),
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP upload API",
				Action: serveCommand,
				Flags: append(pipelineFlags(),
					&cli.StringFlag{
						Name:  "port",
						Usage: "Listen port",
					},
					&cli.StringFlag{
						Name:  "spool-dir",
						Usage: "Directory uploads are written to before ingestion",
					},
				),
			},
			{
				Name:   "init-store",
				Usage:  "Create the configured vector index if it does not exist",
				Action: initStoreCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "store",
						Usage: "Vector store backend (badger, pinecone, pgvector)",
					},
					&cli.IntFlag{
						Name:  "dimension",
						Usage: "Embedding dimension of the index",
					},
				},
			},
		},
	}
}

// pipelineFlags override the matching config keys when set.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "Vector store backend (badger, pinecone, pgvector)",
		},
		&cli.StringFlag{
			Name:  "embed-provider",
			Usage: "Embedding provider (openai, gemini)",
		},
		&cli.StringFlag{
			Name:  "ledger",
			Usage: "Path of the JSONL ledger",
		},
		&cli.IntFlag{
			Name:  "chunk-max-tokens",
			Usage: "Maximum tokens per chunk",
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Tokens shared between consecutive chunks",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Attempts for embed and upsert calls",
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: time.Second,
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(c.String("log-format")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.String("log-format"))
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
