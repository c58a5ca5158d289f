// Package pgvector stores chunk vectors in PostgreSQL with the vector
// extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/dgallion1/vecingest/internal/store"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	pgv "github.com/pgvector/pgvector-go"
)

const DefaultTable = "chunks"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type Store struct {
	db    *sql.DB
	table string
	log   *slog.Logger
}

var (
	_ store.VectorStore  = (*Store)(nil)
	_ store.Bootstrapper = (*Store)(nil)
)

// Open connects through the pgx database/sql driver and pings the server.
func Open(ctx context.Context, dsn, table string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := New(db, table, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB, table string, log *slog.Logger) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, table: table, log: log.With("component", "pgvector", "table", table)}, nil
}

func (s *Store) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *Store) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s
	(id, doc_id, embedding, text, page_start, page_end, section_path, parser, ocr, chunk_index, content_hash, span_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (id) DO UPDATE SET
	doc_id = EXCLUDED.doc_id,
	embedding = EXCLUDED.embedding,
	text = EXCLUDED.text,
	page_start = EXCLUDED.page_start,
	page_end = EXCLUDED.page_end,
	section_path = EXCLUDED.section_path,
	parser = EXCLUDED.parser,
	ocr = EXCLUDED.ocr,
	chunk_index = EXCLUDED.chunk_index,
	content_hash = EXCLUDED.content_hash,
	span_id = EXCLUDED.span_id,
	updated_at = now()`, s.ident())
}

// Upsert writes all records in one transaction.
func (s *Store) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		m := r.Metadata
		if _, err := stmt.ExecContext(ctx,
			r.ID, m.DocID, pgv.NewVector(r.Vector), m.Text,
			m.PageStart, m.PageEnd, m.SectionPath, m.Parser, m.OCR,
			m.ChunkIndex, m.ContentHash, m.SpanID,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("upserted", "count", len(records))
	return nil
}

func (s *Store) schemaSQL(dimension int) []string {
	t := s.ident()
	idx := pgx.Identifier{s.table + "_doc_id_idx"}.Sanitize()
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	text TEXT NOT NULL,
	page_start INTEGER NOT NULL,
	page_end INTEGER NOT NULL,
	section_path TEXT NOT NULL DEFAULT '',
	parser TEXT NOT NULL,
	ocr BOOLEAN NOT NULL DEFAULT false,
	chunk_index INTEGER NOT NULL,
	content_hash TEXT NOT NULL,
	span_id TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, t, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (doc_id)`, idx, t),
	}
}

// EnsureIndex creates the extension, table and doc_id index.
func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	for _, q := range s.schemaSQL(dimension) {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("bootstrap %s: %w", s.table, err)
		}
	}
	s.log.Info("schema ready", "dimension", dimension)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
