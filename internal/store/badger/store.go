// Package badger is an embedded vector store for local runs.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/vecingest/internal/store"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const keyPrefix = "chunk:"

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("record not found")

// slogAdapter adapts slog.Logger to the badger.Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

type Store struct {
	db  *badger.DB
	log *slog.Logger
}

var (
	_ store.VectorStore  = (*Store)(nil)
	_ store.Bootstrapper = (*Store)(nil)
)

// Open opens the store at dir, creating it if needed. An empty dir with
// inMemory set opens a throwaway store.
func Open(dir string, inMemory bool, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "badger")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &slogAdapter{logger: log}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

// Upsert writes all records in one transaction. Existing keys are overwritten.
func (s *Store) Upsert(ctx context.Context, records []store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			val, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", r.ID, err)
			}
			if err := txn.Set(key(r.ID), val); err != nil {
				return fmt.Errorf("set %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger upsert: %w", err)
	}
	s.log.Debug("upserted", "count", len(records))
	return nil
}

// Get loads one record by id.
func (s *Store) Get(id string) (store.Record, error) {
	var rec store.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// IDs lists every stored record id in key order.
func (s *Store) IDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return ids, err
}

// EnsureIndex is a no-op; badger needs no schema.
func (s *Store) EnsureIndex(context.Context, int) error {
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
