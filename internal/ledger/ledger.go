// Package ledger records one JSON line per ingestion attempt in an
// append-only file.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const DefaultPath = "ledger.jsonl"

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Entry is one ingestion outcome. Nil pointers serialize as null.
type Entry struct {
	DocID      *string   `json:"doc_id"`
	SourcePath string    `json:"source_path"`
	ChunkCount int       `json:"chunk_count"`
	Parser     *string   `json:"parser"`
	IngestedAt time.Time `json:"ingested_at"`
	Status     string    `json:"status"`
	Error      *string   `json:"error"`
	RunID      string    `json:"run_id,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Ledger appends entries to a single file. Safe for concurrent use.
type Ledger struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func Open(path string) (*Ledger, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return &Ledger{path: path, f: f}, nil
}

func (l *Ledger) Path() string { return l.path }

// Append writes e as one line with a single write call.
func (l *Ledger) Append(e Entry) error {
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now()
	}
	e.IngestedAt = e.IngestedAt.UTC()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return errors.New("ledger closed")
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Tail returns up to n of the most recent entries, oldest first. Lines that
// do not decode are skipped.
func (l *Ledger) Tail(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	ring := make([]Entry, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return ring, nil
}

func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Ptr returns a pointer to s, or nil for the empty string.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
