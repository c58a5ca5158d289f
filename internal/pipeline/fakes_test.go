package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/dgallion1/vecingest/internal/ledger"
	"github.com/dgallion1/vecingest/internal/store"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	errs  []error // returned in order, one per call, before succeeding
	short bool    // drop the last vector
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), float32(i)}
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	err     error
	records map[string]store.Record
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]store.Record)}
}

func (f *fakeStore) Upsert(_ context.Context, recs []store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, r := range recs {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
	fail    bool
}

func (m *memLedger) Append(e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLedger) Entries() []ledger.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Entry(nil), m.entries...)
}
