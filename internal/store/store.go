// Package store defines the vector store contract and the record shape shared
// by all backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/vecingest/internal/doctree"
	"github.com/dgallion1/vecingest/internal/identity"
)

// ErrVectorCount is returned when the embedder produced a different number of
// vectors than there are chunks.
var ErrVectorCount = errors.New("vector count does not match chunk count")

// Metadata travels with every vector.
type Metadata struct {
	DocID       string `json:"doc_id"`
	Text        string `json:"text"`
	PageStart   int    `json:"page_start"`
	PageEnd     int    `json:"page_end"`
	SectionPath string `json:"section_path"`
	Parser      string `json:"parser"`
	OCR         bool   `json:"ocr"`
	ChunkIndex  int    `json:"chunk_index"`
	ContentHash string `json:"content_hash"`
	SpanID      string `json:"span_id"`
}

// Record is one upsertable vector.
type Record struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// VectorStore persists records. Upserting an existing id overwrites it.
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
}

// Bootstrapper prepares the backing index. Only setup tooling calls it.
type Bootstrapper interface {
	EnsureIndex(ctx context.Context, dimension int) error
}

// BuildRecords pairs chunks with their vectors, position by position.
func BuildRecords(docID string, chunks []doctree.Chunk, vectors [][]float32) ([]Record, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrVectorCount, len(chunks), len(vectors))
	}
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		// Stores encode text as UTF-8; hash exactly what they will keep.
		text := strings.ToValidUTF8(c.Text, "\uFFFD")
		records[i] = Record{
			ID:     identity.UpsertID(docID, c.Index),
			Vector: vectors[i],
			Metadata: Metadata{
				DocID:       docID,
				Text:        text,
				PageStart:   c.PageStart,
				PageEnd:     c.PageEnd,
				SectionPath: doctree.JoinPath(c.SectionPath),
				Parser:      c.Parser,
				OCR:         c.OCR,
				ChunkIndex:  c.Index,
				ContentHash: identity.TextHash(text),
				SpanID:      identity.ChunkID(docID, c.PageStart, c.PageEnd, c.SpanStart, c.SpanEnd),
			},
		}
	}
	return records, nil
}
