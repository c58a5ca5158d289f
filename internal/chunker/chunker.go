package chunker

import (
	"errors"
	"fmt"

	"github.com/dgallion1/vecingest/internal/doctree"
)

// ErrInvalidConfig is returned for window settings that cannot advance.
var ErrInvalidConfig = errors.New("invalid chunk config")

// Config controls chunking behavior.
type Config struct {
	MaxTokens int // Window size in tokenizer units.
	Overlap   int // Units shared by consecutive windows of one section.
}

// DefaultConfig keeps chunks well inside embedding-model context limits.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 500,
		Overlap:   50,
	}
}

// Validate rejects configs whose stride would be zero or negative.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.MaxTokens {
		return fmt.Errorf("%w: overlap (%d) must be smaller than max tokens (%d)", ErrInvalidConfig, c.Overlap, c.MaxTokens)
	}
	return nil
}

// Stride is how far each window advances.
func (c Config) Stride() int {
	return c.MaxTokens - c.Overlap
}

// Window is one decoded token window with its offsets in the source stream.
type Window struct {
	Text      string
	SpanStart int
	SpanEnd   int
}

// ChunkText splits text into windows of at most cfg.MaxTokens units, each
// starting cfg.Stride() units after the previous one. The last window may
// be short. Splitting stops once a window reaches the end of the stream, so
// no window lies entirely inside the previous one.
func ChunkText(tok Tokenizer, text string, cfg Config) ([]Window, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	tokens := tok.Encode(text)
	n := len(tokens)
	if n == 0 {
		return nil, nil
	}

	var windows []Window
	for start := 0; start < n; start += cfg.Stride() {
		end := min(start+cfg.MaxTokens, n)
		windows = append(windows, Window{
			Text:      tok.Decode(tokens[start:end]),
			SpanStart: start,
			SpanEnd:   end,
		})
		if end == n {
			break
		}
	}
	return windows, nil
}

// ChunkSections expands each section into windows and numbers the resulting
// chunks 0..N-1 across the whole call. Windows never cross a section
// boundary and empty sections contribute nothing.
func ChunkSections(tok Tokenizer, sections []doctree.Section, cfg Config) ([]doctree.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []doctree.Chunk
	index := 0
	for _, sec := range sections {
		windows, err := ChunkText(tok, sec.Text, cfg)
		if err != nil {
			return nil, err
		}
		for _, w := range windows {
			chunks = append(chunks, doctree.Chunk{
				Text:        w.Text,
				Index:       index,
				PageStart:   sec.PageStart,
				PageEnd:     sec.PageEnd,
				SectionPath: copyPath(sec.SectionPath),
				Parser:      sec.Parser,
				OCR:         sec.OCR,
				SpanStart:   w.SpanStart,
				SpanEnd:     w.SpanEnd,
			})
			index++
		}
	}
	return chunks, nil
}

func copyPath(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	out := make([]string, len(path))
	copy(out, path)
	return out
}
