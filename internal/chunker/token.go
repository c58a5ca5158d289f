package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer maps text to atomic units and back. Chunking and embedding must
// agree on the scheme so window sizes match what the model sees.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// DefaultEncoding is the BPE used by the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// Tiktoken adapts a tiktoken-go encoding to Tokenizer.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var offlineBPE sync.Once

// NewTiktoken loads the named encoding from the BPE ranks embedded in the
// binary, so no download happens at runtime.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	offlineBPE.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns valid UTF-8. A window boundary can fall inside a
// multi-byte rune; the partial bytes become U+FFFD.
func (t *Tiktoken) Decode(tokens []int) string {
	return strings.ToValidUTF8(t.enc.Decode(tokens), "\uFFFD")
}

// Words treats each whitespace-separated word as one unit. Decoding joins
// words with a single space, so it round-trips only whitespace-normalized
// text. It needs no model files and is safe for concurrent use.
type Words struct {
	mu    sync.Mutex
	ids   map[string]int
	vocab []string
}

func NewWords() *Words {
	return &Words{ids: make(map[string]int)}
}

func (w *Words) Encode(text string) []int {
	fields := strings.Fields(text)
	out := make([]int, len(fields))

	w.mu.Lock()
	defer w.mu.Unlock()
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.vocab)
			w.ids[f] = id
			w.vocab = append(w.vocab, f)
		}
		out[i] = id
	}
	return out
}

func (w *Words) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, 0, len(tokens))
	for _, id := range tokens {
		if id >= 0 && id < len(w.vocab) {
			parts = append(parts, w.vocab[id])
		}
	}
	return strings.Join(parts, " ")
}

// New returns the tokenizer for an encoding name; "words" selects Words.
func New(encoding string) (Tokenizer, error) {
	if encoding == "words" {
		return NewWords(), nil
	}
	return NewTiktoken(encoding)
}
