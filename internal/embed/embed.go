// Package embed turns chunk texts into vectors.
package embed

import (
	"context"
	"fmt"
	"time"
)

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultOpenAIModel = "text-embedding-3-large"
	DefaultGeminiModel = "gemini-embedding-001"
	DefaultDimension   = 3072
)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	Dimension int
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
}

// New builds the embedder named by cfg.Provider. The returned close func
// releases provider resources and is never nil.
func New(ctx context.Context, cfg Config) (Embedder, func() error, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		e, err := NewOpenAI(cfg)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	case ProviderGemini:
		e, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
