package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/vecingest/internal/remote"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// BatchEmbedContents accepts at most 100 requests per call.
const geminiBatchSize = 100

// Gemini embeds through the Gemini API with the retrieval-document task type.
type Gemini struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	em := client.EmbeddingModel(name)
	em.TaskType = genai.TaskTypeRetrievalDocument
	return &Gemini{client: client, model: em}, nil
}

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchSize {
		end := min(start+geminiBatchSize, len(texts))
		batch := g.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := g.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, classifyGemini(err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func classifyGemini(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && remote.IsRetryableStatus(gerr.Code) {
		return &remote.RetryableError{StatusCode: gerr.Code, Message: gerr.Message}
	}
	return fmt.Errorf("gemini embed: %w", err)
}
