package embed

import (
	"context"
	"fmt"

	"github.com/dgallion1/vecingest/internal/remote"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const openAIBatchSize = 512

// OpenAI embeds through the OpenAI embeddings endpoint or any compatible
// server reachable at Config.BaseURL.
type OpenAI struct {
	embedder *embeddings.EmbedderImpl
	doer     *remote.Doer
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	doer := remote.NewDoer(cfg.Timeout)

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(model),
		openai.WithHTTPClient(doer),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Dimension > 0 {
		opts = append(opts, openai.WithEmbeddingDimensions(cfg.Dimension))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(openAIBatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return &OpenAI{embedder: e, doer: doer}, nil
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	return vecs, nil
}

func (o *OpenAI) Close() error {
	o.doer.CloseIdleConnections()
	return nil
}
