package hosted

import (
	"context"
	"sort"
	"strings"

	"github.com/poiesic/regmap/ai"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Embedder calls the OpenAI embeddings endpoint directly.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(config.EmbeddingHost, "/")

	return &Embedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      config.EmbeddingModel,
		dimensions: config.Dimensions,
		logger:     zap.L().Named("hosted-embedder"),
	}, nil
}

// NewEmbedder creates an embedder for the hosted OpenAI API.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ai.CheckTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	e.logger.Debug("creating embeddings", zap.Int("count", len(texts)), zap.String("model", e.model))

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.logger.Error("embedding request failed", zap.Int("count", len(texts)), zap.Error(err))
		return nil, ai.ProviderError(err)
	}

	// The API documents Index as the position of the input; don't rely on response order.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i := range data {
		vectors[i] = data[i].Embedding
	}

	if err := ai.CheckResponse(vectors, len(texts)); err != nil {
		e.logger.Warn("embedding response malformed", zap.Error(err))
		return nil, err
	}
	return vectors, nil
}
