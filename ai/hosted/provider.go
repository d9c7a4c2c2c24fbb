package hosted

import (
	"github.com/poiesic/regmap/ai"
	"go.uber.org/zap"
)

type Provider struct {
	config   *ai.Config
	embedder *Embedder
	logger   *zap.Logger
}

// NewProvider creates a provider backed by the hosted OpenAI API.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   zap.L().Named("hosted-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Name() string {
	return p.config.Provider + "/" + p.config.EmbeddingModel
}

func (p *Provider) Close() error {
	p.logger.Debug("closing hosted provider")
	return nil
}
