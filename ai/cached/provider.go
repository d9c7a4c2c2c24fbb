package cached

import (
	"errors"

	"github.com/poiesic/regmap/ai"
	"github.com/poiesic/regmap/storage"
)

// Provider wraps an ai.AIProvider so its embedder goes through the cache.
type Provider struct {
	inner    ai.AIProvider
	cache    storage.VectorCache
	embedder *Embedder
}

// NewProvider wraps inner. Close closes both inner and cache.
func NewProvider(inner ai.AIProvider, cache storage.VectorCache, opts ...Option) ai.AIProvider {
	return &Provider{
		inner:    inner,
		cache:    cache,
		embedder: NewEmbedder(inner.Embedder(), cache, inner.Name(), opts...),
	}
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Name() string {
	return p.inner.Name()
}

func (p *Provider) Close() error {
	err := p.inner.Close()
	if p.cache != nil {
		err = errors.Join(err, p.cache.Close())
	}
	return err
}
