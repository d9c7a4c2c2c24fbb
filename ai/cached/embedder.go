// Package cached decorates an ai.Embedder with a persistent vector cache.
//
// Vectors are keyed by the provider name (provider/model) and the BLAKE2b
// content hash of the text, so changing the model never serves stale vectors.
// Rescoring the same regulation twice, or many regulations against the same
// catalogue, embeds each distinct text once.
package cached

import (
	"context"

	"github.com/poiesic/regmap/ai"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/metrics"
	"github.com/poiesic/regmap/storage"
	"go.uber.org/zap"
)

// Embedder is an ai.Embedder that consults a storage.VectorCache before
// calling the wrapped embedder. A nil cache passes every call through and
// only records metrics.
type Embedder struct {
	inner     ai.Embedder
	cache     storage.VectorCache
	namespace string
	metrics   metrics.Recorder
	logger    *zap.Logger
}

type Option func(*Embedder)

// WithMetrics records embedding requests and cache lookups.
func WithMetrics(m metrics.Recorder) Option {
	return func(e *Embedder) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithLogger sets the logger. Default: zap.L().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmbedder wraps inner. namespace partitions the cache, normally the
// provider's Name().
func NewEmbedder(inner ai.Embedder, cache storage.VectorCache, namespace string, opts ...Option) *Embedder {
	e := &Embedder{
		inner:     inner,
		cache:     cache,
		namespace: namespace,
		metrics:   metrics.Noop{},
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("cached-embedder").With(zap.String("namespace", namespace))
	return e
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

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := e.lookup(ctx, text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.inner.EmbedTexts(ctx, missTexts)
	e.metrics.RecordEmbedding(e.namespace, len(missTexts), err)
	if err != nil {
		return nil, err
	}
	if err := ai.CheckResponse(vectors, len(missTexts)); err != nil {
		return nil, err
	}

	for j, i := range missIdx {
		out[i] = vectors[j]
		e.store(ctx, missTexts[j], vectors[j])
	}
	return out, nil
}

// lookup treats cache errors as misses; the cache never fails a request.
func (e *Embedder) lookup(ctx context.Context, text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	v, ok, err := e.cache.GetVector(ctx, e.namespace, core.IDFromContent(text))
	if err != nil {
		e.logger.Warn("vector cache read failed", zap.Error(err))
		ok = false
	}
	e.metrics.RecordCacheAccess(e.namespace, ok)
	return v, ok
}

func (e *Embedder) store(ctx context.Context, text string, vector []float32) {
	if e.cache == nil {
		return
	}
	if err := e.cache.PutVector(ctx, e.namespace, core.IDFromContent(text), vector); err != nil {
		e.logger.Warn("vector cache write failed", zap.Error(err))
	}
}
