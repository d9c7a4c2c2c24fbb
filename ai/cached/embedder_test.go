package cached

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/regmap/ai/mock"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	hits, misses, requests, texts int
}

func (r *countingRecorder) RecordStage(string, error, time.Duration, int) {}

func (r *countingRecorder) RecordEmbedding(_ string, n int, _ error) {
	r.requests++
	r.texts += n
}

func (r *countingRecorder) RecordCacheAccess(_ string, hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func TestEmbedTexts_CachesVectors(t *testing.T) {
	ctx := context.Background()
	cache, err := badger.NewMemoryVectorCache()
	require.NoError(t, err)
	defer cache.Close()

	inner := mock.NewMockEmbedder()
	rec := &countingRecorder{}
	e := NewEmbedder(inner, cache, "mock/fnv", WithMetrics(rec))

	first, err := e.EmbedTexts(ctx, []string{"access", "encrypt"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.CallCount())

	// One hit, one miss: only the new text reaches the provider.
	second, err := e.EmbedTexts(ctx, []string{"encrypt", "incident"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.CallCount())
	assert.Equal(t, first[1], second[0])

	v, err := e.EmbedText(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, first[0], v)
	assert.Equal(t, 2, inner.CallCount())

	assert.Equal(t, 2, rec.hits)
	assert.Equal(t, 3, rec.misses)
	assert.Equal(t, 2, rec.requests)
	assert.Equal(t, 3, rec.texts)
}

func TestEmbedTexts_NamespacesIsolated(t *testing.T) {
	ctx := context.Background()
	cache, err := badger.NewMemoryVectorCache()
	require.NoError(t, err)
	defer cache.Close()

	a := mock.NewMockEmbedder()
	b := mock.NewMockEmbedder()
	_, err = NewEmbedder(a, cache, "local/model-a").EmbedText(ctx, "access")
	require.NoError(t, err)
	_, err = NewEmbedder(b, cache, "local/model-b").EmbedText(ctx, "access")
	require.NoError(t, err)

	assert.Equal(t, 1, a.CallCount())
	assert.Equal(t, 1, b.CallCount())
}

func TestEmbedText_EmptyNeverReachesProvider(t *testing.T) {
	inner := mock.NewMockEmbedder()
	e := NewEmbedder(inner, nil, "mock/fnv")

	_, err := e.EmbedText(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)
	assert.Zero(t, inner.CallCount())
}

func TestEmbedTexts_ProviderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	cache, err := badger.NewMemoryVectorCache()
	require.NoError(t, err)
	defer cache.Close()

	inner := mock.NewMockEmbedder()
	inner.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, core.ErrEmbeddingProvider
	}
	e := NewEmbedder(inner, cache, "mock/fnv")

	_, err = e.EmbedText(ctx, "access")
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)

	inner.Reset()
	_, err = e.EmbedText(ctx, "access")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.CallCount())
}

type failingCache struct{}

func (failingCache) GetVector(context.Context, string, core.ID) ([]float32, bool, error) {
	return nil, false, errors.New("disk gone")
}
func (failingCache) PutVector(context.Context, string, core.ID, []float32) error {
	return errors.New("disk gone")
}
func (failingCache) Close() error { return nil }

func TestEmbedTexts_CacheFailuresAreMisses(t *testing.T) {
	inner := mock.NewMockEmbedder()
	e := NewEmbedder(inner, failingCache{}, "mock/fnv")

	v, err := e.EmbedText(context.Background(), "access")
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestProvider(t *testing.T) {
	cache, err := badger.NewMemoryVectorCache()
	require.NoError(t, err)

	p := NewProvider(mock.NewMockProvider(), cache)
	assert.Equal(t, "mock/fnv", p.Name())

	_, err = p.Embedder().EmbedText(context.Background(), "access")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
