package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/poiesic/regmap/catalog"
	"github.com/poiesic/regmap/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmControls(t *testing.T) {
	cat := catalog.Default()
	cat.Controls = append(cat.Controls, &core.Control{Framework: "INTERNAL", Code: "BLANK-1"})
	store := openStore(t, cat)

	embedder := sampleEmbedder()
	var progress bytes.Buffer
	p := newTestPipeline(t, store, embedder, WithProgress(&progress))

	out, err := p.WarmControls(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Controls)
	assert.Equal(t, 9, out.Embedded)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, 3, out.Batches)
	assert.Equal(t, 3, embedder.CallCount())
	assert.Contains(t, progress.String(), "Embedding controls: 9/9 (100.0%)")
}

func TestWarmControls_DefaultBatchAndEmptyCatalog(t *testing.T) {
	store := openStore(t, catalog.Default())
	embedder := sampleEmbedder()
	p := newTestPipeline(t, store, embedder)

	out, err := p.WarmControls(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Batches)
	assert.Equal(t, 1, embedder.CallCount())

	empty := newTestPipeline(t, openStore(t, nil), embedder)
	out, err = empty.WarmControls(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, out.Embedded)
	assert.Zero(t, out.Batches)
}

func TestWarmControls_ProviderFailure(t *testing.T) {
	store := openStore(t, catalog.Default())
	embedder := sampleEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, core.ErrEmbeddingProvider
	}
	p := newTestPipeline(t, store, embedder)

	_, err := p.WarmControls(context.Background(), 4)
	require.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.Equal(t, 3, embedder.CallCount(), "first batch retried three times")
}
