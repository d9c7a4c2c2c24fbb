package pipeline

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/regmap/catalog"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mappedRegulation parses, tags and keyword-maps the sample document.
func mappedRegulation(t *testing.T, p *Pipeline, store storage.Store) core.ID {
	t.Helper()
	ctx := context.Background()
	id := newRegulation(t, store)
	_, err := p.Parse(ctx, id, sampleDocument)
	require.NoError(t, err)
	_, err = p.Tag(ctx, id)
	require.NoError(t, err)
	_, err = p.MapKeywords(ctx, id)
	require.NoError(t, err)
	return id
}

func assertUntouched(t *testing.T, store storage.Store, id core.ID) {
	t.Helper()
	summary, err := store.Summarize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.KeywordMappings)
	assert.Zero(t, summary.HybridMappings)
}

func TestRescore_SkipsTextlessControls(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, &catalog.Catalog{
		Tags: catalog.Default().Tags[:1],
		Controls: []*core.Control{
			catalog.Default().Controls[0],
			{Framework: "INTERNAL", Code: "ACCESS-0"},
		},
	})
	p := newTestPipeline(t, store, sampleEmbedder())
	id := newRegulation(t, store)
	_, err := p.Parse(ctx, id, "Article 1. Access must be restricted.")
	require.NoError(t, err)
	_, err = p.Tag(ctx, id)
	require.NoError(t, err)
	mapped, err := p.MapKeywords(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, mapped.Inserted)

	out, err := p.Rescore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Candidates)
	assert.Equal(t, 1, out.Rescored)
	assert.Equal(t, 1, out.Skipped)

	rows, err := p.Results(ctx, id, WithMinScore(0))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "INTERNAL", rows[0].Framework)
	assert.Equal(t, core.SourceKeyword, rows[0].Source)
	assert.Equal(t, core.KeywordScore, rows[0].SimilarityScore)
	assert.Equal(t, core.SourceHybrid, rows[1].Source)
	assert.InDelta(t, 0.8, rows[1].SimilarityScore, 1e-6)

	// The skipped mapping is still a candidate on the next run.
	out, err = p.Rescore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Candidates)
	assert.Zero(t, out.Rescored)
}

func TestRescore_ProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	embedder := sampleEmbedder()
	p := newTestPipeline(t, store, embedder, WithPoolSize(4))
	id := mappedRegulation(t, p, store)

	var calls atomic.Int32
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if text == privileged {
			calls.Add(1)
			return nil, core.ErrEmbeddingProvider
		}
		return []float32{1, 0, 0}, nil
	}

	_, err := p.Rescore(ctx, id)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.Equal(t, core.KindProviderFailure, core.KindOf(err))
	assert.Equal(t, int32(3), calls.Load(), "provider failures are retried")
	assertUntouched(t, store, id)
}

func TestRescore_RetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	embedder := sampleEmbedder()
	p := newTestPipeline(t, store, embedder)
	id := mappedRegulation(t, p, store)

	var mu sync.Mutex
	failures := 2
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, core.ErrEmbeddingProvider
		}
		return []float32{1, 1, 0}, nil
	}

	out, err := p.Rescore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rescored)
}

func TestRescore_NonProviderErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name    string
		embed   func(text string) ([]float32, error)
		wantErr error
	}{
		{
			name: "empty input",
			embed: func(string) ([]float32, error) {
				return nil, core.ErrEmbeddingUnavailable
			},
			wantErr: core.ErrEmbeddingUnavailable,
		},
		{
			name: "dimension mismatch",
			embed: func(text string) ([]float32, error) {
				if text == accessClause {
					return []float32{1, 0, 0}, nil
				}
				return []float32{1, 0}, nil
			},
			wantErr: core.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, catalog.Default())
			embedder := sampleEmbedder()
			p := newTestPipeline(t, store, embedder, WithPoolSize(1))
			id := mappedRegulation(t, p, store)

			var calls atomic.Int32
			embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
				calls.Add(1)
				return tt.embed(text)
			}

			_, err := p.Rescore(ctx, id)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.LessOrEqual(t, calls.Load(), int32(4))
			assertUntouched(t, store, id)
		})
	}
}

func TestRescore_Canceled(t *testing.T) {
	store := openStore(t, catalog.Default())
	embedder := sampleEmbedder()
	p := newTestPipeline(t, store, embedder)
	id := mappedRegulation(t, p, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	started := make(chan struct{})
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	go func() {
		<-started
		cancel()
	}()

	_, err := p.Rescore(ctx, id)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, core.KindCanceled, core.KindOf(err))
	assertUntouched(t, store, id)
}

func TestRescore_NoKeywordMappings(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	p := newTestPipeline(t, store, sampleEmbedder())
	id := newRegulation(t, store)
	_, err := p.Parse(ctx, id, sampleDocument)
	require.NoError(t, err)

	_, err = p.Rescore(ctx, id)
	assert.ErrorIs(t, err, core.ErrNoKeywordMappings)

	id = mappedRegulation(t, p, store)
	_, err = p.Rescore(ctx, id)
	require.NoError(t, err)
	_, err = p.Rescore(ctx, id)
	assert.ErrorIs(t, err, core.ErrNoKeywordMappings)
}

func TestRescore_ReportsProgress(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, catalog.Default())
	var buf bytes.Buffer
	p := newTestPipeline(t, store, sampleEmbedder(), WithProgress(&buf))
	id := mappedRegulation(t, p, store)

	_, err := p.Rescore(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Rescoring: 2/2 (100.0%)")
}
