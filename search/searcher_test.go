package search

import (
	"context"
	"math"
	"testing"

	"github.com/poiesic/regmap/ai/mock"
	"github.com/poiesic/regmap/catalog"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"github.com/poiesic/regmap/storage/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seededStore(t *testing.T, cat *catalog.Catalog) storage.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlstore.NewMemoryStore(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, _, err = cat.Seed(ctx, store)
	require.NoError(t, err)
	return store
}

// axisEmbedder maps texts mentioning a topic onto that topic's axis.
func axisEmbedder() *mock.MockEmbedder {
	m := mock.NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		switch {
		case contains(text, "access"):
			return []float32{1, 0, 0}, nil
		case contains(text, "incident"):
			return []float32{0, 1, 0}, nil
		default:
			return []float32{0, 0, 1}, nil
		}
	}
	return m
}

func contains(text, word string) bool {
	for _, w := range queryTerms(text) {
		if len(w) >= len(word) && w[:len(word)] == word {
			return true
		}
	}
	return false
}

func TestNewSearcher(t *testing.T) {
	store := seededStore(t, catalog.Default())

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(store, mock.NewMockEmbedder())
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		s, err := NewSearcher(store, mock.NewMockEmbedder(), WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("with custom logger", func(t *testing.T) {
		s, err := NewSearcher(store, mock.NewMockEmbedder(), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("nil catalog", func(t *testing.T) {
		_, err := NewSearcher(nil, mock.NewMockEmbedder())
		assert.Equal(t, ErrCatalogRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(store, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSuggestControls_Ranking(t *testing.T) {
	store := seededStore(t, catalog.Default())
	embedder := axisEmbedder()
	s, err := NewSearcher(store, embedder)
	require.NoError(t, err)

	results, err := s.SuggestControls(context.Background(), "Who may access the systems?", 0, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A.9.1.1", results[0].Control.Code)
	assert.Equal(t, "A.9.2.3", results[1].Control.Code)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	assert.Equal(t, 1, embedder.CallCount(), "query and controls are embedded in one batch")
}

func TestSuggestControls_VerbatimBoostAndLimit(t *testing.T) {
	store := seededStore(t, catalog.Default())
	s, err := NewSearcher(store, axisEmbedder())
	require.NoError(t, err)

	results, err := s.SuggestControls(context.Background(), "incident response plan", 1, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// A.16.1.1 and RS.RP-1 are equally similar; only RS.RP-1 contains every
	// query word.
	assert.Equal(t, "RS.RP-1", results[0].Control.Code)
	assert.InDelta(t, 1+VerbatimBoost, results[0].Score, 1e-9)
}

func TestSuggestControls_Inputs(t *testing.T) {
	store := seededStore(t, catalog.Default())
	s, err := NewSearcher(store, axisEmbedder())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.SuggestControls(ctx, "   ", 5, 0)
	assert.ErrorIs(t, err, core.ErrEmbeddingUnavailable)

	_, err = s.SuggestControls(ctx, "access", 5, math.Inf(1))
	assert.ErrorIs(t, err, core.ErrInvalidScore)
}

func TestSuggestControls_TextlessControlsIgnored(t *testing.T) {
	store := seededStore(t, &catalog.Catalog{Controls: []*core.Control{{Framework: "INTERNAL", Code: "X-1"}}})
	s, err := NewSearcher(store, axisEmbedder())
	require.NoError(t, err)

	results, err := s.SuggestControls(context.Background(), "access", 5, -1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

type recordingMonitor struct {
	query    string
	embedded int
	skipped  int
	scored   int
	verbatim []string
	final    int
}

func (m *recordingMonitor) Start(q string)                       { m.query = q }
func (m *recordingMonitor) AfterControlEmbedding(e, s int)       { m.embedded, m.skipped = e, s }
func (m *recordingMonitor) ControlScored(*core.Control, float64) { m.scored++ }
func (m *recordingMonitor) VerbatimHit(c *core.Control)          { m.verbatim = append(m.verbatim, c.Code) }
func (m *recordingMonitor) Finish(r []*core.ControlMatch)        { m.final = len(r) }

func TestSuggestControlsWithMonitor(t *testing.T) {
	store := seededStore(t, catalog.Default())
	s, err := NewSearcher(store, axisEmbedder())
	require.NoError(t, err)

	m := &recordingMonitor{}
	results, err := s.SuggestControlsWithMonitor(context.Background(), "event logs", 3, -1, m)
	require.NoError(t, err)

	assert.Equal(t, "event logs", m.query)
	assert.Equal(t, 9, m.embedded)
	assert.Zero(t, m.skipped)
	assert.Equal(t, 9, m.scored)
	assert.Equal(t, []string{"A.12.4.1"}, m.verbatim)
	assert.Equal(t, len(results), m.final)
	assert.Equal(t, 3, m.final)
}
