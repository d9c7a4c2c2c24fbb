package search

import (
	"context"
	"sort"

	"github.com/poiesic/regmap/ai"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"github.com/poiesic/regmap/vector"
	"go.uber.org/zap"
)

// VerbatimBoost is added to the similarity of a control whose text contains
// every query word.
const VerbatimBoost = 0.3

// Searcher ranks catalogue controls against free text.
type Searcher struct {
	catalog  storage.CatalogRepository
	embedder ai.Embedder
	logger   *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is zap.L().
func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = zap.L()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(catalog storage.CatalogRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		catalog:  catalog,
		embedder: embedder,
		logger:   zap.L(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.Named("search")
	return s, nil
}

// SuggestControls returns up to limit controls scoring at least minScore
// against text, best first. A limit of zero or less returns every match.
func (s *Searcher) SuggestControls(ctx context.Context, text string, limit int, minScore float64) ([]*core.ControlMatch, error) {
	return s.SuggestControlsWithMonitor(ctx, text, limit, minScore, nil)
}

// SuggestControlsWithMonitor is SuggestControls with tracing callbacks.
func (s *Searcher) SuggestControlsWithMonitor(ctx context.Context, text string, limit int, minScore float64, monitor SearchMonitor) ([]*core.ControlMatch, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := ai.CheckText(text); err != nil {
		return nil, err
	}
	if err := core.ValidateScore(minScore); err != nil {
		return nil, err
	}
	monitor.Start(text)

	controls, err := s.catalog.ListControls(ctx)
	if err != nil {
		s.logger.Error("error listing controls", zap.Error(err))
		return nil, err
	}

	// Query first, then every control with text, in one batch.
	texts := []string{text}
	embedded := make([]*core.Control, 0, len(controls))
	for _, ctl := range controls {
		if ctl.EmbeddingText() == "" {
			continue
		}
		texts = append(texts, ctl.EmbeddingText())
		embedded = append(embedded, ctl)
	}
	monitor.AfterControlEmbedding(len(embedded), len(controls)-len(embedded))
	if len(embedded) == 0 {
		monitor.Finish(nil)
		return []*core.ControlMatch{}, nil
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		s.logger.Error("error embedding suggestion query", zap.Int("texts", len(texts)), zap.Error(err))
		return nil, err
	}
	if err := ai.CheckResponse(vectors, len(texts)); err != nil {
		return nil, err
	}

	results := make([]*core.ControlMatch, 0, len(embedded))
	for i, ctl := range embedded {
		similarity, err := vector.CosineSimilarity(vectors[0], vectors[i+1])
		if err != nil {
			return nil, err
		}
		monitor.ControlScored(ctl, similarity)

		score := similarity
		if coversQuery(ctl.EmbeddingText(), text) {
			score += VerbatimBoost
			monitor.VerbatimHit(ctl)
		}
		if score < minScore {
			continue
		}
		results = append(results, &core.ControlMatch{Control: ctl, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Control.Code < results[j].Control.Code
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	monitor.Finish(results)

	return results, nil
}
