package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RescoreOutcome reports what Rescore changed.
type RescoreOutcome struct {
	RegulationId core.ID
	Candidates   int // keyword mappings found
	Rescored     int // mappings moved to hybrid
	Skipped      int // mappings with no requirement or control text
}

// Rescore replaces the score of every keyword mapping of the regulation with
// the cosine similarity of the requirement and control embeddings, and marks
// it hybrid. Mappings lacking requirement text or control text are skipped and
// keep their keyword score.
//
// Embedding lookups run concurrently. The first failure cancels the rest and
// nothing is written; otherwise all scores are committed in one transaction.
func (p *Pipeline) Rescore(ctx context.Context, regulationID core.ID) (*RescoreOutcome, error) {
	return exclusive(ctx, p, regulationID, func(ctx context.Context) (*RescoreOutcome, error) {
		return p.rescore(ctx, regulationID)
	})
}

func (p *Pipeline) rescore(ctx context.Context, regulationID core.ID) (*RescoreOutcome, error) {
	return runStage(ctx, p, StageRescore, regulationID, func(ctx context.Context, logger *zap.Logger) (*RescoreOutcome, int, error) {
		if _, err := p.requireRegulation(ctx, regulationID); err != nil {
			return nil, 0, err
		}
		candidates, err := p.store.GetKeywordCandidates(ctx, regulationID)
		if err != nil {
			return nil, 0, err
		}
		if len(candidates) == 0 {
			return nil, 0, fmt.Errorf("%w: regulation %d", core.ErrNoKeywordMappings, regulationID)
		}

		out := &RescoreOutcome{RegulationId: regulationID, Candidates: len(candidates)}
		work := make([]*core.MappingCandidate, 0, len(candidates))
		for _, c := range candidates {
			if strings.TrimSpace(c.RequirementText) == "" || strings.TrimSpace(c.ControlText) == "" {
				out.Skipped++
				continue
			}
			work = append(work, c)
		}

		updates, err := p.score(ctx, work)
		if err != nil {
			return nil, 0, err
		}
		if len(updates) > 0 {
			if out.Rescored, err = p.store.ApplyScores(ctx, updates...); err != nil {
				return nil, 0, err
			}
		}
		logger.Debug("mappings rescored",
			zap.Int("candidates", out.Candidates),
			zap.Int("skipped", out.Skipped))
		return out, out.Rescored, nil
	})
}

// score computes a hybrid ScoreUpdate for every candidate on the worker pool.
// Updates are returned in candidate order.
func (p *Pipeline) score(ctx context.Context, work []*core.MappingCandidate) ([]*core.ScoreUpdate, error) {
	if len(work) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, "Rescoring", len(work), max(len(work)/20, 1))
		defer tracker.Finish()
	}

	updates := make([]*core.ScoreUpdate, len(work))
	var wg sync.WaitGroup
	for i, c := range work {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			score, err := p.scoreCandidate(ctx, c)
			if err != nil {
				cancel(fmt.Errorf("mapping %d: %w", c.MappingId, err))
				return
			}
			updates[i] = &core.ScoreUpdate{MappingId: c.MappingId, Score: score, Source: core.SourceHybrid}
			tracker.Increment(1)
		})
		if err != nil {
			wg.Done()
			cancel(fmt.Errorf("submit mapping %d: %w", c.MappingId, err))
		}
	}
	wg.Wait()

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	return updates, nil
}

// scoreCandidate embeds both texts concurrently and compares them.
func (p *Pipeline) scoreCandidate(ctx context.Context, c *core.MappingCandidate) (float64, error) {
	var reqVec, ctlVec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.embed(gctx, c.RequirementText)
		reqVec = v
		return err
	})
	g.Go(func() error {
		v, err := p.embed(gctx, c.ControlText)
		ctlVec = v
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return vector.CosineSimilarity(reqVec, ctlVec)
}

func (p *Pipeline) embed(ctx context.Context, text string) ([]float32, error) {
	var v []float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		v, err = p.embedder.EmbedText(ctx, text)
		return err
	}, p.maxAttempts, p.retryDelay)
	return v, err
}
