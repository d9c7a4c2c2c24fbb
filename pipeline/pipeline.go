package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/regmap/ai"
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/lock"
	"github.com/poiesic/regmap/metrics"
	"github.com/poiesic/regmap/storage"
	"go.uber.org/zap"
)

// Stage names used in logs and metrics.
const (
	StageParse   = "parse"
	StageTag     = "tag"
	StageMap     = "map"
	StageRescore = "rescore"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
)

// Pipeline runs the mapping stages against a store.
// It is safe for concurrent use.
type Pipeline struct {
	store       storage.Store
	embedder    ai.Embedder
	locker      lock.Locker
	pool        *ants.Pool
	metrics     metrics.Recorder
	progress    io.Writer
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewPipeline creates a pipeline over store, scoring with embedder.
func NewPipeline(store storage.Store, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		locker:      lock.NewLocal(),
		metrics:     metrics.Noop{},
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      zap.L(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.pool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU(), 1))
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}
	p.logger = p.logger.Named("pipeline")
	return p, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// LockKey names the lock that serialises work on a regulation.
func LockKey(regulationID core.ID) string {
	return fmt.Sprintf("regulation:%d", regulationID)
}

// exclusive runs fn while holding the regulation's lock.
func exclusive[T any](ctx context.Context, p *Pipeline, regulationID core.ID, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	unlock, err := p.locker.Lock(ctx, LockKey(regulationID))
	if err != nil {
		return zero, fmt.Errorf("lock regulation %d: %w", regulationID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release regulation lock",
				zap.Uint64("regulation_id", uint64(regulationID)), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// runStage times fn, logs its outcome under a fresh run ID and records
// metrics. fn reports how many rows it affected.
func runStage[T any](ctx context.Context, p *Pipeline, stage string, regulationID core.ID, fn func(context.Context, *zap.Logger) (T, int, error)) (T, error) {
	logger := p.logger.With(
		zap.String("stage", stage),
		zap.Uint64("regulation_id", uint64(regulationID)),
		zap.String("run_id", uuid.NewString()),
	)

	start := time.Now()
	out, affected, err := fn(ctx, logger)
	elapsed := time.Since(start)
	p.metrics.RecordStage(stage, err, elapsed, affected)

	if err != nil {
		logger.Warn("stage failed",
			zap.String("kind", string(core.KindOf(err))),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		var zero T
		return zero, err
	}
	logger.Info("stage completed", zap.Int("affected", affected), zap.Duration("elapsed", elapsed))
	return out, nil
}

// requireRegulation maps a missing regulation onto core.ErrRegulationNotFound.
func (p *Pipeline) requireRegulation(ctx context.Context, regulationID core.ID) (*core.Regulation, error) {
	reg, err := p.store.GetRegulation(ctx, regulationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", core.ErrRegulationNotFound, regulationID)
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Status reports how far a regulation has progressed.
func (p *Pipeline) Status(ctx context.Context, regulationID core.ID) (*core.RegulationSummary, error) {
	summary, err := p.store.Summarize(ctx, regulationID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", core.ErrRegulationNotFound, regulationID)
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}
