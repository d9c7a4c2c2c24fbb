package pipeline

import (
	"io"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/regmap/lock"
	"github.com/poiesic/regmap/metrics"
	"go.uber.org/zap"
)

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of mappings rescored concurrently.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is zap.L().
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = zap.L()
		}
		p.logger = logger
		return nil
	}
}

// WithLocker sets the per-regulation lock.
// Default is an in-process lock.Local.
func WithLocker(locker lock.Locker) Option {
	return func(p *Pipeline) error {
		if locker != nil {
			p.locker = locker
		}
		return nil
	}
}

// WithMetrics records stage outcomes.
// Default is metrics.Noop.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(p *Pipeline) error {
		if recorder != nil {
			p.metrics = recorder
		}
		return nil
	}
}

// WithProgress writes rescoring progress to w, typically os.Stderr.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithRetry sets how embedding lookups are retried on provider failure.
// Default is 3 attempts starting at 500ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}
