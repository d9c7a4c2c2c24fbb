package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/regmap/ai"
	"go.uber.org/zap"
)

// StageWarm labels control pre-embedding in logs and metrics.
const StageWarm = "warm"

// DefaultWarmBatchSize is the number of control texts sent per request.
const DefaultWarmBatchSize = 32

// WarmOutcome reports a WarmControls call.
type WarmOutcome struct {
	Controls int // controls in the catalogue
	Embedded int // control texts embedded
	Skipped  int // controls without title or description
	Batches  int
}

// WarmControls embeds the text of every catalogue control in batches.
// With a caching embedder this fills the vector cache so later rescoring
// and suggestions only embed requirement text. Each batch is retried on
// provider failure; the first batch that still fails stops the call.
func (p *Pipeline) WarmControls(ctx context.Context, batchSize int) (*WarmOutcome, error) {
	if batchSize <= 0 {
		batchSize = DefaultWarmBatchSize
	}
	logger := p.logger.With(zap.String("stage", StageWarm))
	start := time.Now()

	out, err := p.warmControls(ctx, batchSize)
	affected := 0
	if out != nil {
		affected = out.Embedded
	}
	p.metrics.RecordStage(StageWarm, err, time.Since(start), affected)
	if err != nil {
		logger.Warn("stage failed", zap.Error(err))
		return nil, err
	}
	logger.Info("stage completed",
		zap.Int("embedded", out.Embedded),
		zap.Int("batches", out.Batches),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (p *Pipeline) warmControls(ctx context.Context, batchSize int) (*WarmOutcome, error) {
	controls, err := p.store.ListControls(ctx)
	if err != nil {
		return nil, err
	}

	out := &WarmOutcome{Controls: len(controls)}
	texts := make([]string, 0, len(controls))
	for _, ctl := range controls {
		text := ctl.EmbeddingText()
		if strings.TrimSpace(text) == "" {
			out.Skipped++
			continue
		}
		texts = append(texts, text)
	}

	var tracker *ProgressTracker
	if p.progress != nil && len(texts) > 0 {
		tracker = NewProgressTracker(p.progress, "Embedding controls", len(texts), batchSize)
		defer tracker.Finish()
	}

	for start := 0; start < len(texts); start += batchSize {
		batch := texts[start:min(start+batchSize, len(texts))]

		var vectors [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var err error
			vectors, err = p.embedder.EmbedTexts(ctx, batch)
			return err
		}, p.maxAttempts, p.retryDelay)
		if err != nil {
			return nil, fmt.Errorf("embed controls %d-%d: %w", start, start+len(batch)-1, err)
		}
		if err := ai.CheckResponse(vectors, len(batch)); err != nil {
			return nil, err
		}

		out.Embedded += len(batch)
		out.Batches++
		tracker.Increment(len(batch))
	}
	return out, nil
}
