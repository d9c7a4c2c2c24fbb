package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes a single self-overwriting progress line while a
// stage works through its items. A nil tracker ignores every call.
type ProgressTracker struct {
	writer         io.Writer
	label          string
	total          int
	done           int
	reportInterval int
	lastReported   int
	startTime      time.Time
	mu             sync.Mutex
}

// NewProgressTracker reports to writer every reportInterval items.
func NewProgressTracker(writer io.Writer, label string, total, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		label:          label,
		total:          total,
		reportInterval: reportInterval,
		startTime:      time.Now(),
	}
}

// Increment records delta more finished items.
func (p *ProgressTracker) Increment(delta int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = min(p.done+delta, p.total)
	if p.done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.done
	}
}

// Finish prints the final line. Items left unfinished are reported as such.
func (p *ProgressTracker) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	if p == nil {
		return 0
	}
	return time.Since(p.startTime)
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	rate := float64(p.done) / time.Since(p.startTime).Seconds()
	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %.1f/s", p.label, p.done, p.total, percentage, rate)
}
