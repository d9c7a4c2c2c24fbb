package search

import (
	"github.com/poiesic/regmap/core"
)

// SearchMonitor provides hooks to observe a suggestion query.
// Implement this interface to trace intermediate scores.
type SearchMonitor interface {
	Start(query string)
	AfterControlEmbedding(embedded, skipped int)
	ControlScored(control *core.Control, similarity float64)
	VerbatimHit(control *core.Control)
	Finish(results []*core.ControlMatch)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                           {}
func (n *noopMonitor) AfterControlEmbedding(_, _ int)           {}
func (n *noopMonitor) ControlScored(_ *core.Control, _ float64) {}
func (n *noopMonitor) VerbatimHit(_ *core.Control)              {}
func (n *noopMonitor) Finish(_ []*core.ControlMatch)            {}
