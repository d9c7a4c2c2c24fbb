package pipeline

import (
	"context"
	"slices"

	"github.com/poiesic/regmap/core"
)

// ResultOption configures a result query.
type ResultOption func(*resultOptions)

type resultOptions struct {
	minScore float64
}

// WithMinScore sets the lowest similarity score returned.
// Default is core.DefaultMinScore.
func WithMinScore(score float64) ResultOption {
	return func(o *resultOptions) {
		o.minScore = score
	}
}

// Results returns the flat result view: one row per mapping and tag of its
// requirement, ordered by requirement, framework and control code.
// A mapping of a requirement with no tags appears once with a nil TagName.
func (p *Pipeline) Results(ctx context.Context, regulationID core.ID, opts ...ResultOption) ([]*core.ResultRow, error) {
	o := resultOptions{minScore: core.DefaultMinScore}
	for _, opt := range opts {
		opt(&o)
	}
	if err := core.ValidateScore(o.minScore); err != nil {
		return nil, err
	}
	if _, err := p.requireRegulation(ctx, regulationID); err != nil {
		return nil, err
	}
	return p.store.GetResults(ctx, regulationID, o.minScore)
}

// GroupedResults returns one row per mapping with the requirement's tags
// collected into a list.
func (p *Pipeline) GroupedResults(ctx context.Context, regulationID core.ID, opts ...ResultOption) ([]*core.GroupedResultRow, error) {
	rows, err := p.Results(ctx, regulationID, opts...)
	if err != nil {
		return nil, err
	}
	return GroupResults(rows), nil
}

// GroupResults collapses flat rows by mapping, keeping the order in which
// mappings first appear. Tag names are sorted and deduplicated.
func GroupResults(rows []*core.ResultRow) []*core.GroupedResultRow {
	grouped := make([]*core.GroupedResultRow, 0, len(rows))
	byMapping := make(map[core.ID]*core.GroupedResultRow, len(rows))
	for _, row := range rows {
		g, ok := byMapping[row.MappingId]
		if !ok {
			g = &core.GroupedResultRow{
				RequirementId:   row.RequirementId,
				ClauseNumber:    row.ClauseNumber,
				RequirementText: row.RequirementText,
				Tags:            []string{},
				MappingId:       row.MappingId,
				Framework:       row.Framework,
				ControlCode:     row.ControlCode,
				ControlTitle:    row.ControlTitle,
				SimilarityScore: row.SimilarityScore,
				Source:          row.Source,
			}
			byMapping[row.MappingId] = g
			grouped = append(grouped, g)
		}
		if row.TagName != nil {
			g.Tags = append(g.Tags, *row.TagName)
		}
	}
	for _, g := range grouped {
		slices.Sort(g.Tags)
		g.Tags = slices.Compact(g.Tags)
	}
	return grouped
}
