package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/regmap/core"
	"go.uber.org/zap"
)

// MatchTags returns the tags whose keyword occurs in text, ignoring case.
// Tags with an empty keyword never match.
func MatchTags(text string, tags []*core.Tag) []*core.Tag {
	lower := strings.ToLower(text)
	var matched []*core.Tag
	for _, tag := range tags {
		keyword := strings.ToLower(tag.Keyword)
		if keyword != "" && strings.Contains(lower, keyword) {
			matched = append(matched, tag)
		}
	}
	return matched
}

// TagOutcome reports what Tag changed.
type TagOutcome struct {
	RegulationId core.ID
	Examined     int // pending requirements looked at
	Tagged       int // requirements that matched at least one tag
	Associations int // requirement-tag rows inserted
}

// Tag matches every pending requirement against the tag catalogue. Matched
// requirements get their associations and move to tagged; unmatched ones
// stay pending.
func (p *Pipeline) Tag(ctx context.Context, regulationID core.ID) (*TagOutcome, error) {
	return exclusive(ctx, p, regulationID, func(ctx context.Context) (*TagOutcome, error) {
		return p.tag(ctx, regulationID)
	})
}

func (p *Pipeline) tag(ctx context.Context, regulationID core.ID) (*TagOutcome, error) {
	return runStage(ctx, p, StageTag, regulationID, func(ctx context.Context, logger *zap.Logger) (*TagOutcome, int, error) {
		out := &TagOutcome{RegulationId: regulationID}

		err := p.store.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := p.requireRegulation(ctx, regulationID); err != nil {
				return err
			}
			total, err := p.store.CountRequirements(ctx, regulationID)
			if err != nil {
				return err
			}
			if total == 0 {
				return fmt.Errorf("%w: regulation %d", core.ErrNotParsed, regulationID)
			}
			pending, err := p.store.GetPendingRequirements(ctx, regulationID)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				return fmt.Errorf("%w: regulation %d", core.ErrNoPendingRequirements, regulationID)
			}
			tags, err := p.store.ListTags(ctx)
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				return core.ErrNoTagsConfigured
			}

			var associations []*core.RequirementTag
			var matched []core.ID
			for _, req := range pending {
				hits := MatchTags(req.Text, tags)
				if len(hits) == 0 {
					continue
				}
				matched = append(matched, req.Id)
				for _, tag := range hits {
					associations = append(associations, &core.RequirementTag{RequirementId: req.Id, TagId: tag.Id})
				}
			}
			out.Examined = len(pending)
			if len(matched) == 0 {
				return nil
			}

			if out.Associations, err = p.store.AddRequirementTags(ctx, associations...); err != nil {
				return err
			}
			if _, err = p.store.MarkTagged(ctx, matched...); err != nil {
				return err
			}
			out.Tagged = len(matched)
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
		logger.Debug("requirements tagged",
			zap.Int("examined", out.Examined),
			zap.Int("untagged", out.Examined-out.Tagged))
		return out, out.Tagged, nil
	})
}
