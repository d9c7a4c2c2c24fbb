package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/regmap/core"
	"go.uber.org/zap"
)

// ControlMatches reports whether the control's code, title or description
// mentions the tag's keyword or the tag's name, ignoring case.
func ControlMatches(ctl *core.Control, tag *core.Tag) bool {
	return controlTextMatches(ctl.SearchText(), tag)
}

func controlTextMatches(searchText string, tag *core.Tag) bool {
	if keyword := strings.ToLower(tag.Keyword); keyword != "" && strings.Contains(searchText, keyword) {
		return true
	}
	name := strings.ToLower(tag.Name)
	return name != "" && strings.Contains(searchText, name)
}

// MapOutcome reports what MapKeywords changed.
type MapOutcome struct {
	RegulationId core.ID
	Pairs        int // distinct (requirement, tag) pairs examined
	Inserted     int // keyword mappings created
	Existing     int // matches skipped because a keyword-derived mapping exists
}

// MapKeywords links every tagged requirement to the controls mentioning one
// of its tags, with score 1.0 and source keyword. A requirement-control pair
// already mapped by keyword, or rescored from a keyword mapping, is skipped.
// The whole invocation commits or rolls back as one transaction.
func (p *Pipeline) MapKeywords(ctx context.Context, regulationID core.ID) (*MapOutcome, error) {
	return exclusive(ctx, p, regulationID, func(ctx context.Context) (*MapOutcome, error) {
		return p.mapKeywords(ctx, regulationID)
	})
}

func (p *Pipeline) mapKeywords(ctx context.Context, regulationID core.ID) (*MapOutcome, error) {
	return runStage(ctx, p, StageMap, regulationID, func(ctx context.Context, logger *zap.Logger) (*MapOutcome, int, error) {
		out := &MapOutcome{RegulationId: regulationID}

		err := p.store.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := p.requireRegulation(ctx, regulationID); err != nil {
				return err
			}
			pairs, err := p.store.GetTaggedPairs(ctx, regulationID)
			if err != nil {
				return err
			}
			if len(pairs) == 0 {
				return fmt.Errorf("%w: regulation %d", core.ErrNoTaggedRequirements, regulationID)
			}
			controls, err := p.store.ListControls(ctx)
			if err != nil {
				return err
			}
			if len(controls) == 0 {
				return core.ErrNoControlsConfigured
			}

			searchTexts := make([]string, len(controls))
			for i, ctl := range controls {
				searchTexts[i] = ctl.SearchText()
			}

			out.Pairs = len(pairs)
			for _, pair := range pairs {
				for i, ctl := range controls {
					if !controlTextMatches(searchTexts[i], pair.Tag) {
						continue
					}
					exists, err := p.store.KeywordMappingExists(ctx, pair.RequirementId, ctl.Id)
					if err != nil {
						return err
					}
					if exists {
						out.Existing++
						continue
					}
					n, err := p.store.AddMappings(ctx, &core.RequirementControl{
						RequirementId:   pair.RequirementId,
						ControlId:       ctl.Id,
						SimilarityScore: core.KeywordScore,
						Source:          core.SourceKeyword,
					})
					if err != nil {
						return err
					}
					out.Inserted += n
				}
			}
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
		logger.Debug("keyword mapping finished",
			zap.Int("pairs", out.Pairs),
			zap.Int("existing", out.Existing))
		return out, out.Inserted, nil
	})
}
