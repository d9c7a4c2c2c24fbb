package pipeline

import (
	"context"
	"errors"

	"github.com/poiesic/regmap/core"
)

// RunOutcome collects the outcome of every stage Run executed.
// A nil stage outcome means the stage was skipped; its name is in Skipped.
type RunOutcome struct {
	RegulationId core.ID
	Parse        *ParseOutcome
	Tag          *TagOutcome
	Map          *MapOutcome
	Rescore      *RescoreOutcome
	Skipped      []string
}

// Run executes parse, tag, map and rescore in order while holding the
// regulation's lock once. A stage whose work is already done is skipped:
// parse when the regulation has requirements, tag when nothing is pending,
// rescore when no keyword mappings are left. Any other error stops the run
// and is returned together with the outcomes gathered so far.
//
// Run therefore resumes a regulation where an earlier run stopped.
func (p *Pipeline) Run(ctx context.Context, regulationID core.ID, text string) (*RunOutcome, error) {
	return exclusive(ctx, p, regulationID, func(ctx context.Context) (*RunOutcome, error) {
		return p.run(ctx, regulationID, text)
	})
}

func (p *Pipeline) run(ctx context.Context, regulationID core.ID, text string) (*RunOutcome, error) {
	out := &RunOutcome{RegulationId: regulationID}
	skip := func(stage string, err, done error) error {
		if errors.Is(err, done) {
			out.Skipped = append(out.Skipped, stage)
			return nil
		}
		return err
	}

	parsed, err := p.parse(ctx, regulationID, text)
	if err = skip(StageParse, err, core.ErrAlreadyParsed); err != nil {
		return out, err
	}
	out.Parse = parsed

	tagged, err := p.tag(ctx, regulationID)
	if err = skip(StageTag, err, core.ErrNoPendingRequirements); err != nil {
		return out, err
	}
	out.Tag = tagged

	if out.Map, err = p.mapKeywords(ctx, regulationID); err != nil {
		return out, err
	}

	rescored, err := p.rescore(ctx, regulationID)
	if err = skip(StageRescore, err, core.ErrNoKeywordMappings); err != nil {
		return out, err
	}
	out.Rescore = rescored
	return out, nil
}
