package pipeline

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/poiesic/regmap/core"
	"go.uber.org/zap"
)

// clauseDelimiter matches headings such as "Article 1.", "SECTION 12:" or
// "clause 3)". The heading and one trailing punctuation mark are dropped.
var clauseDelimiter = regexp.MustCompile(`(?i)(article|section|clause)\s+\d+[.:)]?`)

// SplitClauses splits text on clause headings and returns the trimmed,
// non-empty segments in document order. Text before the first heading is
// kept as a clause of its own.
func SplitClauses(text string) []string {
	parts := clauseDelimiter.Split(text, -1)
	clauses := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clauses = append(clauses, part)
		}
	}
	return clauses
}

// ParseOutcome reports what Parse stored.
type ParseOutcome struct {
	RegulationId core.ID
	Requirements []*core.Requirement
}

// Inserted returns the number of requirements created.
func (o *ParseOutcome) Inserted() int {
	return len(o.Requirements)
}

// Parse splits text into requirements numbered 1..N, all pending analysis.
// A regulation that already has requirements fails with
// core.ErrAlreadyParsed; the insert is all-or-nothing.
func (p *Pipeline) Parse(ctx context.Context, regulationID core.ID, text string) (*ParseOutcome, error) {
	return exclusive(ctx, p, regulationID, func(ctx context.Context) (*ParseOutcome, error) {
		return p.parse(ctx, regulationID, text)
	})
}

// ParseSource parses the file named by the regulation's SourceRef.
func (p *Pipeline) ParseSource(ctx context.Context, regulationID core.ID) (*ParseOutcome, error) {
	reg, err := p.requireRegulation(ctx, regulationID)
	if err != nil {
		return nil, err
	}
	if reg.SourceRef == "" {
		return nil, fmt.Errorf("%w: regulation %d has no source file", core.ErrEmptyDocument, regulationID)
	}
	data, err := os.ReadFile(reg.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("read regulation %d source: %w", regulationID, err)
	}
	return p.Parse(ctx, regulationID, string(data))
}

func (p *Pipeline) parse(ctx context.Context, regulationID core.ID, text string) (*ParseOutcome, error) {
	return runStage(ctx, p, StageParse, regulationID, func(ctx context.Context, logger *zap.Logger) (*ParseOutcome, int, error) {
		clauses := SplitClauses(text)
		out := &ParseOutcome{RegulationId: regulationID}

		err := p.store.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := p.requireRegulation(ctx, regulationID); err != nil {
				return err
			}
			if len(clauses) == 0 {
				return fmt.Errorf("%w: regulation %d", core.ErrEmptyDocument, regulationID)
			}
			existing, err := p.store.CountRequirements(ctx, regulationID)
			if err != nil {
				return err
			}
			if existing > 0 {
				return fmt.Errorf("%w: regulation %d has %d requirements", core.ErrAlreadyParsed, regulationID, existing)
			}

			reqs := make([]*core.Requirement, len(clauses))
			for i, clause := range clauses {
				reqs[i] = &core.Requirement{
					RegulationId: regulationID,
					ClauseNumber: i + 1,
					Text:         clause,
					Status:       core.StatusPendingAnalysis,
				}
			}
			added, err := p.store.AddRequirements(ctx, reqs...)
			if err != nil {
				return err
			}
			out.Requirements = added
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
		logger.Debug("clauses extracted", zap.Int("clauses", len(clauses)))
		return out, out.Inserted(), nil
	})
}
