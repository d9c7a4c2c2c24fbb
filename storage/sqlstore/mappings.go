package sqlstore

import (
	"context"
	"fmt"

	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"gorm.io/gorm/clause"
)

func (s *Store) KeywordMappingExists(ctx context.Context, requirementID, controlID core.ID) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&requirementControlRow{}).
		Where("requirement_id = ? AND control_id = ? AND source IN ?",
			uint64(requirementID), uint64(controlID),
			[]string{string(core.SourceKeyword), string(core.SourceHybrid)}).
		Count(&n).Error
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *Store) AddMappings(ctx context.Context, mappings ...*core.RequirementControl) (int, error) {
	for i, m := range mappings {
		if m == nil {
			return 0, fmt.Errorf("%w: mapping %d is nil", storage.ErrInvalidQuery, i)
		}
		if err := core.ValidateSource(m.Source); err != nil {
			return 0, err
		}
		if err := core.ValidateScore(m.SimilarityScore); err != nil {
			return 0, err
		}
	}

	inserted := 0
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		for _, m := range mappings {
			row := &requirementControlRow{
				RequirementID:   uint64(m.RequirementId),
				ControlID:       uint64(m.ControlId),
				SimilarityScore: m.SimilarityScore,
				Source:          string(m.Source),
			}
			result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
			if result.Error != nil {
				return translate(result.Error)
			}
			if result.RowsAffected > 0 {
				m.Id = core.ID(row.ID)
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

const keywordCandidatesQuery = `
SELECT rc.id AS mapping_id, rc.requirement_id AS requirement_id, rc.control_id AS control_id,
       r.text AS requirement_text, c.title AS title, c.description AS description
FROM requirement_controls rc
JOIN requirements r ON r.id = rc.requirement_id
JOIN controls c ON c.id = rc.control_id
WHERE r.regulation_id = ? AND rc.source = ?
ORDER BY rc.id`

func (s *Store) GetKeywordCandidates(ctx context.Context, regulationID core.ID) ([]*core.MappingCandidate, error) {
	var rows []candidateScan
	err := s.conn(ctx).Raw(keywordCandidatesQuery, uint64(regulationID), string(core.SourceKeyword)).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*core.MappingCandidate, 0, len(rows))
	for _, row := range rows {
		ctl := core.Control{Title: row.Title, Description: row.Description}
		out = append(out, &core.MappingCandidate{
			MappingId:       core.ID(row.MappingID),
			RequirementId:   core.ID(row.RequirementID),
			ControlId:       core.ID(row.ControlID),
			RequirementText: row.RequirementText,
			ControlText:     ctl.EmbeddingText(),
		})
	}
	return out, nil
}

func (s *Store) ApplyScores(ctx context.Context, updates ...*core.ScoreUpdate) (int, error) {
	for _, u := range updates {
		if err := core.ValidateScore(u.Score); err != nil {
			return 0, err
		}
		if err := core.ValidateSource(u.Source); err != nil {
			return 0, err
		}
	}

	changed := 0
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		for _, u := range updates {
			result := s.conn(ctx).Model(&requirementControlRow{}).
				Where("id = ? AND source = ?", uint64(u.MappingId), string(core.SourceKeyword)).
				Updates(map[string]any{
					"similarity_score": u.Score,
					"source":           string(u.Source),
				})
			if result.Error != nil {
				return translate(result.Error)
			}
			changed += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

const resultsQuery = `
SELECT r.id AS requirement_id, r.clause_number AS clause_number, r.text AS requirement_text,
       t.name AS tag_name, rc.id AS mapping_id, c.framework AS framework,
       c.control_id AS control_code, c.title AS control_title,
       rc.similarity_score AS similarity_score, rc.source AS source
FROM requirements r
JOIN requirement_controls rc ON rc.requirement_id = r.id
JOIN controls c ON c.id = rc.control_id
LEFT JOIN requirement_tags rt ON rt.requirement_id = r.id
LEFT JOIN tags t ON t.id = rt.tag_id
WHERE r.regulation_id = ? AND rc.similarity_score >= ?
ORDER BY r.id, c.framework, c.control_id, rc.id, COALESCE(t.name, '')`

func (s *Store) GetResults(ctx context.Context, regulationID core.ID, minScore float64) ([]*core.ResultRow, error) {
	var rows []resultScan
	if err := s.conn(ctx).Raw(resultsQuery, uint64(regulationID), minScore).Scan(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*core.ResultRow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out, nil
}

const (
	statusCountsQuery = `
SELECT status AS label, COUNT(*) AS n
FROM requirements
WHERE regulation_id = ?
GROUP BY status`

	sourceCountsQuery = `
SELECT rc.source AS label, COUNT(*) AS n
FROM requirement_controls rc
JOIN requirements r ON r.id = rc.requirement_id
WHERE r.regulation_id = ?
GROUP BY rc.source`

	tagAssociationsQuery = `
SELECT COUNT(*)
FROM requirement_tags rt
JOIN requirements r ON r.id = rt.requirement_id
WHERE r.regulation_id = ?`
)

func (s *Store) Summarize(ctx context.Context, regulationID core.ID) (*core.RegulationSummary, error) {
	summary := &core.RegulationSummary{}
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		reg, err := s.GetRegulation(ctx, regulationID)
		if err != nil {
			return err
		}
		summary.Regulation = reg

		db := s.conn(ctx)
		var statuses []countScan
		if err := db.Raw(statusCountsQuery, uint64(regulationID)).Scan(&statuses).Error; err != nil {
			return translate(err)
		}
		for _, c := range statuses {
			summary.Requirements += c.N
			switch core.RequirementStatus(c.Label) {
			case core.StatusPendingAnalysis:
				summary.Pending = c.N
			case core.StatusTagged:
				summary.Tagged = c.N
			}
		}

		var sources []countScan
		if err := db.Raw(sourceCountsQuery, uint64(regulationID)).Scan(&sources).Error; err != nil {
			return translate(err)
		}
		for _, c := range sources {
			switch core.MappingSource(c.Label) {
			case core.SourceKeyword:
				summary.KeywordMappings = c.N
			case core.SourceSemantic:
				summary.SemanticMappings = c.N
			case core.SourceHybrid:
				summary.HybridMappings = c.N
			}
		}

		var assocs int64
		if err := db.Raw(tagAssociationsQuery, uint64(regulationID)).Scan(&assocs).Error; err != nil {
			return translate(err)
		}
		summary.TagAssociations = int(assocs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
