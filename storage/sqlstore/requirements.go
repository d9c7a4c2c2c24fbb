package sqlstore

import (
	"context"
	"fmt"

	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"gorm.io/gorm/clause"
)

func (s *Store) CountRequirements(ctx context.Context, regulationID core.ID) (int, error) {
	var n int64
	err := s.conn(ctx).Model(&requirementRow{}).
		Where("regulation_id = ?", uint64(regulationID)).
		Count(&n).Error
	if err != nil {
		return 0, translate(err)
	}
	return int(n), nil
}

func (s *Store) AddRequirements(ctx context.Context, requirements ...*core.Requirement) ([]*core.Requirement, error) {
	if len(requirements) == 0 {
		return requirements, nil
	}
	rows := make([]*requirementRow, len(requirements))
	for i, req := range requirements {
		if req == nil {
			return nil, fmt.Errorf("%w: requirement %d is nil", storage.ErrInvalidQuery, i)
		}
		status := req.Status
		if status == "" {
			status = core.StatusPendingAnalysis
		}
		if err := core.ValidateStatus(status); err != nil {
			return nil, err
		}
		rows[i] = &requirementRow{
			RegulationID: uint64(req.RegulationId),
			ClauseNumber: req.ClauseNumber,
			Text:         req.Text,
			Status:       string(status),
		}
	}
	if err := s.conn(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return nil, translate(err)
	}
	for i, row := range rows {
		requirements[i].Id = core.ID(row.ID)
		requirements[i].Status = core.RequirementStatus(row.Status)
	}
	return requirements, nil
}

func (s *Store) GetRequirements(ctx context.Context, regulationID core.ID) ([]*core.Requirement, error) {
	return s.findRequirements(ctx, "regulation_id = ?", uint64(regulationID))
}

func (s *Store) GetPendingRequirements(ctx context.Context, regulationID core.ID) ([]*core.Requirement, error) {
	return s.findRequirements(ctx, "regulation_id = ? AND status = ?", uint64(regulationID), string(core.StatusPendingAnalysis))
}

func (s *Store) findRequirements(ctx context.Context, query string, args ...any) ([]*core.Requirement, error) {
	var rows []requirementRow
	if err := s.conn(ctx).Where(query, args...).Order("clause_number").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*core.Requirement, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out, nil
}

// AddRequirementTags inserts one row at a time so skipped conflicts are counted exactly.
func (s *Store) AddRequirementTags(ctx context.Context, associations ...*core.RequirementTag) (int, error) {
	inserted := 0
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		for _, assoc := range associations {
			row := &requirementTagRow{
				RequirementID: uint64(assoc.RequirementId),
				TagID:         uint64(assoc.TagId),
			}
			result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
			if result.Error != nil {
				return translate(result.Error)
			}
			if result.RowsAffected > 0 {
				assoc.Id = core.ID(row.ID)
				inserted++
			}
		}
		return nil
	})
	return inserted, err
}

func (s *Store) MarkTagged(ctx context.Context, ids ...core.ID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	raw := make([]uint64, len(ids))
	for i, id := range ids {
		raw[i] = uint64(id)
	}
	result := s.conn(ctx).Model(&requirementRow{}).
		Where("id IN ? AND status = ?", raw, string(core.StatusPendingAnalysis)).
		Update("status", string(core.StatusTagged))
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	return int(result.RowsAffected), nil
}

const taggedPairsQuery = `
SELECT DISTINCT r.id AS requirement_id, t.id AS tag_id, t.name AS name, t.keyword AS keyword
FROM requirements r
JOIN requirement_tags rt ON rt.requirement_id = r.id
JOIN tags t ON t.id = rt.tag_id
WHERE r.regulation_id = ? AND r.status = ?
ORDER BY r.id, t.id`

func (s *Store) GetTaggedPairs(ctx context.Context, regulationID core.ID) ([]*core.TaggedPair, error) {
	var rows []taggedPairScan
	err := s.conn(ctx).Raw(taggedPairsQuery, uint64(regulationID), string(core.StatusTagged)).Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*core.TaggedPair, 0, len(rows))
	for _, row := range rows {
		out = append(out, &core.TaggedPair{
			RequirementId: core.ID(row.RequirementID),
			Tag:           &core.Tag{Id: core.ID(row.TagID), Name: row.Name, Keyword: row.Keyword},
		})
	}
	return out, nil
}
