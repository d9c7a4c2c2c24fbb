package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
	"go.uber.org/zap"
)

func (s *Store) CreateRegulation(ctx context.Context, regulation *core.Regulation) (*core.Regulation, error) {
	if regulation == nil {
		return nil, fmt.Errorf("%w: regulation is nil", storage.ErrInvalidQuery)
	}
	if regulation.UploadedAt.IsZero() {
		regulation.UploadedAt = time.Now().UTC()
	}
	row := &regulationRow{
		Name:       regulation.Name,
		FilePath:   regulation.SourceRef,
		UploadDate: regulation.UploadedAt,
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return nil, translate(err)
	}
	regulation.Id = core.ID(row.ID)
	return regulation, nil
}

func (s *Store) GetRegulation(ctx context.Context, id core.ID) (*core.Regulation, error) {
	var row regulationRow
	if err := s.conn(ctx).First(&row, uint64(id)).Error; err != nil {
		return nil, translate(err)
	}
	return row.toCore(), nil
}

func (s *Store) ListRegulations(ctx context.Context) ([]*core.Regulation, error) {
	var rows []regulationRow
	if err := s.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*core.Regulation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out, nil
}

func (s *Store) DeleteRegulation(ctx context.Context, id core.ID) error {
	result := s.conn(ctx).Delete(&regulationRow{}, uint64(id))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	s.logger.Debug("deleted regulation", zap.Uint64("regulation_id", uint64(id)))
	return nil
}
