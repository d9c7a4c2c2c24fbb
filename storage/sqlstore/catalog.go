package sqlstore

import (
	"context"

	"github.com/poiesic/regmap/core"
	"go.uber.org/zap"
)

func (s *Store) ListTags(ctx context.Context) ([]*core.Tag, error) {
	var rows []tagRow
	if err := s.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*core.Tag, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out, nil
}

func (s *Store) ListControls(ctx context.Context) ([]*core.Control, error) {
	var rows []controlRow
	if err := s.conn(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*core.Control, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCore())
	}
	return out, nil
}

// SeedCatalog only writes into empty tables, so edits made after the first
// seed survive restarts.
func (s *Store) SeedCatalog(ctx context.Context, tags []*core.Tag, controls []*core.Control) (int, int, error) {
	var tagsAdded, controlsAdded int
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)

		var n int64
		if err := db.Model(&tagRow{}).Count(&n).Error; err != nil {
			return translate(err)
		}
		if n == 0 && len(tags) > 0 {
			rows := make([]*tagRow, len(tags))
			for i, tag := range tags {
				if err := core.ValidateTag(tag); err != nil {
					return err
				}
				rows[i] = &tagRow{Name: tag.Name, Keyword: tag.Keyword}
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return translate(err)
			}
			for i, row := range rows {
				tags[i].Id = core.ID(row.ID)
			}
			tagsAdded = len(rows)
		}

		if err := db.Model(&controlRow{}).Count(&n).Error; err != nil {
			return translate(err)
		}
		if n == 0 && len(controls) > 0 {
			rows := make([]*controlRow, len(controls))
			for i, ctl := range controls {
				if err := core.ValidateControl(ctl); err != nil {
					return err
				}
				rows[i] = &controlRow{Framework: ctl.Framework, ControlID: ctl.Code, Title: ctl.Title, Description: ctl.Description}
			}
			if err := db.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return translate(err)
			}
			for i, row := range rows {
				controls[i].Id = core.ID(row.ID)
			}
			controlsAdded = len(rows)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if tagsAdded > 0 || controlsAdded > 0 {
		s.logger.Info("seeded catalog", zap.Int("tags", tagsAdded), zap.Int("controls", controlsAdded))
	}
	return tagsAdded, controlsAdded, nil
}
