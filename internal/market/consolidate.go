package market

import (
	"context"
	"fmt"

	"csgo-market/internal/database"
	"csgo-market/internal/models"

	"go.uber.org/zap"
)

// CurrentValue is the newest observation for (item, source), reduced from
// the snapshot stream. Equal timestamps resolve to the later insert and are
// logged as a data-quality warning; the unique index prevents them for new
// writes, so a tie means legacy data.
func (s *Store) CurrentValue(ctx context.Context, itemKey string, src models.Source) (*models.Observation, error) {
	if !src.Valid() {
		return nil, &models.UnknownSourceError{Source: string(src)}
	}

	var rows []models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("item_key = ? AND source = ?", itemKey, src).
		Order("observed_at DESC, id DESC").
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("current value %s/%s: %w", itemKey, src, err)
	}

	if len(rows) == 0 {
		if _, err := s.GetItem(ctx, itemKey); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no %s observation for item %s", models.ErrNotFound, src, itemKey)
	}
	if len(rows) == 2 && rows[0].ObservedAt.Equal(rows[1].ObservedAt) {
		s.metrics.tie(string(src))
		s.log.Warn("observed_at tie in snapshot stream, using latest insert",
			zap.String("item_key", itemKey),
			zap.String("source", string(src)),
			zap.Time("observed_at", rows[0].ObservedAt),
			zap.Uint64("chosen_id", rows[0].ID),
			zap.Uint64("other_id", rows[1].ID))
	}

	obs := rows[0].Observation()
	return &obs, nil
}

// LatestBySource is the narrow projection for one item: every source with
// at least one observation maps to its newest one.
func (s *Store) LatestBySource(ctx context.Context, itemKey string) (map[models.Source]models.Observation, error) {
	if _, err := s.GetItem(ctx, itemKey); err != nil {
		return nil, err
	}
	rows, err := database.LatestSnapshots(s.db.WithContext(ctx), []string{itemKey}, models.Sources...)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Source]models.Observation, len(rows))
	for _, r := range rows {
		out[r.Source] = r.Observation()
	}
	return out, nil
}
