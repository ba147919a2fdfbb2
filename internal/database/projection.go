package database

import (
	"fmt"

	"csgo-market/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// latestSnapshotSQL keeps a snapshot only if no other row for the same
// (item, source) is newer, or equally new but inserted later.
const latestSnapshotSQL = `NOT EXISTS (
	SELECT 1 FROM price_snapshots n
	WHERE n.item_key = price_snapshots.item_key
	  AND n.source = price_snapshots.source
	  AND (n.observed_at > price_snapshots.observed_at
	       OR (n.observed_at = price_snapshots.observed_at AND n.id > price_snapshots.id))
)`

// LatestSnapshots is the narrow projection: the newest snapshot per
// (item, source) among itemKeys. Pass no sources to include all of them.
func LatestSnapshots(tx *gorm.DB, itemKeys []string, sources ...models.Source) ([]models.PriceSnapshot, error) {
	if len(itemKeys) == 0 {
		return nil, nil
	}
	q := tx.Model(&models.PriceSnapshot{}).
		Where("price_snapshots.item_key IN ?", itemKeys).
		Where(latestSnapshotSQL)
	if len(sources) > 0 {
		q = q.Where("price_snapshots.source IN ?", sources)
	}

	var rows []models.PriceSnapshot
	if err := q.Order("price_snapshots.item_key ASC, price_snapshots.source ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	return rows, nil
}

// EnsureMarketData creates empty wide rows for items that do not have one yet.
func EnsureMarketData(tx *gorm.DB, itemKeys ...string) error {
	if len(itemKeys) == 0 {
		return nil
	}
	rows := make([]models.MarketData, 0, len(itemKeys))
	for _, key := range itemKeys {
		rows = append(rows, models.MarketData{ItemKey: key})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// AdvanceMarketData moves the observation's column group forward if the
// observation is strictly newer than what the wide row holds. The timestamp
// comparison runs in SQL, so commit order between concurrent writers does
// not matter. It reports whether the row changed.
func AdvanceMarketData(tx *gorm.DB, obs models.Observation) (bool, error) {
	cols := obs.Source.Columns()
	res := tx.Model(&models.MarketData{}).
		Where("item_key = ?", obs.ItemKey).
		Where(fmt.Sprintf("(%s IS NULL OR %s < ?)", cols.ObservedAt, cols.ObservedAt), obs.ObservedAt).
		Updates(map[string]any{
			cols.Price:        obs.Price,
			cols.Qty:          obs.Qty,
			cols.HighestOffer: obs.HighestOffer,
			cols.ObservedAt:   obs.ObservedAt,
			"fetched_at": gorm.Expr(
				"CASE WHEN fetched_at IS NULL OR fetched_at < ? THEN ? ELSE fetched_at END",
				obs.ObservedAt, obs.ObservedAt,
			),
		})
	if res.Error != nil {
		return false, fmt.Errorf("advance market data %s/%s: %w", obs.ItemKey, obs.Source, res.Error)
	}
	return res.RowsAffected > 0, nil
}
