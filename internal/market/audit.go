package market

import (
	"context"
	"errors"
	"fmt"

	"csgo-market/internal/database"
	"csgo-market/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// condition is a reserved word in MySQL, so raw SQL refers to it through a quoted column.
var conditionColumn = clause.Column{Table: "items", Name: "condition"}

// Divergence is a wide-row column group that disagrees with the narrow
// projection computed from the snapshot stream.
type Divergence struct {
	ItemKey string             `json:"item_key"`
	Source  models.Source      `json:"source"`
	Wide    models.SourceQuote `json:"wide"`
	Narrow  models.SourceQuote `json:"narrow"`
}

// AuditReport counts data-quality problems. Audit only reads; fixing any
// of these is an explicit backfill decision.
type AuditReport struct {
	Items             int64        `json:"items"`
	Snapshots         int64        `json:"snapshots"`
	InvalidConditions int64        `json:"invalid_conditions"`
	UnknownSources    int64        `json:"unknown_sources"`
	TimestampTies     int64        `json:"timestamp_ties"`
	MissingMarketData int64        `json:"missing_market_data"`
	Divergences       []Divergence `json:"divergences"`
}

func (r AuditReport) Clean() bool {
	return r.InvalidConditions == 0 && r.UnknownSources == 0 && r.TimestampTies == 0 &&
		r.MissingMarketData == 0 && len(r.Divergences) == 0
}

// VerifyProjection compares an item's wide row with the narrow projection
// for every source.
func (s *Store) VerifyProjection(ctx context.Context, itemKey string) ([]Divergence, error) {
	return s.verifyProjection(s.db.WithContext(ctx), []string{itemKey})
}

func (s *Store) verifyProjection(db *gorm.DB, itemKeys []string) ([]Divergence, error) {
	var wide []models.MarketData
	if err := db.Where("item_key IN ?", itemKeys).Find(&wide).Error; err != nil {
		return nil, fmt.Errorf("load market data: %w", err)
	}
	wideByKey := make(map[string]models.MarketData, len(wide))
	for _, w := range wide {
		wideByKey[w.ItemKey] = w
	}

	latest, err := database.LatestSnapshots(db, itemKeys, models.Sources...)
	if err != nil {
		return nil, err
	}
	narrow := make(map[string]map[models.Source]models.SourceQuote, len(itemKeys))
	for _, snap := range latest {
		if narrow[snap.ItemKey] == nil {
			narrow[snap.ItemKey] = make(map[models.Source]models.SourceQuote)
		}
		narrow[snap.ItemKey][snap.Source] = models.QuoteFromObservation(snap.Observation())
	}

	var out []Divergence
	for _, key := range itemKeys {
		for _, src := range models.Sources {
			w := wideByKey[key].Quote(src)
			n := narrow[key][src]
			if !w.Equal(n) {
				out = append(out, Divergence{ItemKey: key, Source: src, Wide: w, Narrow: n})
			}
		}
	}
	return out, nil
}

// Audit scans the store for enumeration violations, observed_at ties,
// missing wide rows and wide/narrow divergence.
func (s *Store) Audit(ctx context.Context) (*AuditReport, error) {
	db := s.db.WithContext(ctx)
	report := &AuditReport{}

	if err := db.Model(&models.Item{}).Count(&report.Items).Error; err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	if err := db.Model(&models.PriceSnapshot{}).Count(&report.Snapshots).Error; err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	if err := db.Model(&models.Item{}).
		Where("? IS NOT NULL AND ? NOT IN ?", conditionColumn, conditionColumn, models.Conditions).
		Count(&report.InvalidConditions).Error; err != nil {
		return nil, fmt.Errorf("count invalid conditions: %w", err)
	}
	if err := db.Model(&models.PriceSnapshot{}).
		Where("source NOT IN ?", models.Sources).
		Count(&report.UnknownSources).Error; err != nil {
		return nil, fmt.Errorf("count unknown sources: %w", err)
	}

	ties := db.Model(&models.PriceSnapshot{}).
		Select("item_key, source, observed_at").
		Group("item_key, source, observed_at").
		Having("COUNT(*) > 1")
	if err := db.Table("(?) AS ties", ties).Count(&report.TimestampTies).Error; err != nil {
		return nil, fmt.Errorf("count observed_at ties: %w", err)
	}

	if err := db.Model(&models.Item{}).
		Joins("LEFT JOIN market_data ON market_data.item_key = items.item_key").
		Where("market_data.item_key IS NULL").
		Count(&report.MissingMarketData).Error; err != nil {
		return nil, fmt.Errorf("count missing market data: %w", err)
	}

	var items []models.Item
	res := db.Model(&models.Item{}).Select("item_key").
		FindInBatches(&items, 500, func(_ *gorm.DB, _ int) error {
			keys := make([]string, 0, len(items))
			for _, it := range items {
				keys = append(keys, it.ItemKey)
			}
			divs, err := s.verifyProjection(db, keys)
			if err != nil {
				return err
			}
			report.Divergences = append(report.Divergences, divs...)
			return nil
		})
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("verify projection: %w", res.Error)
	}
	return report, nil
}
