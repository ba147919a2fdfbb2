package database

import (
	"errors"
	"fmt"
	"time"

	"csgo-market/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const backfillBatchSize = 500

// SchemaMigration records an applied migration version.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:128;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

// Migration is one versioned, at-most-once schema or data step.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB, log *zap.Logger) error
}

// Migrations returns every migration in version order. Versions are never
// renumbered; new steps are appended.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_items", Up: func(tx *gorm.DB, _ *zap.Logger) error {
			return tx.AutoMigrate(&models.Item{})
		}},
		{Version: 2, Name: "create_price_snapshots", Up: func(tx *gorm.DB, _ *zap.Logger) error {
			return tx.AutoMigrate(&models.PriceSnapshot{})
		}},
		{Version: 3, Name: "create_market_data", Up: func(tx *gorm.DB, _ *zap.Logger) error {
			return tx.AutoMigrate(&models.MarketData{})
		}},
		{Version: 4, Name: "backfill_market_data", Up: BackfillMarketData},
		{Version: 5, Name: "rederive_display_names", Up: RederiveDisplayNames},
	}
}

// Migrate applies pending migrations, each in its own transaction.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	pending, err := PendingMigrations(db)
	if err != nil {
		return err
	}
	for _, m := range pending {
		start := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx, log); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Version: m.Version, Name: m.Name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d %s: %w", m.Version, m.Name, err)
		}
		log.Info("applied migration",
			zap.Int("version", m.Version),
			zap.String("name", m.Name),
			zap.Duration("took", time.Since(start)))
	}
	return nil
}

// PendingMigrations lists migrations not yet recorded in schema_migrations.
// It only reads: on a fresh database every migration is pending.
func PendingMigrations(db *gorm.DB) ([]Migration, error) {
	if !db.Migrator().HasTable(&SchemaMigration{}) {
		return Migrations(), nil
	}
	var applied []SchemaMigration
	if err := db.Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	var pending []Migration
	for _, m := range Migrations() {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// BackfillMarketData populates the wide shape from the snapshot stream:
// every identity gets a wide row, then each row's column groups are advanced
// to the narrow projection. It is idempotent and safe to rerun.
func BackfillMarketData(tx *gorm.DB, log *zap.Logger) error {
	var items []models.Item
	var pivoted, advanced int
	res := tx.Model(&models.Item{}).Select("item_key").
		FindInBatches(&items, backfillBatchSize, func(batch *gorm.DB, _ int) error {
			keys := make([]string, 0, len(items))
			for _, it := range items {
				keys = append(keys, it.ItemKey)
			}
			if err := EnsureMarketData(tx, keys...); err != nil {
				return fmt.Errorf("ensure market data rows: %w", err)
			}
			latest, err := LatestSnapshots(tx, keys)
			if err != nil {
				return err
			}
			for _, snap := range latest {
				if !snap.Source.Valid() {
					log.Warn("skipping snapshot with unknown source",
						zap.String("item_key", snap.ItemKey),
						zap.String("source", string(snap.Source)))
					continue
				}
				changed, err := AdvanceMarketData(tx, snap.Observation())
				if err != nil {
					return err
				}
				pivoted++
				if changed {
					advanced++
				}
			}
			return nil
		})
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("backfill market data: %w", res.Error)
	}
	log.Info("backfilled market data", zap.Int("pivoted", pivoted), zap.Int("advanced", advanced))
	return nil
}

// RederiveDisplayNames rewrites any cached display_name that no longer
// matches DeriveDisplayName for its identity columns.
func RederiveDisplayNames(tx *gorm.DB, log *zap.Logger) error {
	var items []models.Item
	var fixed int
	res := tx.Model(&models.Item{}).
		FindInBatches(&items, backfillBatchSize, func(batch *gorm.DB, _ int) error {
			for _, it := range items {
				want := it.Identity().DisplayName()
				if it.DisplayName == want {
					continue
				}
				if err := tx.Model(&models.Item{}).Where("item_key = ?", it.ItemKey).
					UpdateColumn("display_name", want).Error; err != nil {
					return fmt.Errorf("rederive %s: %w", it.ItemKey, err)
				}
				fixed++
			}
			return nil
		})
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("rederive display names: %w", res.Error)
	}
	if fixed > 0 {
		log.Warn("rederived stale display names", zap.Int("count", fixed))
	}
	return nil
}
