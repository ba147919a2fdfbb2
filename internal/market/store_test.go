package market

import (
	"context"
	"testing"
	"time"

	"csgo-market/internal/database"
	"csgo-market/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("file:"+ulid.Make().String()+"?mode=memory&cache=shared", database.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T, opts Options) (*Store, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	store, err := NewStore(db, zap.NewNop(), opts)
	require.NoError(t, err)
	return store, db
}

func redline() models.Identity {
	return models.Identity{NameBase: "AK-47 | Redline", StatTrak: true, Condition: models.ConditionPtr(models.FieldTested)}
}

func mustResolve(t *testing.T, s *Store, id models.Identity) string {
	t.Helper()
	key, err := s.ResolveOrCreate(context.Background(), id)
	require.NoError(t, err)
	return key
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func observation(key string, src models.Source, p string, qty int, at time.Time) models.Observation {
	return models.Observation{ItemKey: key, Source: src, Price: price(p), Qty: qty, ObservedAt: at}
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
