package market

import (
	"context"
	"testing"

	"csgo-market/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditFindsProblemsWithoutFixingThem(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	drifted := mustResolve(t, s, redline())
	orphan := mustResolve(t, s, models.Identity{NameBase: "★ Karambit"})
	graded := mustResolve(t, s, models.Identity{NameBase: "AWP | Asiimov", Condition: models.ConditionPtr(models.FieldTested)})

	require.NoError(t, s.RecordObservation(ctx, observation(drifted, models.SourceCSFloat, "10.00", 1, t0)))
	require.NoError(t, db.Model(&models.MarketData{}).Where("item_key = ?", drifted).
		UpdateColumn("price_csfloat", "99.00").Error)
	require.NoError(t, db.Where("item_key = ?", orphan).Delete(&models.MarketData{}).Error)
	require.NoError(t, db.Model(&models.Item{}).Where("item_key = ?", graded).
		UpdateColumn("condition", "Mint").Error)

	report, err := s.Audit(ctx)
	require.NoError(t, err)

	assert.False(t, report.Clean())
	assert.EqualValues(t, 3, report.Items)
	assert.EqualValues(t, 1, report.Snapshots)
	assert.EqualValues(t, 1, report.InvalidConditions)
	assert.EqualValues(t, 1, report.MissingMarketData)
	assert.Zero(t, report.UnknownSources)
	assert.Zero(t, report.TimestampTies)
	require.Len(t, report.Divergences, 1)
	assert.Equal(t, drifted, report.Divergences[0].ItemKey)
	assert.Equal(t, models.SourceCSFloat, report.Divergences[0].Source)

	var item models.Item
	require.NoError(t, db.Where("item_key = ?", graded).Take(&item).Error)
	assert.Equal(t, models.Condition("Mint"), *item.Condition)
}
