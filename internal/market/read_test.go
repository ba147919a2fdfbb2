package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"csgo-market/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDoesNotCreate(t *testing.T) {
	s, db := newTestStore(t, Options{IdentityCacheSize: 8})
	ctx := context.Background()

	_, err := s.Lookup(ctx, redline())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.EqualValues(t, 0, countRows(t, db, &models.Item{}))

	key := mustResolve(t, s, redline())
	require.NoError(t, s.RecordObservation(ctx, observation(key, models.SourceWhitemarket, "12.34", 2, t0)))

	view, err := s.Lookup(ctx, redline())
	require.NoError(t, err)
	assert.Equal(t, key, view.ItemKey)
	assert.Equal(t, "StatTrak™ AK-47 | Redline (Field-Tested)", view.DisplayName)
	assert.Equal(t, 2, view.Quote(models.SourceWhitemarket).Qty)
	assert.Len(t, view.Sources, len(models.Sources))
}

func TestReadItemRederivesDisplayName(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	require.NoError(t, db.Model(&models.Item{}).Where("item_key = ?", key).UpdateColumn("display_name", "stale").Error)

	view, err := s.ReadItem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "StatTrak™ AK-47 | Redline (Field-Tested)", view.DisplayName)
}

func TestListItemsPagesByDisplayName(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	for _, c := range models.Conditions {
		mustResolve(t, s, models.Identity{NameBase: "AWP | Asiimov", Condition: models.ConditionPtr(c)})
	}
	mustResolve(t, s, models.Identity{NameBase: "★ Karambit"})

	all, total, err := s.ListItems(ctx, ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].DisplayName, all[i].DisplayName)
	}

	page, total, err := s.ListItems(ctx, ListParams{Search: "asiimov", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ItemKey, page[0].ItemKey)

	empty, total, err := s.ListItems(ctx, ListParams{Search: "no such skin"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestHistoryNewestFirst(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	for i := 0; i < 5; i++ {
		at := t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.RecordObservation(ctx, observation(key, models.SourceCSFloat, fmt.Sprintf("%d.00", 10+i), i, at)))
	}
	require.NoError(t, s.RecordObservation(ctx, observation(key, models.SourceBuff163, "1.00", 1, t0)))

	rows, err := s.History(ctx, key, models.SourceCSFloat, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].ObservedAt.Equal(t0.Add(4*time.Minute)))
	assert.True(t, rows[2].ObservedAt.Equal(t0.Add(2*time.Minute)))
	for _, r := range rows {
		assert.Equal(t, models.SourceCSFloat, r.Source)
	}

	_, err = s.History(ctx, key, "steam", 0)
	assert.ErrorIs(t, err, models.ErrUnknownSource)
	_, err = s.History(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", models.SourceCSFloat, 0)
	assert.ErrorIs(t, err, models.ErrUnknownItem)
}

func TestListItemsSearchMatchesWildcardsLiterally(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	mustResolve(t, s, models.Identity{NameBase: "AWP | Asiimov"})
	mustResolve(t, s, models.Identity{NameBase: "Sticker | 100% Pure"})
	mustResolve(t, s, models.Identity{NameBase: "Sticker | snake_eyes"})

	for search, want := range map[string]int64{"_": 1, "%": 1, "100%": 1, "!": 0, "sticker": 2} {
		views, total, err := s.ListItems(ctx, ListParams{Search: search})
		require.NoError(t, err)
		assert.Equal(t, want, total, search)
		assert.Len(t, views, int(want), search)
	}
}

func TestListParamsNormalize(t *testing.T) {
	assert.Equal(t, ListParams{Limit: 50}, ListParams{}.Normalize())
	assert.Equal(t, ListParams{Limit: 500, Offset: 0}, ListParams{Limit: 10000, Offset: -3}.Normalize())
	assert.Equal(t, ListParams{Search: "x", Limit: 20, Offset: 40}, ListParams{Search: "x", Limit: 20, Offset: 40}.Normalize())
}
