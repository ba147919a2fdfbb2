package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"csgo-market/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordObservationRejectsUnknownSource(t *testing.T) {
	s, db := newTestStore(t, Options{})
	key := mustResolve(t, s, redline())

	err := s.RecordObservation(context.Background(), observation(key, "steam", "1.00", 1, t0))

	assert.ErrorIs(t, err, models.ErrUnknownSource)
	assert.EqualValues(t, 0, countRows(t, db, &models.PriceSnapshot{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.rejected.WithLabelValues("steam", "unknown_source")))
}

func TestRecordObservationRejectsUnknownItem(t *testing.T) {
	s, db := newTestStore(t, Options{})

	err := s.RecordObservation(context.Background(), observation("01HZZZZZZZZZZZZZZZZZZZZZZZ", models.SourceCSFloat, "1.00", 1, t0))

	var unknown *models.UnknownItemError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", unknown.ItemKey)
	assert.EqualValues(t, 0, countRows(t, db, &models.PriceSnapshot{}))
	assert.EqualValues(t, 0, countRows(t, db, &models.MarketData{}))
}

func TestRecordObservationOutOfOrder(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	newer := observation(key, models.SourceBuff163, "41.20", 7, t0.Add(time.Hour))
	older := observation(key, models.SourceBuff163, "39.90", 9, t0)
	require.NoError(t, s.RecordObservation(ctx, newer))
	require.NoError(t, s.RecordObservation(ctx, older))

	current, err := s.CurrentValue(ctx, key, models.SourceBuff163)
	require.NoError(t, err)
	assert.True(t, current.ObservedAt.Equal(newer.ObservedAt))
	assert.True(t, current.Price.Decimal.Equal(decimal.RequireFromString("41.20")))
	assert.Equal(t, 7, current.Qty)

	view, err := s.ReadItem(ctx, key)
	require.NoError(t, err)
	q := view.Quote(models.SourceBuff163)
	assert.True(t, q.Equal(models.QuoteFromObservation(newer)))
	require.NotNil(t, view.FetchedAt)
	assert.True(t, view.FetchedAt.Equal(newer.ObservedAt))

	assert.EqualValues(t, 2, countRows(t, db, &models.PriceSnapshot{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.staleObservations.WithLabelValues("buff163")))
}

func TestRecordObservationDuplicateTimestamp(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	require.NoError(t, s.RecordObservation(ctx, observation(key, models.SourceCSFloat, "10.00", 1, t0)))
	// differs only below storage precision
	err := s.RecordObservation(ctx, observation(key, models.SourceCSFloat, "11.00", 2, t0.Add(300*time.Microsecond)))

	var violation *models.InvariantViolation
	require.True(t, errors.As(err, &violation))
	assert.ErrorIs(t, err, models.ErrInvariantViolation)
	assert.Equal(t, models.SourceCSFloat, violation.Source)
	assert.EqualValues(t, 1, countRows(t, db, &models.PriceSnapshot{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.invariantViolations.WithLabelValues("csfloat")))

	current, err := s.CurrentValue(ctx, key, models.SourceCSFloat)
	require.NoError(t, err)
	assert.True(t, current.Price.Decimal.Equal(decimal.NewFromInt(10)))
}

func TestRecordObservationKeepsSourcesIndependent(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	require.NoError(t, s.RecordObservation(ctx, observation(key, models.SourceWhitemarket, "12.00", 3, t0.Add(2*time.Hour))))
	require.NoError(t, s.RecordObservation(ctx, observation(key, models.SourceCSFloat, "11.50", 1, t0)))

	view, err := s.ReadItem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Quote(models.SourceWhitemarket).Qty)
	assert.Equal(t, 1, view.Quote(models.SourceCSFloat).Qty)
	assert.Nil(t, view.Quote(models.SourceBuff163).ObservedAt)
	assert.True(t, view.FetchedAt.Equal(t0.Add(2*time.Hour)))

	latest, err := s.LatestBySource(ctx, key)
	require.NoError(t, err)
	assert.Len(t, latest, 2)
}

func TestWideRowMatchesNarrowProjection(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	keys := []string{
		mustResolve(t, s, redline()),
		mustResolve(t, s, models.Identity{NameBase: "★ Karambit", StatTrak: true}),
	}

	// interleaved arrival with out-of-order timestamps per source
	offsets := []int{5, 1, 9, 3, 7, 2, 8}
	for i, off := range offsets {
		for j, key := range keys {
			src := models.Sources[(i+j)%len(models.Sources)]
			at := t0.Add(time.Duration(off) * time.Minute)
			err := s.RecordObservation(ctx, observation(key, src, decimal.NewFromInt(int64(10+i)).String(), i, at))
			if err != nil {
				require.ErrorIs(t, err, models.ErrInvariantViolation)
			}
		}
	}

	for _, key := range keys {
		divs, err := s.VerifyProjection(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, divs)
	}
	report, err := s.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
}

func TestConcurrentObservationsForOnePairKeepNewest(t *testing.T) {
	s, db := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	offsets := []int{7, 3, 9, 1, 5, 8, 2, 6, 4, 10}
	errs := make([]error, len(offsets))
	var wg sync.WaitGroup
	for i, off := range offsets {
		wg.Add(1)
		go func(i, off int) {
			defer wg.Done()
			at := t0.Add(time.Duration(off) * time.Minute)
			errs[i] = s.RecordObservation(ctx, observation(key, models.SourceCSFloat, decimal.NewFromInt(int64(off)).String(), off, at))
		}(i, off)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	current, err := s.CurrentValue(ctx, key, models.SourceCSFloat)
	require.NoError(t, err)
	assert.True(t, current.ObservedAt.Equal(t0.Add(10*time.Minute)))
	assert.Equal(t, 10, current.Qty)

	divs, err := s.VerifyProjection(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, divs)

	view, err := s.ReadItem(ctx, key)
	require.NoError(t, err)
	assert.True(t, view.FetchedAt.Equal(t0.Add(10*time.Minute)))
	assert.EqualValues(t, len(offsets), countRows(t, db, &models.PriceSnapshot{}))
}

func TestIngestBatchReportsFailuresByIndex(t *testing.T) {
	s, db := newTestStore(t, Options{})
	key := mustResolve(t, s, redline())

	batch := []models.Observation{
		observation(key, models.SourceWhitemarket, "12.00", 3, t0),
		observation(key, "steam", "12.00", 3, t0),
		observation(key, models.SourceCSFloat, "11.00", 1, t0),
		observation("01HZZZZZZZZZZZZZZZZZZZZZZZ", models.SourceBuff163, "9.00", 1, t0),
		observation(key, models.SourceBuff163, "9.50", 4, t0),
	}
	result, err := s.IngestBatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Recorded)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.ErrorIs(t, result.Failed[0], models.ErrUnknownSource)
	assert.Equal(t, 3, result.Failed[1].Index)
	assert.ErrorIs(t, result.Failed[1], models.ErrUnknownItem)
	assert.EqualValues(t, 3, countRows(t, db, &models.PriceSnapshot{}))
}

func TestIngestBatchStopsOnCancellation(t *testing.T) {
	s, db := newTestStore(t, Options{})
	key := mustResolve(t, s, redline())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := s.IngestBatch(ctx, []models.Observation{
		observation(key, models.SourceWhitemarket, "12.00", 3, t0),
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Recorded)
	assert.EqualValues(t, 0, countRows(t, db, &models.PriceSnapshot{}))
}

func TestCurrentValueWithoutObservations(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx := context.Background()
	key := mustResolve(t, s, redline())

	_, err := s.CurrentValue(ctx, key, models.SourceCSFloat)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.CurrentValue(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", models.SourceCSFloat)
	assert.ErrorIs(t, err, models.ErrUnknownItem)

	_, err = s.CurrentValue(ctx, key, "steam")
	assert.ErrorIs(t, err, models.ErrUnknownSource)
}
