package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"csgo-market/internal/database"
	"csgo-market/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// RecordObservation appends one observation to the snapshot stream and
// advances the wide row when the observation is the newest for its source.
// Both writes share a transaction; a rejected observation leaves no row.
func (s *Store) RecordObservation(ctx context.Context, obs models.Observation) error {
	obs = obs.Normalize()
	if err := obs.Validate(); err != nil {
		s.metrics.reject(string(obs.Source), rejectReason(err))
		return err
	}

	var advanced bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Item{}).Where("item_key = ?", obs.ItemKey).Count(&count).Error; err != nil {
			return fmt.Errorf("check item: %w", err)
		}
		if count == 0 {
			return &models.UnknownItemError{ItemKey: obs.ItemKey}
		}

		snap := models.NewPriceSnapshot(obs)
		if err := tx.Create(&snap).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return &models.InvariantViolation{
					ItemKey:    obs.ItemKey,
					Source:     obs.Source,
					ObservedAt: obs.ObservedAt,
					Err:        err,
				}
			}
			return fmt.Errorf("insert snapshot: %w", err)
		}

		// items created before the wide table existed may lack a row
		if err := database.EnsureMarketData(tx, obs.ItemKey); err != nil {
			return fmt.Errorf("ensure market data: %w", err)
		}
		var err error
		advanced, err = database.AdvanceMarketData(tx, obs)
		return err
	})
	if err != nil {
		var tie *models.InvariantViolation
		if errors.As(err, &tie) {
			s.metrics.tie(string(obs.Source))
			s.log.Warn("duplicate observation rejected",
				zap.String("item_key", obs.ItemKey),
				zap.String("source", string(obs.Source)),
				zap.Time("observed_at", obs.ObservedAt))
		}
		s.metrics.reject(string(obs.Source), rejectReason(err))
		return err
	}

	s.metrics.recorded(string(obs.Source), advanced)
	if !advanced {
		s.log.Debug("stored out-of-order observation without advancing current value",
			zap.String("item_key", obs.ItemKey),
			zap.String("source", string(obs.Source)),
			zap.Time("observed_at", obs.ObservedAt))
	}
	return nil
}

// ObservationError ties a failed observation to its position in a batch.
type ObservationError struct {
	Index       int                `json:"index"`
	Observation models.Observation `json:"observation"`
	Err         error              `json:"-"`
}

func (e ObservationError) Error() string {
	return fmt.Sprintf("observation %d (%s/%s): %v", e.Index, e.Observation.ItemKey, e.Observation.Source, e.Err)
}

func (e ObservationError) Unwrap() error { return e.Err }

// BatchResult summarises one fetch cycle.
type BatchResult struct {
	Recorded int
	Failed   []ObservationError
}

// IngestBatch records a fetch cycle. Sources ingest in parallel, each
// source's observations in order. A failing observation is reported in the
// result and never stops the others; only context cancellation is returned
// as an error.
func (s *Store) IngestBatch(ctx context.Context, batch []models.Observation) (BatchResult, error) {
	bySource := make(map[models.Source][]int)
	var result BatchResult
	for i, obs := range batch {
		if !obs.Source.Valid() {
			result.Failed = append(result.Failed, ObservationError{
				Index: i, Observation: obs, Err: &models.UnknownSourceError{Source: string(obs.Source)},
			})
			s.metrics.reject(string(obs.Source), "unknown_source")
			continue
		}
		bySource[obs.Source] = append(bySource[obs.Source], i)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for src, indexes := range bySource {
		src, indexes := src, indexes
		g.Go(func() error {
			recorded := 0
			var failed []ObservationError
			var cancelled error
			for _, i := range indexes {
				if cancelled = gctx.Err(); cancelled != nil {
					break
				}
				if err := s.RecordObservation(gctx, batch[i]); err != nil {
					failed = append(failed, ObservationError{Index: i, Observation: batch[i], Err: err})
					continue
				}
				recorded++
			}
			s.log.Debug("ingested source batch",
				zap.String("source", string(src)),
				zap.Int("recorded", recorded),
				zap.Int("failed", len(failed)))

			mu.Lock()
			result.Recorded += recorded
			result.Failed = append(result.Failed, failed...)
			mu.Unlock()
			return cancelled
		})
	}
	err := g.Wait()
	sort.Slice(result.Failed, func(a, b int) bool { return result.Failed[a].Index < result.Failed[b].Index })
	return result, err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrUnknownSource):
		return "unknown_source"
	case errors.Is(err, models.ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, models.ErrInvalidObservation):
		return "invalid"
	case errors.Is(err, models.ErrInvariantViolation):
		return "duplicate_timestamp"
	default:
		return "storage"
	}
}
