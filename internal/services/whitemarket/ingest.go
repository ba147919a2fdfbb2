package whitemarket

import (
	"context"
	"fmt"
	"time"

	"csgo-market/internal/market"
	"csgo-market/internal/models"

	"go.uber.org/zap"
)

// Recorder is the part of the market store one polling cycle needs.
type Recorder interface {
	ResolveOrCreate(ctx context.Context, id models.Identity) (string, error)
	IngestBatch(ctx context.Context, batch []models.Observation) (market.BatchResult, error)
}

// Fetcher downloads the product export.
type Fetcher interface {
	FetchProducts(ctx context.Context) ([]Product, error)
}

// Summary reports one polling cycle.
type Summary struct {
	Products   int
	Listings   int
	Unresolved int
	Recorded   int
	Failed     int
}

type Ingester struct {
	fetcher  Fetcher
	recorder Recorder
	log      *zap.Logger
	now      func() time.Time
}

func NewIngester(fetcher Fetcher, recorder Recorder, log *zap.Logger) *Ingester {
	return &Ingester{
		fetcher:  fetcher,
		recorder: recorder,
		log:      log.Named("whitemarket"),
		now:      time.Now,
	}
}

// RunOnce fetches the export, resolves every listed variant and records one
// observation per variant, all stamped with the same fetch time.
func (i *Ingester) RunOnce(ctx context.Context) (Summary, error) {
	products, err := i.fetcher.FetchProducts(ctx)
	if err != nil {
		return Summary{}, err
	}
	fetchedAt := i.now().UTC()
	listings := Aggregate(products)
	summary := Summary{Products: len(products), Listings: len(listings)}

	batch := make([]models.Observation, 0, len(listings))
	// several class ids can map to one variant; they share a fetch time, so merge them
	byKey := make(map[string]int, len(listings))
	for _, l := range listings {
		key, err := i.recorder.ResolveOrCreate(ctx, l.Identity)
		if err != nil {
			summary.Unresolved++
			i.log.Warn("cannot resolve listing",
				zap.String("class_id", l.ClassID),
				zap.String("market_hash_name", l.MarketHashName),
				zap.Error(err))
			continue
		}
		if idx, ok := byKey[key]; ok {
			obs := &batch[idx]
			obs.Qty += l.Qty
			if l.Price.Valid && (!obs.Price.Valid || l.Price.Decimal.LessThan(obs.Price.Decimal)) {
				obs.Price = l.Price
			}
			continue
		}
		byKey[key] = len(batch)
		batch = append(batch, models.Observation{
			ItemKey:    key,
			Source:     models.SourceWhitemarket,
			Price:      l.Price,
			Qty:        l.Qty,
			ObservedAt: fetchedAt,
		})
	}

	result, err := i.recorder.IngestBatch(ctx, batch)
	summary.Recorded = result.Recorded
	summary.Failed = len(result.Failed)
	for _, f := range result.Failed {
		i.log.Warn("observation rejected", zap.String("item_key", f.Observation.ItemKey), zap.Error(f.Err))
	}
	if err != nil {
		return summary, fmt.Errorf("ingest whitemarket batch: %w", err)
	}

	i.log.Info("whitemarket cycle complete",
		zap.Int("products", summary.Products),
		zap.Int("listings", summary.Listings),
		zap.Int("recorded", summary.Recorded),
		zap.Int("failed", summary.Failed),
		zap.Int("unresolved", summary.Unresolved))
	return summary, nil
}
