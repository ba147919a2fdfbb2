package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampPrecision is the resolution observation timestamps are stored at.
// MySQL datetime(3) is the coarsest engine in use.
const TimestampPrecision = time.Millisecond

// Observation is one price reading for one (item, source) pair.
type Observation struct {
	ItemKey      string              `json:"item_key"`
	Source       Source              `json:"source"`
	Price        decimal.NullDecimal `json:"price"`
	Qty          int                 `json:"qty"`
	HighestOffer decimal.NullDecimal `json:"highest_offer"`
	ObservedAt   time.Time           `json:"observed_at"`
}

// Normalize puts the timestamp in UTC at storage precision so that
// comparisons in SQL and in Go agree.
func (o Observation) Normalize() Observation {
	o.ObservedAt = o.ObservedAt.UTC().Truncate(TimestampPrecision)
	return o
}

// Validate checks everything except item existence, which needs the store.
func (o Observation) Validate() error {
	if !o.Source.Valid() {
		return &UnknownSourceError{Source: string(o.Source)}
	}
	if o.ItemKey == "" {
		return &UnknownItemError{ItemKey: o.ItemKey}
	}
	if o.Qty < 0 {
		return fmt.Errorf("%w: qty %d is negative", ErrInvalidObservation, o.Qty)
	}
	if o.ObservedAt.IsZero() {
		return fmt.Errorf("%w: observed_at is required", ErrInvalidObservation)
	}
	if o.Price.Valid && o.Price.Decimal.IsNegative() {
		return fmt.Errorf("%w: price %s is negative", ErrInvalidObservation, o.Price.Decimal)
	}
	if o.HighestOffer.Valid && o.HighestOffer.Decimal.IsNegative() {
		return fmt.Errorf("%w: highest offer %s is negative", ErrInvalidObservation, o.HighestOffer.Decimal)
	}
	return nil
}

// PriceSnapshot is the append-only stored form of an Observation.
// The unique index rejects a second row for the same (item, source, observed_at).
type PriceSnapshot struct {
	ID           uint64              `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemKey      string              `json:"item_key" gorm:"size:26;not null;uniqueIndex:idx_snapshot_item_source_time,priority:1"`
	Source       Source              `json:"source" gorm:"size:32;not null;uniqueIndex:idx_snapshot_item_source_time,priority:2"`
	Price        decimal.NullDecimal `json:"price" gorm:"type:decimal(20,4)"`
	Qty          int                 `json:"qty" gorm:"not null;default:0"`
	HighestOffer decimal.NullDecimal `json:"highest_offer" gorm:"type:decimal(20,4)"`
	ObservedAt   time.Time           `json:"observed_at" gorm:"not null;uniqueIndex:idx_snapshot_item_source_time,priority:3"`
	CreatedAt    time.Time           `json:"created_at"`
}

func (PriceSnapshot) TableName() string { return "price_snapshots" }

func NewPriceSnapshot(o Observation) PriceSnapshot {
	return PriceSnapshot{
		ItemKey:      o.ItemKey,
		Source:       o.Source,
		Price:        o.Price,
		Qty:          o.Qty,
		HighestOffer: o.HighestOffer,
		ObservedAt:   o.ObservedAt,
	}
}

func (s PriceSnapshot) Observation() Observation {
	return Observation{
		ItemKey:      s.ItemKey,
		Source:       s.Source,
		Price:        s.Price,
		Qty:          s.Qty,
		HighestOffer: s.HighestOffer,
		ObservedAt:   s.ObservedAt.UTC(),
	}
}
