package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the wide current-value row: one per item, one column group
// per source. Each group only ever moves forward in observed_at.
type MarketData struct {
	ItemKey string `json:"item_key" gorm:"primaryKey;size:26"`

	PriceWhitemarket        decimal.NullDecimal `json:"price_whitemarket" gorm:"column:price_whitemarket;type:decimal(20,4)"`
	QtyWhitemarket          int                 `json:"qty_whitemarket" gorm:"column:qty_whitemarket;not null;default:0"`
	HighestOfferWhitemarket decimal.NullDecimal `json:"highest_offer_whitemarket" gorm:"column:highest_offer_whitemarket;type:decimal(20,4)"`
	ObservedAtWhitemarket   *time.Time          `json:"observed_at_whitemarket" gorm:"column:observed_at_whitemarket"`

	PriceCSFloat        decimal.NullDecimal `json:"price_csfloat" gorm:"column:price_csfloat;type:decimal(20,4)"`
	QtyCSFloat          int                 `json:"qty_csfloat" gorm:"column:qty_csfloat;not null;default:0"`
	HighestOfferCSFloat decimal.NullDecimal `json:"highest_offer_csfloat" gorm:"column:highest_offer_csfloat;type:decimal(20,4)"`
	ObservedAtCSFloat   *time.Time          `json:"observed_at_csfloat" gorm:"column:observed_at_csfloat"`

	PriceBuff163        decimal.NullDecimal `json:"price_buff163" gorm:"column:price_buff163;type:decimal(20,4)"`
	QtyBuff163          int                 `json:"qty_buff163" gorm:"column:qty_buff163;not null;default:0"`
	HighestOfferBuff163 decimal.NullDecimal `json:"highest_offer_buff163" gorm:"column:highest_offer_buff163;type:decimal(20,4)"`
	ObservedAtBuff163   *time.Time          `json:"observed_at_buff163" gorm:"column:observed_at_buff163"`

	// FetchedAt is the newest observed_at across all sources.
	FetchedAt *time.Time `json:"fetched_at" gorm:"index"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (MarketData) TableName() string { return "market_data" }

// SourceQuote is one source's current value as carried by the wide row.
type SourceQuote struct {
	Price        decimal.NullDecimal `json:"price"`
	Qty          int                 `json:"qty"`
	HighestOffer decimal.NullDecimal `json:"highest_offer"`
	ObservedAt   *time.Time          `json:"observed_at"`
}

// Quote returns the column group for src; an unknown source yields the zero quote.
func (m MarketData) Quote(src Source) SourceQuote {
	switch src {
	case SourceWhitemarket:
		return SourceQuote{m.PriceWhitemarket, m.QtyWhitemarket, m.HighestOfferWhitemarket, utcPtr(m.ObservedAtWhitemarket)}
	case SourceCSFloat:
		return SourceQuote{m.PriceCSFloat, m.QtyCSFloat, m.HighestOfferCSFloat, utcPtr(m.ObservedAtCSFloat)}
	case SourceBuff163:
		return SourceQuote{m.PriceBuff163, m.QtyBuff163, m.HighestOfferBuff163, utcPtr(m.ObservedAtBuff163)}
	}
	return SourceQuote{}
}

// QuoteFromObservation is the column group an observation writes.
func QuoteFromObservation(o Observation) SourceQuote {
	at := o.ObservedAt.UTC()
	return SourceQuote{Price: o.Price, Qty: o.Qty, HighestOffer: o.HighestOffer, ObservedAt: &at}
}

// Equal compares quotes by value, treating prices numerically.
func (q SourceQuote) Equal(other SourceQuote) bool {
	if !nullDecimalEqual(q.Price, other.Price) || !nullDecimalEqual(q.HighestOffer, other.HighestOffer) {
		return false
	}
	if q.Qty != other.Qty {
		return false
	}
	switch {
	case q.ObservedAt == nil && other.ObservedAt == nil:
		return true
	case q.ObservedAt == nil || other.ObservedAt == nil:
		return false
	}
	return q.ObservedAt.Equal(*other.ObservedAt)
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
