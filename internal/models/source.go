package models

import "strings"

// Source identifies one external marketplace prices are fetched from.
type Source string

const (
	SourceWhitemarket Source = "whitemarket"
	SourceCSFloat     Source = "csfloat"
	SourceBuff163     Source = "buff163"
)

// Sources is the closed set of marketplaces, in column order of the wide row.
var Sources = []Source{SourceWhitemarket, SourceCSFloat, SourceBuff163}

func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

func (s Source) String() string { return string(s) }

// ParseSource normalises case and surrounding blanks before validating.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", &UnknownSourceError{Source: raw}
	}
	return s, nil
}

// SourceColumns names the column group a source owns in market_data.
type SourceColumns struct {
	Price        string
	Qty          string
	HighestOffer string
	ObservedAt   string
}

func (s Source) Columns() SourceColumns {
	return SourceColumns{
		Price:        "price_" + string(s),
		Qty:          "qty_" + string(s),
		HighestOffer: "highest_offer_" + string(s),
		ObservedAt:   "observed_at_" + string(s),
	}
}
