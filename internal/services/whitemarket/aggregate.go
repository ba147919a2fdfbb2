package whitemarket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"csgo-market/internal/models"

	"github.com/shopspring/decimal"
)

var (
	classIDFields = []string{"product_class_id", "class_id", "classid", "productClassId"}
	nameFields    = []string{"name_hash", "market_hash_name", "hash_name", "name"}
	priceFields   = []string{"price", "price_usd", "price_cents", "amount", "value"}
	phaseFields   = []string{"product_phase", "phase"}
)

// Listing groups the feed's listings of one product class.
type Listing struct {
	ClassID        string
	MarketHashName string
	Identity       models.Identity
	// Price is the cheapest listing price; null when no listing had a price.
	Price decimal.NullDecimal
	Qty   int
}

// Aggregate buckets products by class id (falling back to the hash name)
// and reduces each bucket to one listing summary, sorted by class id.
func Aggregate(products []Product) []Listing {
	buckets := make(map[string]*Listing)
	for _, p := range products {
		name := p.firstString(nameFields...)
		classID := p.firstString(classIDFields...)
		if classID == "" {
			classID = name
		}
		if classID == "" {
			continue
		}

		l, ok := buckets[classID]
		if !ok {
			id := models.ParseMarketHashName(name)
			if phase := p.firstString(phaseFields...); phase != "" {
				id.Phase = &phase
			}
			l = &Listing{ClassID: classID, MarketHashName: name, Identity: id}
			buckets[classID] = l
		}
		l.Qty++
		if price, ok := p.price(); ok && (!l.Price.Valid || price.LessThan(l.Price.Decimal)) {
			l.Price = decimal.NewNullDecimal(price)
		}
	}

	out := make([]Listing, 0, len(buckets))
	for _, l := range buckets {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out
}

func (p Product) firstString(fields ...string) string {
	for _, f := range fields {
		v, ok := p[f]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// price reads the first present price field. *_cents fields are scaled to
// units; strings may use a decimal comma.
func (p Product) price() (decimal.Decimal, bool) {
	for _, f := range priceFields {
		v, ok := p[f]
		if !ok || v == nil {
			continue
		}
		var d decimal.Decimal
		var err error
		switch t := v.(type) {
		case json.Number:
			d, err = decimal.NewFromString(t.String())
		case string:
			d, err = decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(t), ",", "."))
		case float64:
			d = decimal.NewFromFloat(t)
		default:
			return decimal.Decimal{}, false
		}
		if err != nil {
			return decimal.Decimal{}, false
		}
		if strings.HasSuffix(f, "_cents") {
			d = d.Div(decimal.NewFromInt(100))
		}
		return d, true
	}
	return decimal.Decimal{}, false
}
