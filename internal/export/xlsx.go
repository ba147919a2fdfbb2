package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"csgo-market/internal/market"
	"csgo-market/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const SheetName = "market"

// Lister pages through the unified read model.
type Lister interface {
	ListItems(ctx context.Context, p market.ListParams) ([]market.ItemView, int64, error)
}

// Header is the first row of the sheet.
func Header() []any {
	row := []any{"item_key", "display_name", "name_base", "stattrak", "souvenir", "condition", "phase"}
	for _, src := range models.Sources {
		row = append(row,
			"price_"+string(src),
			"qty_"+string(src),
			"highest_offer_"+string(src),
			"observed_at_"+string(src))
	}
	return append(row, "fetched_at")
}

func viewRow(v market.ItemView) []any {
	row := []any{v.ItemKey, v.DisplayName, v.NameBase, v.StatTrak, v.Souvenir, condition(v.Condition), str(v.Phase)}
	for _, src := range models.Sources {
		q := v.Quote(src)
		row = append(row, num(q.Price), q.Qty, num(q.HighestOffer), ts(q.ObservedAt))
	}
	return append(row, ts(v.FetchedAt))
}

// WriteXLSX writes the whole read model as one worksheet, one row per item.
func WriteXLSX(ctx context.Context, lister Lister, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return 0, err
	}
	header := Header()
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	const pageSize = 500
	written := 0
	for offset := 0; ; offset += pageSize {
		views, _, err := lister.ListItems(ctx, market.ListParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return written, err
		}
		for _, v := range views {
			cell, err := excelize.CoordinatesToCellName(1, written+2)
			if err != nil {
				return written, err
			}
			row := viewRow(v)
			if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
				return written, fmt.Errorf("write row %s: %w", v.ItemKey, err)
			}
			written++
		}
		if len(views) < pageSize {
			break
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return written, err
	}
	if _, err := f.WriteTo(w); err != nil {
		return written, fmt.Errorf("write workbook: %w", err)
	}
	return written, nil
}

func num(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	v, _ := d.Decimal.Float64()
	return v
}

func ts(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func str(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func condition(c *models.Condition) any {
	if c == nil {
		return nil
	}
	return string(*c)
}
