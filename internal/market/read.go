package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"csgo-market/internal/models"

	"gorm.io/gorm"
)

// ItemView is the unified read model: identity, derived name and every
// source's current value. It never carries historical rows.
type ItemView struct {
	ItemKey     string                               `json:"item_key"`
	NameBase    string                               `json:"name_base"`
	StatTrak    bool                                 `json:"stattrak"`
	Souvenir    bool                                 `json:"souvenir"`
	Condition   *models.Condition                    `json:"condition"`
	Phase       *string                              `json:"phase"`
	DisplayName string                               `json:"display_name"`
	Sources     map[models.Source]models.SourceQuote `json:"sources"`
	FetchedAt   *time.Time                           `json:"fetched_at"`
	CreatedAt   time.Time                            `json:"created_at"`
	UpdatedAt   time.Time                            `json:"updated_at"`
}

// Quote is the current value for src; sources without observations give the zero quote.
func (v ItemView) Quote(src models.Source) models.SourceQuote {
	return v.Sources[src]
}

func newItemView(item models.Item, md models.MarketData) ItemView {
	view := ItemView{
		ItemKey:     item.ItemKey,
		NameBase:    item.NameBase,
		StatTrak:    item.StatTrak,
		Souvenir:    item.Souvenir,
		Condition:   item.Condition,
		Phase:       item.Phase,
		DisplayName: item.Identity().DisplayName(),
		Sources:     make(map[models.Source]models.SourceQuote, len(models.Sources)),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
	for _, src := range models.Sources {
		view.Sources[src] = md.Quote(src)
	}
	if md.FetchedAt != nil {
		at := md.FetchedAt.UTC()
		view.FetchedAt = &at
	}
	return view
}

// ReadItem composes the identity, its derived display name and the wide
// row into one record.
func (s *Store) ReadItem(ctx context.Context, itemKey string) (*ItemView, error) {
	item, err := s.GetItem(ctx, itemKey)
	if err != nil {
		return nil, err
	}

	var md models.MarketData
	err = s.db.WithContext(ctx).Where("item_key = ?", itemKey).Take(&md).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load market data %s: %w", itemKey, err)
	}
	view := newItemView(*item, md)
	return &view, nil
}

// Lookup reads the item matching an identity tuple without creating it.
func (s *Store) Lookup(ctx context.Context, id models.Identity) (*ItemView, error) {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return nil, err
	}
	variant := id.VariantKey()
	key, ok := s.cachedKey(variant)
	if !ok {
		var err error
		key, err = s.findByVariant(ctx, variant)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no item %q", models.ErrNotFound, id.DisplayName())
		}
		if err != nil {
			return nil, err
		}
		s.cacheKey(variant, key)
	}
	return s.ReadItem(ctx, key)
}

// ListParams pages through the read model ordered by display name.
type ListParams struct {
	Search string
	Limit  int
	Offset int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Normalize clamps the page to the limits ListItems applies.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// likeEscaper makes search text match literally inside LIKE ... ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ListItems returns a page of the read model and the total match count.
func (s *Store) ListItems(ctx context.Context, p ListParams) ([]ItemView, int64, error) {
	p = p.Normalize()

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Item{})
		if p.Search != "" {
			q = q.Where("LOWER(display_name) LIKE LOWER(?) ESCAPE '!'", "%"+likeEscaper.Replace(p.Search)+"%")
		}
		return q
	}
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	var items []models.Item
	if err := query().Order("display_name ASC, item_key ASC").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		return []ItemView{}, total, nil
	}

	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.ItemKey)
	}
	var rows []models.MarketData
	if err := s.db.WithContext(ctx).Where("item_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list market data: %w", err)
	}
	byKey := make(map[string]models.MarketData, len(rows))
	for _, r := range rows {
		byKey[r.ItemKey] = r
	}

	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, newItemView(it, byKey[it.ItemKey]))
	}
	return views, total, nil
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// History is the explicitly scoped query over the raw snapshot stream,
// newest first.
func (s *Store) History(ctx context.Context, itemKey string, src models.Source, limit int) ([]models.PriceSnapshot, error) {
	if !src.Valid() {
		return nil, &models.UnknownSourceError{Source: string(src)}
	}
	if _, err := s.GetItem(ctx, itemKey); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var rows []models.PriceSnapshot
	err := s.db.WithContext(ctx).
		Where("item_key = ? AND source = ?", itemKey, src).
		Order("observed_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history %s/%s: %w", itemKey, src, err)
	}
	return rows, nil
}
