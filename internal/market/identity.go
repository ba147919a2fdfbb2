package market

import (
	"context"
	"errors"
	"fmt"

	"csgo-market/internal/database"
	"csgo-market/internal/models"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxResolveAttempts bounds the insert-or-fetch loop. A second attempt
// always finds the winner's row unless it was rolled back.
const maxResolveAttempts = 3

// ResolveOrCreate returns the item_key for the identity tuple, creating the
// identity (and its empty wide row) the first time the variant is seen.
// Concurrent first sightings are arbitrated by the unique index on
// variant_key: the loser gets an IdentityConflictError internally and
// re-fetches the winner's key.
func (s *Store) ResolveOrCreate(ctx context.Context, id models.Identity) (string, error) {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return "", err
	}
	variant := id.VariantKey()
	if key, ok := s.cachedKey(variant); ok {
		return key, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		key, err := s.findByVariant(ctx, variant)
		if err == nil {
			s.cacheKey(variant, key)
			return key, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return "", err
		}

		key, err = s.createIdentity(ctx, id)
		if err == nil {
			s.cacheKey(variant, key)
			return key, nil
		}
		var conflict *models.IdentityConflictError
		if !errors.As(err, &conflict) {
			return "", err
		}
		s.metrics.identityConflict()
		s.log.Debug("identity creation lost the race, re-fetching",
			zap.String("variant_key", variant),
			zap.Int("attempt", attempt+1))
		lastErr = err
	}
	return "", lastErr
}

// ResolveMarketHashName parses a market hash name and resolves it. The
// phase, when known, comes from the feed separately.
func (s *Store) ResolveMarketHashName(ctx context.Context, marketHashName string, phase *string) (string, error) {
	id := models.ParseMarketHashName(marketHashName)
	if phase != nil {
		id.Phase = phase
	}
	return s.ResolveOrCreate(ctx, id)
}

// GetItem loads a stored identity.
func (s *Store) GetItem(ctx context.Context, itemKey string) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Where("item_key = ?", itemKey).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.UnknownItemError{ItemKey: itemKey}
	}
	if err != nil {
		return nil, fmt.Errorf("load item %s: %w", itemKey, err)
	}
	return &item, nil
}

func (s *Store) findByVariant(ctx context.Context, variant string) (string, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Select("item_key").Where("variant_key = ?", variant).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find identity: %w", err)
	}
	return item.ItemKey, nil
}

func (s *Store) createIdentity(ctx context.Context, id models.Identity) (string, error) {
	item := models.Item{
		ItemKey:   ulid.Make().String(),
		NameBase:  id.NameBase,
		StatTrak:  id.StatTrak,
		Souvenir:  id.Souvenir,
		Condition: id.Condition,
		Phase:     id.Phase,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return &models.IdentityConflictError{VariantKey: item.VariantKey, Err: err}
			}
			return fmt.Errorf("create identity: %w", err)
		}
		return database.EnsureMarketData(tx, item.ItemKey)
	})
	if err != nil {
		return "", err
	}

	s.metrics.identityCreated()
	s.log.Info("created item identity",
		zap.String("item_key", item.ItemKey),
		zap.String("display_name", item.DisplayName))
	return item.ItemKey, nil
}
