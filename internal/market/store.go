package market

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options configures a Store.
type Options struct {
	// IdentityCacheSize bounds the variant_key -> item_key cache; 0 disables it.
	IdentityCacheSize int
	Metrics           *Metrics
}

// Store is the persistence layer for identities, the snapshot stream and
// the unified read model.
type Store struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *Metrics

	// identities are immutable, so cached mappings never go stale
	identities *lru.Cache
}

func NewStore(db *gorm.DB, log *zap.Logger, opts Options) (*Store, error) {
	s := &Store{
		db:      db,
		log:     log.Named("market.store"),
		metrics: opts.Metrics,
	}
	if opts.IdentityCacheSize > 0 {
		cache, err := lru.New(opts.IdentityCacheSize)
		if err != nil {
			return nil, fmt.Errorf("identity cache: %w", err)
		}
		s.identities = cache
	}
	return s, nil
}

func (s *Store) cachedKey(variant string) (string, bool) {
	if s.identities == nil {
		return "", false
	}
	v, ok := s.identities.Get(variant)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (s *Store) cacheKey(variant, itemKey string) {
	if s.identities != nil {
		s.identities.Add(variant, itemKey)
	}
}
