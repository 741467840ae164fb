package recommendations

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/longevity/internal/cache"
	"github.com/charlesng35/longevity/pkg/logger"
)

// DefaultTierTTL bounds how long a shared copy lives in the fast tier.
const DefaultTierTTL = 24 * time.Hour

// TieredRepository fronts a Repository with a shared cache.Store. Reads go through the
// store first and fill it from the inner repository on a miss. Saves drop the shared copy
// around the inner write, so concurrent writers cannot leave the store holding a pair the
// inner repository no longer has. Store failures only cost latency, they are never returned.
type TieredRepository struct {
	inner Repository
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewTieredRepository wraps inner with store.
func NewTieredRepository(inner Repository, store cache.Store, ttl time.Duration) (*TieredRepository, error) {
	if inner == nil {
		return nil, errors.New("recommendations: inner repository is required")
	}
	if store == nil {
		return nil, errors.New("recommendations: cache store is required")
	}
	if ttl <= 0 {
		ttl = DefaultTierTTL
	}
	return &TieredRepository{
		inner: inner,
		store: store,
		ttl:   ttl,
		log:   logger.WithModule("recommendations.tiered"),
	}, nil
}

// StoreKey returns the shared cache key for a row.
func StoreKey(key Key) string {
	return "recommendations:" + string(key.Kind) + ":" + key.UserID
}

// Load implements Repository.
func (r *TieredRepository) Load(ctx context.Context, key Key) (*Entry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}
	raw, ok, err := r.store.Get(ctx, StoreKey(key))
	switch {
	case err != nil:
		r.log.Warn("tier read failed", zap.String("user_id", key.UserID), zap.String("kind", string(key.Kind)), zap.Error(err))
	case ok:
		var entry Entry
		decodeErr := json.Unmarshal(raw, &entry)
		if decodeErr == nil {
			if entry.Items == nil {
				entry.Items = []Item{}
			}
			return &entry, nil
		}
		r.log.Warn("tier entry corrupt", zap.String("user_id", key.UserID), zap.String("kind", string(key.Kind)), zap.Error(decodeErr))
	}

	entry, err := r.inner.Load(ctx, key)
	if err != nil || entry == nil {
		return entry, err
	}
	r.populate(ctx, key, entry)
	return entry, nil
}

// Save implements Repository.
func (r *TieredRepository) Save(ctx context.Context, key Key, items []Item, hash string, at time.Time) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	r.drop(ctx, key)
	err := r.inner.Save(ctx, key, items, hash, at)
	// A reader that filled the store between the two drops saw the previous row.
	r.drop(ctx, key)
	return err
}

// Invalidate removes the shared copy of key.
func (r *TieredRepository) Invalidate(ctx context.Context, key Key) error {
	return r.store.Delete(ctx, StoreKey(key))
}

func (r *TieredRepository) drop(ctx context.Context, key Key) {
	if err := r.store.Delete(ctx, StoreKey(key)); err != nil {
		r.log.Warn("tier delete failed", zap.String("user_id", key.UserID), zap.String("kind", string(key.Kind)), zap.Error(err))
	}
}

func (r *TieredRepository) populate(ctx context.Context, key Key, entry *Entry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		r.log.Warn("tier encode failed", zap.String("user_id", key.UserID), zap.String("kind", string(key.Kind)), zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, StoreKey(key), raw, r.ttl); err != nil {
		r.log.Warn("tier write failed", zap.String("user_id", key.UserID), zap.String("kind", string(key.Kind)), zap.Error(err))
	}
}
