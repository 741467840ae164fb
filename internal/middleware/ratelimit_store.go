package middleware

import (
	"context"
	"time"

	"github.com/charlesng35/longevity/internal/cache"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

// storeRateStore implements RateStore over any cache.Store (Redis, SQL or memory).
type storeRateStore struct {
	store cache.Store
}

// NewMemoryRateStore constructs a process-local rate store.
func NewMemoryRateStore() RateStore {
	return &storeRateStore{store: cache.NewMemoryStore()}
}

// NewStoreRateStore wraps a cache store in a RateStore implementation. It returns nil when
// store is nil so callers can fall back to the memory store.
func NewStoreRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, rateLimitKeyPrefix+key, window)
	return int(count), ttl, err
}
