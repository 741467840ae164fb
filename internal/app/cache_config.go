package app

import (
	"strings"
	"time"

	"github.com/charlesng35/longevity/internal/cache"
	"github.com/charlesng35/longevity/internal/recommendations"
)

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
		Prefix:   strings.TrimSpace(c.Redis.Prefix),
	}
}

// TierTTL returns the lifetime of the key/value copy of stored recommendations.
func (c CacheConfig) TierTTL() time.Duration {
	if c.RecommendationsTTL <= 0 {
		return recommendations.DefaultTierTTL
	}
	return c.RecommendationsTTL
}
