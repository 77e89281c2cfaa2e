package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reicrm/internal/metrics"
	"github.com/reicrm/internal/normalize"
)

const cacheKeyPrefix = "geocode:"

// CachedProvider keeps provider results in Redis keyed by the normalized
// address. Redis failures fall through to the wrapped provider.
type CachedProvider struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps a provider with a Redis cache
func NewCachedProvider(next Provider, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{next: next, client: client, ttl: ttl, logger: logger}
}

// CacheKey is the Redis key used for an address
func CacheKey(street, city string, state, zip *string) string {
	return cacheKeyPrefix + normalize.NormalizeAddress(ComposeAddress(street, city, state, zip))
}

// GeocodeProperty returns a cached result or asks the wrapped provider.
// Misses are not cached.
func (c *CachedProvider) GeocodeProperty(ctx context.Context, street, city string, state, zip *string) (*Result, error) {
	key := CacheKey(street, city, state, zip)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached Result
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			metrics.GeocodeRequests.WithLabelValues(metrics.GeocodeCached).Inc()
			return &cached, nil
		}
		c.logger.Warn("dropping unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
	}

	result, err := c.next.GeocodeProperty(ctx, street, city, state, zip)
	if err != nil || result == nil {
		return result, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return result, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}
