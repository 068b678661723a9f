package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/providers"
)

// CachedDistanceProvider decorates a providers.DistanceProvider with a
// Redis-backed lookup cache keyed by {stop_id pair}. The cache is
// best-effort; its invalidation is not safety-critical, and a cache
// miss or Redis error always falls through to the wrapped provider
// rather than failing the request.
type CachedDistanceProvider struct {
	inner providers.DistanceProvider
	cache *Cache
	ttl   time.Duration
}

// NewCachedDistanceProvider wraps inner with a Redis cache.
func NewCachedDistanceProvider(inner providers.DistanceProvider, cache *Cache, ttl time.Duration) *CachedDistanceProvider {
	return &CachedDistanceProvider{inner: inner, cache: cache, ttl: ttl}
}

func distanceKey(fromID, toID string) string {
	return fmt.Sprintf("dist:%s:%s", fromID, toID)
}

// Distance returns the cached mileage for (from, to) if present,
// otherwise resolves it from the wrapped provider and caches the
// result best-effort.
func (c *CachedDistanceProvider) Distance(ctx context.Context, from, to domain.Stop) (float64, error) {
	key := distanceKey(from.ID, to.ID)

	var cached float64
	if err := c.cache.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	}

	miles, err := c.inner.Distance(ctx, from, to)
	if err != nil {
		return 0, err
	}
	_ = c.cache.SetJSON(ctx, key, miles, c.ttl)
	return miles, nil
}

// DriveTime delegates directly; it is a pure function of (miles,
// class) and cheap enough not to need caching.
func (c *CachedDistanceProvider) DriveTime(ctx context.Context, miles float64, class providers.RoadClass) (float64, error) {
	return c.inner.DriveTime(ctx, miles, class)
}
