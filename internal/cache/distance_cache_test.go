package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/saan-system/routeplanner/internal/domain"
	"github.com/saan-system/routeplanner/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	miles float64
}

func (p *countingProvider) Distance(_ context.Context, _, _ domain.Stop) (float64, error) {
	p.calls++
	return p.miles, nil
}

func (p *countingProvider) DriveTime(_ context.Context, miles float64, _ providers.RoadClass) (float64, error) {
	return miles / 55.0, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, "test:")
}

func TestCachedDistanceProvider_SecondLookupHitsCacheNotInner(t *testing.T) {
	c := newTestCache(t)
	inner := &countingProvider{miles: 42.5}
	cached := NewCachedDistanceProvider(inner, c, time.Minute)

	from := domain.Stop{ID: "a"}
	to := domain.Stop{ID: "b"}

	first, err := cached.Distance(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 42.5, first)
	assert.Equal(t, 1, inner.calls)

	second, err := cached.Distance(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 42.5, second)
	assert.Equal(t, 1, inner.calls, "second lookup should be served from cache")
}

func TestCachedDistanceProvider_DistinctPairsAreIndependentKeys(t *testing.T) {
	c := newTestCache(t)
	inner := &countingProvider{miles: 10}
	cached := NewCachedDistanceProvider(inner, c, time.Minute)

	_, err := cached.Distance(context.Background(), domain.Stop{ID: "a"}, domain.Stop{ID: "b"})
	require.NoError(t, err)
	_, err = cached.Distance(context.Background(), domain.Stop{ID: "c"}, domain.Stop{ID: "d"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCache_HealthSucceedsAgainstMiniredis(t *testing.T) {
	c := newTestCache(t)
	assert.NoError(t, c.Health(context.Background()))
}

func TestCache_GetMissingKeyErrors(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "nope")
	assert.Error(t, err)
}
