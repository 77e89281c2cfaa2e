package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingProvider struct {
	calls  int
	result *Result
	err    error
}

func (p *countingProvider) GeocodeProperty(ctx context.Context, street, city string, state, zip *string) (*Result, error) {
	p.calls++
	return p.result, p.err
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCachedProviderHit(t *testing.T) {
	mr, client := setupTestRedis(t)
	next := &countingProvider{result: &Result{Latitude: 47.6, Longitude: -122.3, Confidence: ConfidenceHigh}}
	c := NewCachedProvider(next, client, time.Hour, zap.NewNop())
	ctx := context.Background()

	first, err := c.GeocodeProperty(ctx, "123 Main Street", "Seattle", strPtr("WA"), nil)
	require.NoError(t, err)
	second, err := c.GeocodeProperty(ctx, "123 main st.", "Seattle", strPtr("WA"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)

	key := CacheKey("123 Main St", "Seattle", strPtr("WA"), nil)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestCachedProviderMissNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	next := &countingProvider{}
	c := NewCachedProvider(next, client, time.Hour, zap.NewNop())

	for i := 0; i < 2; i++ {
		res, err := c.GeocodeProperty(context.Background(), "1 Nowhere", "Atlantis", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, res)
	}
	assert.Equal(t, 2, next.calls)
	assert.Empty(t, mr.Keys())
}

func TestCachedProviderPassesErrors(t *testing.T) {
	_, client := setupTestRedis(t)
	next := &countingProvider{err: errors.New("quota exceeded")}
	c := NewCachedProvider(next, client, time.Hour, zap.NewNop())

	_, err := c.GeocodeProperty(context.Background(), "123 Main St", "Seattle", nil, nil)
	assert.EqualError(t, err, "quota exceeded")
}

func TestCachedProviderRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	next := &countingProvider{result: &Result{Latitude: 1, Longitude: 2, Confidence: ConfidenceLow}}
	c := NewCachedProvider(next, client, time.Hour, zap.NewNop())

	res, err := c.GeocodeProperty(context.Background(), "123 Main St", "Seattle", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 1, next.calls)
}

func TestCachedProviderBadEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	key := CacheKey("123 Main St", "Seattle", nil, nil)
	require.NoError(t, mr.Set(key, "{not json"))

	next := &countingProvider{result: &Result{Latitude: 1, Longitude: 2}}
	c := NewCachedProvider(next, client, time.Minute, zap.NewNop())

	res, err := c.GeocodeProperty(context.Background(), "123 Main St", "Seattle", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Latitude)
	assert.Equal(t, 1, next.calls)
}
