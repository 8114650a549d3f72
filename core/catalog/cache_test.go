package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client, 10*time.Minute), mr
}

func TestCacheGet_Hit(t *testing.T) {
	cache, mr := setupTestRedis(t)

	o := Offer{ID: "offer-1", CourseID: "course-1", Cost: decimal.RequireFromString("12.50"), Enabled: true}
	data, err := json.Marshal(o)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(o.ID), string(data)))

	got, err := cache.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.CourseID, got.CourseID)
	assert.True(t, o.Cost.Equal(got.Cost))
	assert.True(t, got.Enabled)
}

func TestCacheGet_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("broken"), "{not json"))

	_, err := cache.Get(context.Background(), "broken")
	require.ErrorContains(t, err, "unmarshal offer failed")
}

func TestCacheSet_WithTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)

	err := cache.Set(context.Background(), Offer{ID: "offer-2", Enabled: true})
	require.NoError(t, err)

	assert.True(t, mr.Exists(cacheKey("offer-2")))
	ttl := mr.TTL(cacheKey("offer-2"))
	assert.True(t, ttl >= 10*time.Minute, "ttl should be at least the base ttl")
	assert.True(t, ttl < 12*time.Minute, "ttl should stay below base ttl plus spread")
}

func TestCacheDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("offer-3"), "{}"))

	require.NoError(t, cache.Delete(context.Background(), "offer-3"))
	assert.False(t, mr.Exists(cacheKey("offer-3")))

	assert.NoError(t, cache.Delete(context.Background(), "never-set"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "offer:abc", cacheKey("abc"))
}
