package services

import (
	"context"
	"testing"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationCache_SaveLastExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.Discard()
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), log)
	cache := NewLocationCache(rc, &config.CacheConfig{Enabled: true, LocationTTL: 30}, log)
	ctx := context.Background()

	_, found, err := cache.Last(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	point := models.TrackingPoint{OrderID: "1", CourierID: "c1", Latitude: 10, Longitude: 106, Timestamp: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, cache.Save(ctx, point))

	got, found, err := cache.Last(ctx, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, point, got)

	mr.FastForward(31 * time.Second)
	_, found, err = cache.Last(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	m := cache.Metrics()
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(2), m.Misses)
	assert.InDelta(t, 33.33, m.HitRate, 0.01)
}

func TestLocationCache_Disabled(t *testing.T) {
	mr := miniredis.RunT(t)
	log := logger.Discard()
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), log)
	cache := NewLocationCache(rc, &config.CacheConfig{Enabled: false, LocationTTL: 30}, log)

	require.NoError(t, cache.Save(context.Background(), models.TrackingPoint{OrderID: "1"}))
	assert.Empty(t, mr.Keys())

	_, found, err := cache.Last(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, found)
}
