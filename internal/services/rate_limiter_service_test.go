package services

import (
	"context"
	"testing"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimiter(t *testing.T, cfg *config.RateLimitConfig) (*RateLimiterService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := logger.Discard()
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), log)
	return NewRateLimiterService(rc, cfg, log), mr
}

func TestRateLimiter_AllowsUpToLimitThenBans(t *testing.T) {
	limiter, mr := newRateLimiter(t, &config.RateLimitConfig{Enabled: true, PerMinute: 3, BanDuration: 30})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.CheckLimit(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i+1)
		assert.Equal(t, 3-(i+1), res.Remaining)
	}

	res, err := limiter.CheckLimit(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 30, res.RetryAfter)

	res, err = limiter.CheckLimit(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "banned address stays blocked")

	other, err := limiter.CheckLimit(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	mr.FastForward(61 * time.Second)
	res, err = limiter.CheckLimit(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window and ban expired")
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter, _ := newRateLimiter(t, &config.RateLimitConfig{Enabled: true, PerMinute: 1, BanDuration: 300})
	ctx := context.Background()

	_, _ = limiter.CheckLimit(ctx, "ip")
	res, _ := limiter.CheckLimit(ctx, "ip")
	require.False(t, res.Allowed)

	require.NoError(t, limiter.ResetLimit(ctx, "ip"))

	res, err := limiter.CheckLimit(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter, _ := newRateLimiter(t, &config.RateLimitConfig{Enabled: false, PerMinute: 1})

	for i := 0; i < 5; i++ {
		res, err := limiter.CheckLimit(context.Background(), "ip")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestRateLimiter_FailOpen(t *testing.T) {
	limiter, mr := newRateLimiter(t, &config.RateLimitConfig{Enabled: true, PerMinute: 1, BanDuration: 30})
	mr.Close()

	res, err := limiter.CheckLimit(context.Background(), "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
