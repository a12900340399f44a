package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisRateLimiter 테스트용 Redis Rate Limiter 설정.
// 실제 Redis 서버가 없으면 스킵한다 (localhost:6379, DB 15).
func setupRedisRateLimiter(t *testing.T) *RedisRateLimiter {
	limiter := NewRedisRateLimiter(RedisRateLimiterConfig{
		Addr:      "localhost:6379",
		DB:        15,
		KeyPrefix: "test:ratelimit:",
	})

	ctx := context.Background()
	if err := limiter.Ping(ctx); err != nil {
		t.Skipf("Redis server not available: %v", err)
	}

	return limiter
}

func cleanupRedis(t *testing.T, limiter *RedisRateLimiter, keys ...string) {
	ctx := context.Background()
	for _, key := range keys {
		limiter.Reset(ctx, key)
	}
}

func TestRedisRateLimiter_TokenBucket(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	key := "user:queue"
	defer cleanupRedis(t, limiter, key)

	limit := 3
	window := time.Minute

	t.Run("제한 내 요청은 모두 허용", func(t *testing.T) {
		for i := 0; i < limit; i++ {
			allowed, err := limiter.Allow(ctx, key, limit, window)
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be allowed", i+1)
		}
	})

	t.Run("제한 초과 요청은 거부", func(t *testing.T) {
		allowed, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}

func TestRedisRateLimiter_AllowWithInfo(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	key := "user:info"
	defer cleanupRedis(t, limiter, key)

	limit := 5
	window := time.Minute

	allowed, info, err := limiter.AllowWithInfo(ctx, key, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NotNil(t, info)
	assert.Equal(t, limit, info.Limit)
	assert.Equal(t, limit-1, info.Remaining)
	assert.False(t, info.ResetTime.IsZero())
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	key := "user:reset"

	limit := 2
	window := time.Minute

	limiter.Allow(ctx, key, limit, window)
	limiter.Allow(ctx, key, limit, window)
	allowed, _ := limiter.Allow(ctx, key, limit, window)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, key))

	allowed, _ = limiter.Allow(ctx, key, limit, window)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_MultipleKeys(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	key1 := "user:multi1"
	key2 := "user:multi2"
	defer cleanupRedis(t, limiter, key1, key2)

	limit := 2
	window := time.Minute

	limiter.Allow(ctx, key1, limit, window)
	limiter.Allow(ctx, key1, limit, window)
	allowed1, _ := limiter.Allow(ctx, key1, limit, window)
	assert.False(t, allowed1, "key1 should be limited")

	allowed2, _ := limiter.Allow(ctx, key2, limit, window)
	assert.True(t, allowed2, "key2 should be allowed")
}

func TestRedisRateLimiter_ConcurrentRequests(t *testing.T) {
	limiter := setupRedisRateLimiter(t)
	defer limiter.Close()

	ctx := context.Background()
	key := "user:concurrent"
	defer cleanupRedis(t, limiter, key)

	limit := 10
	window := time.Minute

	concurrency := 20
	results := make(chan bool, concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			allowed, _ := limiter.Allow(ctx, key, limit, window)
			results <- allowed
		}()
	}

	allowedCount := 0
	for i := 0; i < concurrency; i++ {
		if <-results {
			allowedCount++
		}
	}
	assert.Equal(t, limit, allowedCount)
}

func TestRedisRateLimiter_InvalidRedis(t *testing.T) {
	limiter := NewRedisRateLimiter(RedisRateLimiterConfig{
		Addr:      "invalid:9999",
		KeyPrefix: "test:",
	})
	defer limiter.Close()

	assert.Error(t, limiter.Ping(context.Background()))
}
