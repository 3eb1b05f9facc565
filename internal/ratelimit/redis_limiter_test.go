package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t), clockwork.NewFakeClock(), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, ChatKey(1), 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 4-i, result.Remaining)
	}
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t), clockwork.NewFakeClock(), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, ChatKey(2), 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i < 2, result.Allowed, "request %d", i)
	}
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewRedisLimiter(setupTestRedis(t), clock, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, ChatKey(3), 2, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	clock.Advance(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, ChatKey(3), 2, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_ZeroLimitRejects(t *testing.T) {
	limiter := NewRedisLimiter(setupTestRedis(t), clockwork.NewFakeClock(), testLogger())

	result, err := limiter.Check(context.Background(), ChatKey(4), 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestRedisLimiter_CleanupRemovesIdleKeys(t *testing.T) {
	client := setupTestRedis(t)
	clock := clockwork.NewFakeClock()
	limiter := NewRedisLimiter(client, clock, testLogger())
	ctx := context.Background()

	_, err := limiter.Check(ctx, ChatKey(10), 5, time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = limiter.Check(ctx, ChatKey(11), 5, time.Hour)
	require.NoError(t, err)

	removed, err := limiter.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	exists, err := client.Exists(ctx, redisKeyPrefix+ChatKey(10), redisKeyPrefix+ChatKey(11)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
