package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLimiter(rdb, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("ratelimit:checkout:user:1"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_RearmsCounterWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	const key = "ratelimit:checkout:user:1"
	require.NoError(t, mr.Set(key, "5"))
	require.Zero(t, mr.TTL(key))

	l := NewRedisLimiter(rdb, 2, time.Minute)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key))

	ok, err = l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL(key), "an armed window is not extended")

	mr.FastForward(time.Minute + time.Second)
	ok, err = l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLimiter_ErrorWhenUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := NewRedisLimiter(rdb, 1, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	l := NewMemoryLimiter(1, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "anonymous")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = l.Allow(ctx, "anonymous")
	assert.True(t, ok)
}
