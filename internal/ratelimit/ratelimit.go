// Package ratelimit caps how many checkouts one identity may start per window.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "anonymous"
	}
	return key
}

// RedisLimiter is a fixed-window counter shared by every replica.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Prefix: "ratelimit:checkout:", Limit: limit, Window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.Prefix + normalizeKey(key)

	// EXPIRE NX arms the window on every call that finds the key without a
	// TTL, so a counter left behind by a failed call cannot live forever.
	var incr *redis.IntCmd
	_, err := l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.Window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.Limit), nil
}

// MemoryLimiter is the single-process fallback when Redis is not configured.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

func NewMemoryLimiter(limit int, window time.Duration, clock func() time.Time) *MemoryLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 || l.window <= 0 {
		return true, nil
	}
	key = normalizeKey(key)
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true, nil
	}
	if entry.count >= l.limit {
		return false, nil
	}
	entry.count++
	l.store[key] = entry
	return true, nil
}

func (l *MemoryLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}
