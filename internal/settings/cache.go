// Package settings serves runtime settings through a read-through cache.
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	KeyMaxCartItems      = "max_cart_items"
	KeyStoreOpen         = "store_open"
	KeyStoreClosedReason = "store_closed_reason"
	KeyHighLoad          = "high_load"
	KeyOpeningHours      = "opening_hours"
)

// Source is the backing store; ok is false when the key is unset.
type Source interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
}

type entry struct {
	value   string
	ok      bool
	fetched time.Time
}

// Cache remembers each key for TTL after it was last fetched. A failed
// fetch falls back to the previous value when there is one.
type Cache struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(src Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// WithClock replaces the time source; used by tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	now := c.now()

	c.mu.Lock()
	e, cached := c.entries[key]
	c.mu.Unlock()
	if cached && now.Sub(e.fetched) < c.ttl {
		return e.value, e.ok, nil
	}

	v, ok, err := c.src.GetSetting(ctx, key)
	if err != nil {
		if cached {
			return e.value, e.ok, nil
		}
		return "", false, err
	}

	c.mu.Lock()
	c.entries[key] = entry{value: v, ok: ok, fetched: now}
	c.mu.Unlock()
	return v, ok, nil
}

func (c *Cache) String(ctx context.Context, key, def string) string {
	v, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	return v
}

func (c *Cache) Int(ctx context.Context, key string, def int) int {
	v, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (c *Cache) Bool(ctx context.Context, key string, def bool) bool {
	v, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// Invalidate drops key so the next read goes to the source. No key drops all.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		c.entries = make(map[string]entry)
		return
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
}
