package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	values map[string]string
	calls  int
	err    error
}

func (f *fakeSource) GetSetting(_ context.Context, key string) (string, bool, error) {
	f.calls++
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache_ServesWithinTTL(t *testing.T) {
	t.Parallel()

	src := &fakeSource{values: map[string]string{KeyMaxCartItems: "20"}}
	clk := &clock{t: time.Unix(0, 0)}
	c := NewCache(src, time.Minute).WithClock(clk.now)
	ctx := context.Background()

	assert.Equal(t, 20, c.Int(ctx, KeyMaxCartItems, 50))
	src.values[KeyMaxCartItems] = "30"

	clk.t = clk.t.Add(59 * time.Second)
	assert.Equal(t, 20, c.Int(ctx, KeyMaxCartItems, 50))
	assert.Equal(t, 1, src.calls)

	clk.t = clk.t.Add(time.Second)
	assert.Equal(t, 30, c.Int(ctx, KeyMaxCartItems, 50))
	assert.Equal(t, 2, src.calls)
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	t.Parallel()

	src := &fakeSource{values: map[string]string{KeyStoreOpen: "true"}}
	c := NewCache(src, time.Hour)
	ctx := context.Background()

	assert.True(t, c.Bool(ctx, KeyStoreOpen, false))
	src.values[KeyStoreOpen] = "false"
	c.Invalidate(KeyStoreOpen)
	assert.False(t, c.Bool(ctx, KeyStoreOpen, true))
}

func TestCache_DefaultsAndStaleFallback(t *testing.T) {
	t.Parallel()

	src := &fakeSource{values: map[string]string{KeyMaxCartItems: "lots"}}
	clk := &clock{t: time.Unix(0, 0)}
	c := NewCache(src, time.Second).WithClock(clk.now)
	ctx := context.Background()

	assert.Equal(t, 50, c.Int(ctx, KeyMaxCartItems, 50))
	assert.Equal(t, "closed", c.String(ctx, KeyStoreClosedReason, "closed"))

	src.values[KeyMaxCartItems] = "7"
	c.Invalidate()
	assert.Equal(t, 7, c.Int(ctx, KeyMaxCartItems, 50))

	clk.t = clk.t.Add(time.Minute)
	src.err = errors.New("db down")
	v, ok, err := c.Get(ctx, KeyMaxCartItems)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}
