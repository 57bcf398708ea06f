package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/testutil"
)

func TestSettings_PutOverwrites(t *testing.T) {
	r := New(testutil.NewDB(t))
	ctx := context.Background()

	_, ok, err := r.GetSetting(ctx, "max_cart_items")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.PutSetting(ctx, "max_cart_items", "10"))
	require.NoError(t, r.PutSetting(ctx, "max_cart_items", "12"))

	v, ok, err := r.GetSetting(ctx, "max_cart_items")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12", v)
}
