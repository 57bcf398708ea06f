package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/settings"
)

func TestWithinHours(t *testing.T) {
	t.Parallel()

	at := func(hm string) time.Time {
		v, err := time.Parse("15:04", hm)
		require.NoError(t, err)
		return v
	}
	tests := []struct {
		hours string
		now   string
		want  bool
	}{
		{"10:00-23:00", "09:59", false},
		{"10:00-23:00", "10:00", true},
		{"10:00-23:00", "23:00", false},
		{"18:00-02:00", "23:30", true},
		{"18:00-02:00", "01:59", true},
		{"18:00-02:00", "12:00", false},
	}
	for _, tt := range tests {
		got, err := withinHours(tt.hours, at(tt.now))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s at %s", tt.hours, tt.now)
	}

	_, err := withinHours("all day", at("12:00"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStoreGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guard := &StoreGuard{
		Settings: f.settings,
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) },
	}

	assert.Equal(t, StoreStatus{Open: true}, guard.IsAcceptingOrders(ctx))

	require.NoError(t, f.repo.PutSetting(ctx, settings.KeyOpeningHours, "10:00-22:00"))
	f.settings.Invalidate(settings.KeyOpeningHours)
	st := guard.IsAcceptingOrders(ctx)
	assert.False(t, st.Open)
	assert.Contains(t, st.Reason, "opening hours")

	require.NoError(t, f.repo.PutSetting(ctx, settings.KeyOpeningHours, "garbage"))
	f.settings.Invalidate(settings.KeyOpeningHours)
	assert.True(t, guard.IsAcceptingOrders(ctx).Open, "unparsable hours do not close the store")

	require.NoError(t, f.repo.PutSetting(ctx, settings.KeyStoreOpen, "false"))
	f.settings.Invalidate()
	st = guard.IsAcceptingOrders(ctx)
	assert.False(t, st.Open)
	assert.Equal(t, "store is closed", st.Reason)
}
