package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/food_order/internal/settings"
)

type StoreStatus struct {
	Open     bool   `json:"open"`
	Reason   string `json:"reason,omitempty"`
	HighLoad bool   `json:"high_load"`
}

// StoreGuard decides whether new checkouts may start. It reads the
// store_open, high_load and opening_hours settings.
type StoreGuard struct {
	Settings *settings.Cache
	Location *time.Location
	Now      func() time.Time
}

func (g *StoreGuard) IsAcceptingOrders(ctx context.Context) StoreStatus {
	if !g.Settings.Bool(ctx, settings.KeyStoreOpen, true) {
		return StoreStatus{Open: false, Reason: g.Settings.String(ctx, settings.KeyStoreClosedReason, "store is closed")}
	}
	if g.Settings.Bool(ctx, settings.KeyHighLoad, false) {
		return StoreStatus{Open: false, HighLoad: true, Reason: "kitchen is at capacity"}
	}

	hours := strings.TrimSpace(g.Settings.String(ctx, settings.KeyOpeningHours, ""))
	if hours == "" {
		return StoreStatus{Open: true}
	}
	open, err := withinHours(hours, g.now())
	if err != nil || open {
		return StoreStatus{Open: true}
	}
	return StoreStatus{Open: false, Reason: "outside opening hours " + hours}
}

func (g *StoreGuard) now() time.Time {
	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	if g.Location != nil {
		now = now.In(g.Location)
	}
	return now
}

// withinHours checks t against "HH:MM-HH:MM". A range ending before it
// starts runs past midnight.
func withinHours(hours string, t time.Time) (bool, error) {
	from, to, ok := strings.Cut(hours, "-")
	if !ok {
		return false, fmt.Errorf("%w: opening hours %q", ErrValidation, hours)
	}
	start, err := minuteOfDay(from)
	if err != nil {
		return false, err
	}
	end, err := minuteOfDay(to)
	if err != nil {
		return false, err
	}

	now := t.Hour()*60 + t.Minute()
	if start <= end {
		return now >= start && now < end, nil
	}
	return now >= start || now < end, nil
}

func minuteOfDay(s string) (int, error) {
	hm, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrValidation, s)
	}
	return hm.Hour()*60 + hm.Minute(), nil
}
