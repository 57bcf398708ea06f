package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/events"
	"github.com/Skotchmaster/food_order/internal/hash"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/payment"
	"github.com/Skotchmaster/food_order/internal/ratelimit"
	"github.com/Skotchmaster/food_order/internal/repo"
	"github.com/Skotchmaster/food_order/internal/settings"
	"github.com/Skotchmaster/food_order/internal/testutil"
)

type fixture struct {
	repo     *repo.GormRepo
	settings *settings.Cache
	gateway  *payment.DemoGateway
	cart     *CartService
	loyalty  *LoyaltyService
	checkout *CheckoutService
	orders   *OrderService
	logs     *bytes.Buffer
	log      *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	hasher, err := hash.NewTokenHasher([]byte("cart-secret"))
	require.NoError(t, err)

	cache := settings.NewCache(r, time.Minute)
	gateway := payment.NewDemoGateway("webhook-secret")
	loyalty := &LoyaltyService{
		Repo:          r,
		EarnRate:      decimal.NewFromInt(1),
		PointValue:    decimal.RequireFromString("0.1"),
		MinRedemption: 50,
	}
	var logs bytes.Buffer

	f := &fixture{
		repo:     r,
		settings: cache,
		gateway:  gateway,
		loyalty:  loyalty,
		logs:     &logs,
		log:      slog.New(slog.NewJSONHandler(&logs, nil)),
	}
	f.cart = &CartService{Repo: r, Settings: cache, Hasher: hasher, MaxItems: 10}
	f.checkout = &CheckoutService{
		Repo:    r,
		Gateway: gateway,
		Loyalty: loyalty,
		Guard:   &StoreGuard{Settings: cache, Location: time.UTC},
		Limiter: ratelimit.NewMemoryLimiter(100, time.Minute, nil),
		Hasher:  hasher,
		Pricing: domain.PricingPolicy{
			VATRate:     decimal.RequireFromString("0.18"),
			DeliveryFee: decimal.NewFromInt(10),
		},
		Currency: "ILS",
	}
	f.orders = &OrderService{Repo: r, Location: time.UTC}
	return f
}

func (f *fixture) handlers() *EventHandlers {
	return &EventHandlers{
		Repo:     f.repo,
		Loyalty:  f.loyalty,
		Notifier: &recordingNotifier{},
		Log:      f.log,
	}
}

func (f *fixture) dispatcher(h *EventHandlers) *events.Dispatcher {
	d := events.NewDispatcher(f.repo, f.log, time.Hour)
	h.Register(d)
	return d
}

func (f *fixture) grant(t *testing.T, userID uuid.UUID, points int64) {
	t.Helper()
	_, err := f.loyalty.Adjust(context.Background(), userID, uuid.New(), points, models.LoyaltyBonus, "welcome")
	require.NoError(t, err)
}

func (f *fixture) pendingEvents(t *testing.T) []string {
	t.Helper()
	rows, err := f.repo.PendingOutboxEvents(context.Background(), 100)
	require.NoError(t, err)
	types := make([]string, len(rows))
	for i, row := range rows {
		types[i] = row.Type
	}
	return types
}

func userIdentity() Identity {
	id := uuid.New()
	return Identity{UserID: &id, Role: domain.RoleCustomer, IP: "10.0.0.1"}
}

func shipping() ShippingDetails {
	return ShippingDetails{Name: "Dana", Email: "dana@example.com", Phone: "+972500000000", Address: "1 Herzl St"}
}

type recordingNotifier struct {
	confirmations []uuid.UUID
	updates       []domain.OrderStatus
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, order *models.Order, _ domain.OrderLines) error {
	n.confirmations = append(n.confirmations, order.ID)
	return nil
}

func (n *recordingNotifier) SendStatusUpdate(_ context.Context, _ *models.Order, status domain.OrderStatus) error {
	n.updates = append(n.updates, status)
	return nil
}
