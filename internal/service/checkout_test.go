package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/events"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/payment"
	"github.com/Skotchmaster/food_order/internal/ratelimit"
	"github.com/Skotchmaster/food_order/internal/repo"
	"github.com/Skotchmaster/food_order/internal/settings"
	"github.com/Skotchmaster/food_order/internal/testutil"
)

// fillCart puts two Margheritas with olives in the caller's cart: 110 total.
func fillCart(t *testing.T, f *fixture, id Identity) Identity {
	t.Helper()
	ctx := context.Background()
	pizza := testutil.SeedProduct(t, f.repo.DB, "Margherita", "50")
	olives := testutil.SeedIngredient(t, f.repo.DB, "olives", "5")

	in := AddItemInput{ProductItemID: pizza.ID, AddedIngredientIDs: []uuid.UUID{olives.ID}}
	view, err := f.cart.AddItem(ctx, id, in)
	require.NoError(t, err)
	if view.IssuedToken != "" {
		id.CartToken = view.IssuedToken
	}
	view, err = f.cart.AddItem(ctx, id, in)
	require.NoError(t, err)
	require.Equal(t, "110", view.TotalAmount.String())
	return id
}

func TestCheckout_PointsRedemptionEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.loyalty.MinRedemption = 10
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())
	f.grant(t, *id.UserID, 100)

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{Points: 10})
	require.NoError(t, err)
	assert.True(t, begun.Demo)
	assert.Equal(t, "110", begun.Pricing.Subtotal.String())
	assert.Equal(t, "109", begun.Pricing.DiscountedSubtotal.String())
	assert.Equal(t, "19.62", begun.Pricing.VAT.String())
	assert.Equal(t, "138.62", begun.Pricing.FinalAmount.String())

	order, err := f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, "138.62", order.TotalAmount.String())
	assert.Equal(t, int64(10), order.PointsRedeemed)
	assert.True(t, order.Demo)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "2x Margherita (classic, medium) +olives", order.Lines[0].Describe())
	assert.Len(t, order.StatusHistory.Entries(), 2)

	balance, err := f.loyalty.Balance(ctx, *id.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)

	cart, err := f.cart.GetCurrentCart(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.True(t, cart.TotalAmount.IsZero())

	assert.Equal(t, []string{events.TypeOrderCreated, events.TypePaymentCaptured}, f.pendingEvents(t))
}

func TestCheckout_AccrualAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
	require.NoError(t, err)
	assert.Equal(t, "139.8", begun.Pricing.FinalAmount.String())

	order, err := f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.NoError(t, err)

	h := f.handlers()
	n, err := f.dispatcher(h).DrainOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// demo orders earn nothing
	balance, err := f.loyalty.Balance(ctx, *id.UserID)
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.Equal(t, []uuid.UUID{order.ID}, h.Notifier.(*recordingNotifier).confirmations)
}

func TestCheckout_AccrualForRealOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	require.NoError(t, f.repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		return f.checkout.Outbox.Emit(ctx, tx, events.TypeOrderCreated, orderID.String(), events.OrderCreated{
			OrderID: orderID, UserID: &userID, TotalAmount: decimal.NewFromInt(200),
		})
	}))

	d := f.dispatcher(f.handlers())
	_, err := d.DrainOnce(ctx)
	require.NoError(t, err)

	balance, err := f.loyalty.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), balance)
}

func TestCheckout_CompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
	require.NoError(t, err)
	in := CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()}

	first, err := f.checkout.CompleteCheckout(ctx, id, in)
	require.NoError(t, err)
	second, err := f.checkout.CompleteCheckout(ctx, id, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, f.repo.DB.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	body, err := json.Marshal(map[string]string{"id": "evt_1", "type": "payment_intent.succeeded", "intent_id": begun.IntentID, "status": "succeeded"})
	require.NoError(t, err)
	headers := http.Header{}
	headers.Set(payment.DemoSignatureHeader, f.gateway.Sign(body))

	res, err := f.checkout.HandlePaymentWebhook(ctx, headers, body)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, first.ID, *res.OrderID)

	require.NoError(t, f.repo.DB.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	headers.Set(payment.DemoSignatureHeader, "00")
	_, err = f.checkout.HandlePaymentWebhook(ctx, headers, body)
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestCheckout_DeclineLeavesCartIntact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
	require.NoError(t, err)
	f.gateway.Decline(begun.IntentID)

	_, err = f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.ErrorIs(t, err, ErrPaymentDeclined)
	assert.False(t, RequiresRestart(err))

	cart, err := f.cart.GetCurrentCart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalQuantity)
	assert.Empty(t, f.pendingEvents(t))
}

func TestCheckout_AdmissionChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.checkout.BeginCheckout(ctx, userIdentity(), BeginCheckoutInput{})
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("store closed", func(t *testing.T) {
		f := newFixture(t)
		id := fillCart(t, f, userIdentity())
		require.NoError(t, f.repo.PutSetting(ctx, settings.KeyStoreOpen, "false"))
		require.NoError(t, f.repo.PutSetting(ctx, settings.KeyStoreClosedReason, "holiday"))
		f.settings.Invalidate()

		_, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
		var closed *StoreClosedError
		require.ErrorAs(t, err, &closed)
		assert.Equal(t, "holiday", closed.Reason)
	})

	t.Run("high load", func(t *testing.T) {
		f := newFixture(t)
		id := fillCart(t, f, userIdentity())
		require.NoError(t, f.repo.PutSetting(ctx, settings.KeyHighLoad, "true"))
		f.settings.Invalidate()

		_, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
		assert.ErrorIs(t, err, ErrStoreClosed)
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t)
		f.checkout.Limiter = ratelimit.NewMemoryLimiter(1, time.Minute, nil)
		id := fillCart(t, f, userIdentity())

		_, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
		require.NoError(t, err)
		_, err = f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("coupon and points", func(t *testing.T) {
		f := newFixture(t)
		id := fillCart(t, f, userIdentity())
		f.grant(t, *id.UserID, 100)
		testutil.SeedCoupon(t, f.repo.DB, "TEN", "10")
		_, err := f.cart.ApplyCoupon(ctx, id, "ten")
		require.NoError(t, err)

		_, err = f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{Points: 60})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("points below floor", func(t *testing.T) {
		f := newFixture(t)
		id := fillCart(t, f, userIdentity())
		f.grant(t, *id.UserID, 100)

		_, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{Points: 30})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("guest cannot redeem", func(t *testing.T) {
		f := newFixture(t)
		id := fillCart(t, f, Identity{IP: "10.0.0.9"})

		_, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{Points: 60})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestCheckout_GuestNeedsMatchingToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, Identity{IP: "10.0.0.9"})

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
	require.NoError(t, err)

	_, err = f.checkout.CompleteCheckout(ctx, Identity{CartToken: "someone-else"}, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.ErrorIs(t, err, ErrForbidden)

	order, err := f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.NoError(t, err)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "10.0.0.9", order.IPAddress)
}

func TestCheckout_ShippingIsValidated(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout.CompleteCheckout(context.Background(), userIdentity(), CompleteCheckoutInput{
		IntentID: "demo_pi_x",
		Shipping: ShippingDetails{Name: "Dana"},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "phone, address")
}

func TestCheckout_CartGoneBeforeCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
	require.NoError(t, err)
	cart, err := f.repo.FindCartByUser(ctx, *id.UserID)
	require.NoError(t, err)
	require.NoError(t, f.repo.DeleteCart(ctx, cart.ID))

	_, err = f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.ErrorIs(t, err, ErrCartNotFound)
	assert.True(t, RequiresRestart(err))
	assert.Empty(t, f.pendingEvents(t))
}

func TestCheckout_CartChangedBeforeCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{})
	require.NoError(t, err)
	view, err := f.cart.GetCurrentCart(ctx, id)
	require.NoError(t, err)
	_, err = f.cart.SetItemQuantity(ctx, id, view.Lines[0].ID, 3)
	require.NoError(t, err)

	_, err = f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.ErrorIs(t, err, ErrCartChanged)
	assert.True(t, RequiresRestart(err))
}

func TestCheckout_SettlementShortfallIsRecordedAsOrphan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := fillCart(t, f, userIdentity())
	f.grant(t, *id.UserID, 100)

	begun, err := f.checkout.BeginCheckout(ctx, id, BeginCheckoutInput{Points: 60})
	require.NoError(t, err)

	// the balance drops between preview and capture
	_, err = f.loyalty.Adjust(ctx, *id.UserID, uuid.New(), -50, models.LoyaltyAdjustment, "correction")
	require.NoError(t, err)

	_, err = f.checkout.CompleteCheckout(ctx, id, CompleteCheckoutInput{IntentID: begun.IntentID, Shipping: shipping()})
	require.ErrorIs(t, err, ErrInsufficientPoints)

	var count int64
	require.NoError(t, f.repo.DB.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)

	cart, err := f.cart.GetCurrentCart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.TotalQuantity)

	balance, err := f.loyalty.Balance(ctx, *id.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	assert.Equal(t, []string{events.TypePaymentOrphaned}, f.pendingEvents(t))
	_, err = f.dispatcher(f.handlers()).DrainOnce(ctx)
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), "payment_requires_reconciliation")
}
