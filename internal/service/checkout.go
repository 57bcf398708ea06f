package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/events"
	"github.com/Skotchmaster/food_order/internal/hash"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/payment"
	"github.com/Skotchmaster/food_order/internal/ratelimit"
	"github.com/Skotchmaster/food_order/internal/repo"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

// EventNotifier wakes the outbox dispatcher after a commit.
type EventNotifier interface {
	Notify()
}

type CheckoutService struct {
	Repo     *repo.GormRepo
	Gateway  payment.Gateway
	Loyalty  *LoyaltyService
	Guard    *StoreGuard
	Limiter  ratelimit.Limiter
	Hasher   *hash.TokenHasher
	Outbox   events.Outbox
	Events   EventNotifier
	Pricing  domain.PricingPolicy
	Currency string
	Now      func() time.Time
}

type BeginCheckoutInput struct {
	Points int64 `json:"points"`
}

type BeginCheckoutResult struct {
	IntentID     string         `json:"intent_id"`
	ClientSecret string         `json:"client_secret,omitempty"`
	Pricing      domain.Pricing `json:"pricing"`
	Currency     string         `json:"currency"`
	Demo         bool           `json:"demo"`
}

type ShippingDetails struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Comment      string     `json:"comment,omitempty"`
}

func (d ShippingDetails) validate() error {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(d.Address) == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if d.Email != "" && !strings.Contains(d.Email, "@") {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return nil
}

type CompleteCheckoutInput struct {
	IntentID string          `json:"intent_id"`
	Shipping ShippingDetails `json:"shipping"`
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// BeginCheckout runs the admission checks, prices the cart and opens a
// payment intent. Nothing is reserved: points are only previewed here.
func (s *CheckoutService) BeginCheckout(ctx context.Context, id Identity, in BeginCheckoutInput) (*BeginCheckoutResult, error) {
	log := logging.FromContext(ctx)

	if st := s.Guard.IsAcceptingOrders(ctx); !st.Open {
		return nil, &StoreClosedError{Reason: st.Reason}
	}

	if key := id.RateKey(); key != "" && s.Limiter != nil {
		ok, err := s.Limiter.Allow(ctx, key)
		if err != nil {
			log.Warn("rate_limiter_unavailable", "error", err)
		} else if !ok {
			return nil, ErrRateLimited
		}
	}

	cart, err := s.resolveCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrEmptyCart
	}

	var fresh *models.Cart
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.LockCart(ctx, cart.ID); err != nil {
			return err
		}
		fresh, err = tx.RecalculateCart(ctx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(fresh.Items) == 0 || !fresh.TotalAmount.IsPositive() {
		return nil, ErrEmptyCart
	}

	discount := decimal.Zero
	if in.Points < 0 {
		return nil, fmt.Errorf("%w: points must not be negative", ErrValidation)
	}
	if in.Points > 0 {
		if id.UserID == nil {
			return nil, fmt.Errorf("%w: sign in to redeem points", ErrForbidden)
		}
		if fresh.CouponCode != nil {
			return nil, fmt.Errorf("%w: a coupon and points cannot be combined", ErrValidation)
		}
		redemption, err := s.Loyalty.PreviewRedemption(ctx, *id.UserID, in.Points)
		if err != nil {
			return nil, err
		}
		discount = redemption.Discount
	}

	pricing := s.Pricing.ComputeOrderPricing(fresh.TotalAmount, discount)

	meta := map[string]string{"cart_id": fresh.ID.String()}
	if id.UserID != nil {
		meta["user_id"] = id.UserID.String()
	}
	intent, err := s.Gateway.CreateIntent(ctx, pricing.FinalAmount, s.Currency, meta)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	attempt := &models.CheckoutAttempt{
		IntentID:  intent.ID,
		CartID:    fresh.ID,
		UserID:    id.UserID,
		Points:    in.Points,
		Subtotal:  pricing.Subtotal,
		Discount:  pricing.Discount,
		VAT:       pricing.VAT,
		Delivery:  pricing.Delivery,
		Amount:    pricing.FinalAmount,
		Currency:  s.Currency,
		Status:    models.AttemptPending,
		Demo:      intent.Demo,
		IPAddress: id.IP,
	}
	if fresh.CouponCode != nil {
		attempt.CouponCode = *fresh.CouponCode
	}
	if err := s.Repo.CreateCheckoutAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record checkout attempt: %w", err)
	}

	log.Info("checkout_started", "intent_id", intent.ID, "cart_id", fresh.ID, "amount", pricing.FinalAmount.StringFixed(2), "demo", intent.Demo)
	return &BeginCheckoutResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Pricing:      pricing,
		Currency:     s.Currency,
		Demo:         intent.Demo,
	}, nil
}

func (s *CheckoutService) resolveCart(ctx context.Context, id Identity) (*models.Cart, error) {
	if id.UserID != nil {
		cart, err := s.Repo.FindCartByUser(ctx, *id.UserID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if id.CartToken == "" {
		return nil, nil
	}
	cart, err := s.Repo.FindCartByTokenDigest(ctx, s.Hasher.Digest(id.CartToken))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.UserID != nil && (id.UserID == nil || *cart.UserID != *id.UserID) {
		return nil, nil
	}
	return cart, nil
}

// CompleteCheckout captures the payment and converts the cart into an
// order. The order, the cleared cart, the points settlement and the outbox
// events commit together. Calling it again for the same intent returns the
// order created the first time.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, id Identity, in CompleteCheckoutInput) (*models.Order, error) {
	log := logging.FromContext(ctx)

	in.IntentID = strings.TrimSpace(in.IntentID)
	if in.IntentID == "" {
		return nil, fmt.Errorf("%w: intent_id is required", ErrValidation)
	}
	if err := in.Shipping.validate(); err != nil {
		return nil, err
	}

	if order, err := s.Repo.FindOrderByPaymentReference(ctx, in.IntentID); err == nil {
		return order, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	attempt, err := s.Repo.FindCheckoutAttempt(ctx, in.IntentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: payment intent", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, id, attempt); err != nil {
		return nil, err
	}
	if err := s.precheckCart(ctx, attempt); err != nil {
		if order, ferr := s.Repo.FindOrderByPaymentReference(ctx, attempt.IntentID); ferr == nil {
			return order, nil
		}
		return nil, err
	}

	capture, err := s.Gateway.CaptureIntent(ctx, attempt.IntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	}
	if capture.Status != payment.StatusCompleted {
		return nil, fmt.Errorf("%w: capture status %s", ErrPaymentDeclined, capture.Status)
	}

	now := s.now()
	var order, existing *models.Order
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.LockCart(ctx, attempt.CartID); errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCartNotFound
		} else if err != nil {
			return err
		}

		prev, err := tx.FindOrderByPaymentReference(ctx, attempt.IntentID)
		if err == nil {
			existing = prev
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		cart, err := tx.RecalculateCart(ctx, attempt.CartID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrCartNotFound
		}
		if !cart.TotalAmount.Equal(attempt.Subtotal) {
			return fmt.Errorf("%w: total %s, paid for %s", ErrCartChanged, cart.TotalAmount.StringFixed(2), attempt.Subtotal.StringFixed(2))
		}

		lines, err := snapshotLines(ctx, tx, cart.Items)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:           attempt.UserID,
			Lines:            lines,
			Subtotal:         attempt.Subtotal,
			Discount:         attempt.Discount,
			VAT:              attempt.VAT,
			Delivery:         attempt.Delivery,
			TotalAmount:      attempt.Amount,
			Currency:         attempt.Currency,
			CouponCode:       attempt.CouponCode,
			PointsRedeemed:   attempt.Points,
			CustomerName:     strings.TrimSpace(in.Shipping.Name),
			CustomerEmail:    strings.TrimSpace(in.Shipping.Email),
			CustomerPhone:    strings.TrimSpace(in.Shipping.Phone),
			Address:          strings.TrimSpace(in.Shipping.Address),
			ScheduledFor:     in.Shipping.ScheduledFor,
			Comment:          in.Shipping.Comment,
			PaymentReference: attempt.IntentID,
			Status:           domain.StatusConfirmed,
			StatusHistory:    domain.NewConfirmedHistory(now, id.ActorID()),
			Demo:             attempt.Demo,
			IPAddress:        attempt.IPAddress,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.ClearCart(ctx, cart.ID); err != nil {
			return err
		}
		if attempt.Points > 0 && attempt.UserID != nil {
			if err := s.Loyalty.SettleTx(ctx, tx, *attempt.UserID, order.ID, attempt.Points); err != nil {
				return err
			}
		}
		if err := tx.CompleteCheckoutAttempt(ctx, attempt.ID, order.ID); err != nil {
			return err
		}

		if err := s.Outbox.Emit(ctx, tx, events.TypeOrderCreated, order.ID.String(), events.OrderCreated{
			OrderID:        order.ID,
			UserID:         order.UserID,
			TotalAmount:    order.TotalAmount,
			PointsRedeemed: order.PointsRedeemed,
			Demo:           order.Demo,
		}); err != nil {
			return err
		}
		return s.Outbox.Emit(ctx, tx, events.TypePaymentCaptured, order.ID.String(), events.PaymentCaptured{
			OrderID:  order.ID,
			IntentID: attempt.IntentID,
			Amount:   attempt.Amount,
			Currency: attempt.Currency,
		})
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// another completion for the same intent won the race
		prev, ferr := s.Repo.FindOrderByPaymentReference(ctx, attempt.IntentID)
		if ferr == nil {
			return prev, nil
		}
	}
	if err != nil {
		s.recordOrphan(ctx, attempt, err)
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if s.Events != nil {
		s.Events.Notify()
	}
	log.Info("order_created", "order_id", order.ID, "intent_id", attempt.IntentID, "total", order.TotalAmount.StringFixed(2), "demo", order.Demo)
	return order, nil
}

// checkOwner makes sure only the caller who began the checkout can finish
// it: the same user, or for guests the holder of the cart token.
func (s *CheckoutService) checkOwner(ctx context.Context, id Identity, a *models.CheckoutAttempt) error {
	if a.UserID != nil {
		if id.UserID == nil || *id.UserID != *a.UserID {
			return fmt.Errorf("%w: checkout belongs to another user", ErrForbidden)
		}
		return nil
	}

	cart, err := s.Repo.FindCart(ctx, a.CartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartNotFound
	}
	if err != nil {
		return err
	}
	if cart.TokenDigest == nil || id.CartToken == "" || *cart.TokenDigest != s.Hasher.Digest(id.CartToken) {
		return fmt.Errorf("%w: cart token does not match checkout", ErrForbidden)
	}
	return nil
}

// precheckCart refuses to capture a payment for a cart that is gone or no
// longer matches what was priced. The same checks run again under the lock
// after capture.
func (s *CheckoutService) precheckCart(ctx context.Context, a *models.CheckoutAttempt) error {
	cart, err := s.Repo.RecalculateCart(ctx, a.CartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartNotFound
	}
	if err != nil {
		return err
	}
	if len(cart.Items) == 0 {
		return ErrCartNotFound
	}
	if !cart.TotalAmount.Equal(a.Subtotal) {
		return fmt.Errorf("%w: total %s, priced at %s", ErrCartChanged, cart.TotalAmount.StringFixed(2), a.Subtotal.StringFixed(2))
	}
	return nil
}

// recordOrphan is called when the payment was captured but no order could
// be written. The event and the error log are the reconciliation trail.
func (s *CheckoutService) recordOrphan(ctx context.Context, a *models.CheckoutAttempt, cause error) {
	log := logging.FromContext(ctx)
	log.Error("payment_orphaned", "intent_id", a.IntentID, "cart_id", a.CartID, "amount", a.Amount.StringFixed(2), "error", cause)

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		return s.Outbox.Emit(ctx, tx, events.TypePaymentOrphaned, a.IntentID, events.PaymentOrphaned{
			IntentID: a.IntentID,
			CartID:   a.CartID,
			UserID:   a.UserID,
			Amount:   a.Amount,
			Currency: a.Currency,
			Reason:   cause.Error(),
		})
	})
	if err != nil {
		log.Error("payment_orphan_record_failed", "intent_id", a.IntentID, "error", err)
		return
	}
	if s.Events != nil {
		s.Events.Notify()
	}
}

// snapshotLines freezes cart lines with the names and prices in effect now.
func snapshotLines(ctx context.Context, tx *repo.GormRepo, items []models.CartItem) (domain.OrderLines, error) {
	var removedIDs []uuid.UUID
	for _, it := range items {
		for _, raw := range it.RemovedIngredientIDs {
			if rid, err := uuid.Parse(raw); err == nil {
				removedIDs = append(removedIDs, rid)
			}
		}
	}
	names := map[string]string{}
	if len(removedIDs) > 0 {
		ings, err := tx.FindIngredients(ctx, compactIDs(removedIDs))
		if err != nil {
			return nil, err
		}
		for _, ing := range ings {
			names[ing.ID.String()] = ing.Name
		}
	}

	lines := make(domain.OrderLines, 0, len(items))
	for _, it := range items {
		added := make([]domain.AddedIngredient, len(it.AddedIngredients))
		for i, ing := range it.AddedIngredients {
			added[i] = domain.AddedIngredient{ID: ing.ID.String(), Name: ing.Name, Price: ing.Price}
		}
		removed := make([]domain.RemovedIngredient, len(it.RemovedIngredientIDs))
		for i, rid := range it.RemovedIngredientIDs {
			name, ok := names[rid]
			if !ok {
				name = rid
			}
			removed[i] = domain.RemovedIngredient{ID: rid, Name: name}
		}
		p := it.ProductItem
		lines = append(lines, domain.NewLineItem(p.ID.String(), p.ProductName, p.Dough, p.Size, p.Price, it.Quantity, added, removed))
	}
	return lines, nil
}

type WebhookResult struct {
	EventID   string     `json:"event_id"`
	IntentID  string     `json:"intent_id,omitempty"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Duplicate bool       `json:"duplicate"`
}

// HandlePaymentWebhook verifies a provider callback. Orders are only
// created by CompleteCheckout, so a webhook for an intent that already has
// an order changes nothing.
func (s *CheckoutService) HandlePaymentWebhook(ctx context.Context, headers http.Header, body []byte) (*WebhookResult, error) {
	log := logging.FromContext(ctx)

	ev, err := s.Gateway.VerifyWebhook(headers, body)
	if err != nil {
		return nil, err
	}
	res := &WebhookResult{EventID: ev.ID, IntentID: ev.IntentID}
	if ev.IntentID == "" {
		log.Info("payment_webhook_ignored", "event_id", ev.ID, "type", ev.Type)
		return res, nil
	}

	order, err := s.Repo.FindOrderByPaymentReference(ctx, ev.IntentID)
	switch {
	case err == nil:
		res.OrderID = &order.ID
		res.Duplicate = true
		log.Info("payment_webhook_duplicate", "event_id", ev.ID, "intent_id", ev.IntentID, "order_id", order.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Info("payment_webhook_pending", "event_id", ev.ID, "intent_id", ev.IntentID, "status", ev.Status)
	default:
		return nil, err
	}
	return res, nil
}
