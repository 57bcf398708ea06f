package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/events"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/notify"
	"github.com/Skotchmaster/food_order/internal/repo"
)

// EventHandlers are the after-commit side effects of the order pipeline.
// Each may run more than once for the same event and must not fail the
// order that produced it.
type EventHandlers struct {
	Repo     *repo.GormRepo
	Loyalty  *LoyaltyService
	Notifier notify.Notifier
	Index    OrderSearcher
	Log      *slog.Logger
}

func (h *EventHandlers) Register(d *events.Dispatcher) {
	d.Subscribe(events.TypeOrderCreated, "loyalty_accrual", h.AccruePoints)
	d.Subscribe(events.TypeOrderCreated, "order_confirmation", h.SendConfirmation)
	d.Subscribe(events.TypeOrderStatusChanged, "status_notification", h.SendStatusUpdate)
	d.Subscribe(events.TypePaymentOrphaned, "orphan_alert", h.AlertOrphan)
	if h.Index != nil {
		d.Subscribe(events.TypeOrderCreated, "order_index", h.IndexOrder)
		d.Subscribe(events.TypeOrderStatusChanged, "order_index", h.IndexOrder)
	}
}

// AccruePoints credits a registered customer for a real order.
func (h *EventHandlers) AccruePoints(ctx context.Context, ev events.Event) error {
	var p events.OrderCreated
	if err := ev.Decode(&p); err != nil {
		return err
	}
	if p.UserID == nil || p.Demo {
		return nil
	}
	points, err := h.Loyalty.Accrue(ctx, *p.UserID, p.OrderID, p.TotalAmount)
	if err != nil {
		return err
	}
	if points > 0 {
		h.Log.Info("loyalty_accrued", "order_id", p.OrderID, "user_id", p.UserID, "points", points)
	}
	return nil
}

func (h *EventHandlers) SendConfirmation(ctx context.Context, ev events.Event) error {
	var p events.OrderCreated
	if err := ev.Decode(&p); err != nil {
		return err
	}
	o, err := h.order(ctx, p.OrderID.String())
	if err != nil || o == nil {
		return err
	}
	return h.Notifier.SendOrderConfirmation(ctx, o, o.Lines)
}

func (h *EventHandlers) SendStatusUpdate(ctx context.Context, ev events.Event) error {
	var p events.OrderStatusChanged
	if err := ev.Decode(&p); err != nil {
		return err
	}
	if !domain.NotifiesCustomer(p.To) {
		return nil
	}
	o, err := h.order(ctx, p.OrderID.String())
	if err != nil || o == nil {
		return err
	}
	return h.Notifier.SendStatusUpdate(ctx, o, p.To)
}

// IndexOrder writes the current state of the event's order to the search
// index.
func (h *EventHandlers) IndexOrder(ctx context.Context, ev events.Event) error {
	o, err := h.order(ctx, ev.AggregateID)
	if err != nil || o == nil {
		return err
	}
	return h.Index.IndexOrder(ctx, o)
}

func (h *EventHandlers) AlertOrphan(_ context.Context, ev events.Event) error {
	var p events.PaymentOrphaned
	if err := ev.Decode(&p); err != nil {
		return err
	}
	h.Log.Error("payment_requires_reconciliation",
		"intent_id", p.IntentID,
		"cart_id", p.CartID,
		"amount", p.Amount.StringFixed(2),
		"currency", p.Currency,
		"reason", p.Reason,
	)
	return nil
}

// order loads the order an event refers to; nil when it no longer exists.
func (h *EventHandlers) order(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	o, err := h.Repo.FindOrder(ctx, oid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.Log.Warn("event_order_missing", "order_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return o, nil
}
