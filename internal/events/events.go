// Package events carries domain events from the transaction that produced
// them to handlers that run after commit.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/food_order/internal/domain"
)

const (
	TypeOrderCreated       = "order.created"
	TypePaymentCaptured    = "payment.captured"
	TypeOrderStatusChanged = "order.status_changed"
	TypePaymentOrphaned    = "payment.orphaned"
)

type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type OrderCreated struct {
	OrderID        uuid.UUID       `json:"order_id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PointsRedeemed int64           `json:"points_redeemed"`
	Demo           bool            `json:"demo"`
}

type PaymentCaptured struct {
	OrderID  uuid.UUID       `json:"order_id"`
	IntentID string          `json:"intent_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type OrderStatusChanged struct {
	OrderID uuid.UUID          `json:"order_id"`
	From    domain.OrderStatus `json:"from"`
	To      domain.OrderStatus `json:"to"`
	ActorID string             `json:"actor_id,omitempty"`
	Note    string             `json:"note,omitempty"`
}

// PaymentOrphaned marks a captured payment that produced no order. It needs
// manual reconciliation.
type PaymentOrphaned struct {
	IntentID string          `json:"intent_id"`
	CartID   uuid.UUID       `json:"cart_id"`
	UserID   *uuid.UUID      `json:"user_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Reason   string          `json:"reason"`
}
