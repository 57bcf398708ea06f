package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
)

// Order is written once from a cart snapshot. After creation only the
// status, history and operational fields change.
type Order struct {
	ID     uuid.UUID  `gorm:"type:uuid;primaryKey"  json:"id"`
	UserID *uuid.UUID `gorm:"type:uuid;index"       json:"user_id,omitempty"`

	Lines          domain.OrderLines `gorm:"serializer:json;type:text;not null" json:"lines"`
	Subtotal       decimal.Decimal   `gorm:"type:numeric(12,2);not null"       json:"subtotal"`
	Discount       decimal.Decimal   `gorm:"type:numeric(12,2);not null"       json:"discount"`
	VAT            decimal.Decimal   `gorm:"type:numeric(12,2);not null"       json:"vat"`
	Delivery       decimal.Decimal   `gorm:"type:numeric(12,2);not null"       json:"delivery"`
	TotalAmount    decimal.Decimal   `gorm:"type:numeric(12,2);not null"       json:"total_amount"`
	Currency       string            `gorm:"not null"                          json:"currency"`
	CouponCode     string            `                                         json:"coupon_code,omitempty"`
	PointsRedeemed int64             `gorm:"not null;default:0"                json:"points_redeemed"`

	CustomerName  string     `gorm:"not null" json:"customer_name"`
	CustomerEmail string     `                json:"customer_email"`
	CustomerPhone string     `                json:"customer_phone"`
	Address       string     `                json:"address"`
	ScheduledFor  *time.Time `                json:"scheduled_for,omitempty"`

	PaymentReference string               `gorm:"uniqueIndex;not null"                json:"payment_reference"`
	Status           domain.OrderStatus   `gorm:"index;not null"                      json:"status"`
	StatusHistory    domain.StatusHistory `gorm:"serializer:json;type:text;not null"  json:"status_history"`
	Demo             bool                 `gorm:"not null;default:false"              json:"demo"`
	IPAddress        string               `                                           json:"-"`

	Comment              string     `json:"comment,omitempty"`
	EstimatedPrepMinutes *int       `json:"estimated_prep_minutes,omitempty"`
	PreparingAt          *time.Time `json:"preparing_at,omitempty"`
	ReadyAt              *time.Time `json:"ready_at,omitempty"`
	DispatchedAt         *time.Time `json:"dispatched_at,omitempty"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `             json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (Order) TableName() string {
	return "orders"
}

// StampStatusTime records when the order entered st.
func (o *Order) StampStatusTime(st domain.OrderStatus, at time.Time) {
	t := at
	switch st {
	case domain.StatusPreparing:
		o.PreparingAt = &t
	case domain.StatusReady:
		o.ReadyAt = &t
	case domain.StatusDelivering:
		o.DispatchedAt = &t
	case domain.StatusDelivered:
		o.DeliveredAt = &t
	case domain.StatusCancelled:
		o.CancelledAt = &t
	}
}

const (
	AttemptPending   = "pending"
	AttemptCompleted = "completed"
)

// CheckoutAttempt is the server-side record of a created payment intent.
// Completion trusts these amounts, never client-supplied ones.
type CheckoutAttempt struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"          json:"id"`
	IntentID   string          `gorm:"uniqueIndex;not null"          json:"intent_id"`
	CartID     uuid.UUID       `gorm:"type:uuid;index;not null"      json:"cart_id"`
	UserID     *uuid.UUID      `gorm:"type:uuid"                     json:"user_id,omitempty"`
	Points     int64           `gorm:"not null;default:0"            json:"points"`
	CouponCode string          `                                     json:"coupon_code,omitempty"`
	Subtotal   decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"subtotal"`
	Discount   decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"discount"`
	VAT        decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"vat"`
	Delivery   decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"delivery"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"amount"`
	Currency   string          `gorm:"not null"                      json:"currency"`
	Status     string          `gorm:"not null;default:pending"      json:"status"`
	OrderID    *uuid.UUID      `gorm:"type:uuid"                     json:"order_id,omitempty"`
	Demo       bool            `gorm:"not null;default:false"        json:"demo"`
	IPAddress  string          `                                     json:"-"`
	CreatedAt  time.Time       `                                     json:"created_at"`
	UpdatedAt  time.Time       `                                     json:"updated_at"`
}

func (a *CheckoutAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (CheckoutAttempt) TableName() string {
	return "checkout_attempts"
}
