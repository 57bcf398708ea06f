package models

import "time"

// Setting is a runtime-editable key/value such as store_open or max_cart_items.
type Setting struct {
	Key       string    `gorm:"primaryKey"  json:"key"`
	Value     string    `gorm:"not null"    json:"value"`
	UpdatedAt time.Time `                   json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// OutboxEvent is written in the same transaction as the change it describes
// and handled after commit.
type OutboxEvent struct {
	ID          string     `gorm:"primaryKey"            json:"id"`
	Type        string     `gorm:"index;not null"        json:"type"`
	AggregateID string     `gorm:"index;not null"        json:"aggregate_id"`
	Payload     string     `gorm:"type:text;not null"    json:"payload"`
	CreatedAt   time.Time  `                             json:"created_at"`
	ProcessedAt *time.Time `gorm:"index"                 json:"processed_at,omitempty"`
	Attempts    int        `gorm:"not null;default:0"    json:"attempts"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&ProductItem{},
		&Ingredient{},
		&Coupon{},
		&Cart{},
		&CartItem{},
		&Order{},
		&CheckoutAttempt{},
		&LoyaltyAccount{},
		&LoyaltyTransaction{},
		&Setting{},
		&OutboxEvent{},
	}
}
