package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoyaltyKind string

const (
	LoyaltyEarned     LoyaltyKind = "earned"
	LoyaltySpent      LoyaltyKind = "spent"
	LoyaltyBonus      LoyaltyKind = "bonus"
	LoyaltyAdjustment LoyaltyKind = "adjustment"
)

// LoyaltyAccount caches the sum of a user's ledger rows.
type LoyaltyAccount struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"             json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:balance>=0" json:"balance"`
	UpdatedAt time.Time `                                        json:"updated_at"`
}

func (LoyaltyAccount) TableName() string {
	return "loyalty_accounts"
}

type LoyaltyTransaction struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey"                       json:"id"`
	UserID      uuid.UUID   `gorm:"type:uuid;index;not null"                   json:"user_id"`
	Points      int64       `gorm:"not null"                                   json:"points"`
	Kind        LoyaltyKind `gorm:"not null;uniqueIndex:idx_loyalty_order_kind" json:"kind"`
	Description string      `                                                  json:"description"`
	OrderID     *uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_loyalty_order_kind" json:"order_id,omitempty"`
	ActorID     *uuid.UUID  `gorm:"type:uuid"                                  json:"actor_id,omitempty"`
	CreatedAt   time.Time   `gorm:"index"                                      json:"created_at"`
}

func (t *LoyaltyTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (LoyaltyTransaction) TableName() string {
	return "loyalty_transactions"
}
