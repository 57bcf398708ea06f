package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs to either a user or a guest token; only a digest of the
// token is stored.
type Cart struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"               json:"id"`
	UserID      *uuid.UUID      `gorm:"type:uuid;uniqueIndex"              json:"user_id,omitempty"`
	TokenDigest *string         `gorm:"uniqueIndex"                        json:"-"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"total_amount"`
	CouponCode  *string         `                                          json:"coupon_code,omitempty"`
	Items       []CartItem      `gorm:"constraint:OnDelete:CASCADE"        json:"items"`
	CreatedAt   time.Time       `                                          json:"created_at"`
	UpdatedAt   time.Time       `                                          json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Cart) TableName() string {
	return "carts"
}

// CartItem is one configured line. Removed base ingredients are kept as an
// id list; added ones are a relation so their current prices can be loaded.
type CartItem struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey"                       json:"id"`
	CartID               uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_cart_config" json:"cart_id"`
	ConfigKey            string         `gorm:"not null;uniqueIndex:idx_cart_config"       json:"-"`
	ProductItemID        uuid.UUID      `gorm:"type:uuid;not null"                         json:"product_item_id"`
	ProductItem          ProductItem    `gorm:"foreignKey:ProductItemID"                   json:"product_item"`
	Quantity             int            `gorm:"not null;default:1;check:quantity>0"        json:"quantity"`
	AddedIngredients     []Ingredient   `gorm:"many2many:cart_item_ingredients;"           json:"added_ingredients"`
	RemovedIngredientIDs pq.StringArray `gorm:"type:text"                                  json:"removed_ingredient_ids"`
	CreatedAt            time.Time      `                                                  json:"created_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

func (c CartItem) AddedIDs() []string {
	ids := make([]string, len(c.AddedIngredients))
	for i, ing := range c.AddedIngredients {
		ids[i] = ing.ID.String()
	}
	return ids
}
