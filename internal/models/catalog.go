package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductItem is one purchasable variant of a product (dough and size).
type ProductItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"             json:"id"`
	ProductName string          `gorm:"not null"                         json:"product_name"`
	Dough       string          `                                        json:"dough,omitempty"`
	Size        string          `                                        json:"size,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"price"`
	Available   bool            `gorm:"not null;default:true"            json:"available"`
	CreatedAt   time.Time       `                                        json:"created_at"`
	UpdatedAt   time.Time       `                                        json:"updated_at"`
}

func (p *ProductItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (ProductItem) TableName() string {
	return "product_items"
}

type Ingredient struct {
	ID    uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	Name  string          `gorm:"not null"                    json:"name"`
	Price decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (Ingredient) TableName() string {
	return "ingredients"
}

type Coupon struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"        json:"id"`
	Code      string          `gorm:"uniqueIndex;not null"        json:"code"`
	Percent   decimal.Decimal `gorm:"type:numeric(5,2);not null"  json:"percent"`
	Active    bool            `gorm:"not null;default:true"       json:"active"`
	ExpiresAt *time.Time      `                                   json:"expires_at,omitempty"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Coupon) TableName() string {
	return "coupons"
}

// Usable reports whether the coupon may be applied at now.
func (c Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}
