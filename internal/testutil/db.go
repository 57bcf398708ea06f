// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/pkg/db"
)

// NewDB returns a migrated in-memory SQLite database. It has exactly one
// connection, so transactions from concurrent goroutines run one at a time.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// SeedProduct inserts an available variant priced at price.
func SeedProduct(t testing.TB, gdb *gorm.DB, name string, price string) models.ProductItem {
	t.Helper()

	p := models.ProductItem{
		ProductName: name,
		Dough:       "classic",
		Size:        "medium",
		Price:       decimal.RequireFromString(price),
		Available:   true,
	}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedIngredient(t testing.TB, gdb *gorm.DB, name string, price string) models.Ingredient {
	t.Helper()

	ing := models.Ingredient{Name: name, Price: decimal.RequireFromString(price)}
	if err := gdb.Create(&ing).Error; err != nil {
		t.Fatalf("seed ingredient: %v", err)
	}
	return ing
}

func SeedCoupon(t testing.TB, gdb *gorm.DB, code string, percent string) models.Coupon {
	t.Helper()

	c := models.Coupon{Code: strings.ToUpper(code), Percent: decimal.RequireFromString(percent), Active: true}
	if err := gdb.Create(&c).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	return c
}
