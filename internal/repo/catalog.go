package repo

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/food_order/internal/models"
)

func (r *GormRepo) FindProductItem(ctx context.Context, id uuid.UUID) (*models.ProductItem, error) {
	var p models.ProductItem
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) FindIngredients(ctx context.Context, ids []uuid.UUID) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Ingredient
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	if err := r.DB.WithContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
