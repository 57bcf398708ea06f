package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

func (r *GormRepo) FindCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Where("id = ?", cartID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) FindCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) FindCartByTokenDigest(ctx context.Context, digest string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Where("token_digest = ?", digest).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.DB.WithContext(ctx).Omit("Items").Create(cart).Error
}

// LockCart reads the cart row with FOR UPDATE. Must run inside a transaction.
func (r *GormRepo) LockCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Clauses(forUpdate()).Where("id = ?", cartID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) SetCartTokenDigest(ctx context.Context, cartID uuid.UUID, digest *string) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).Update("token_digest", digest).Error
}

func (r *GormRepo) SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	return r.DB.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).Update("coupon_code", code).Error
}

func (r *GormRepo) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	if err := r.deleteCartItems(ctx, cartID); err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

func (r *GormRepo) LoadCartItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB.WithContext(ctx).
		Preload("ProductItem").
		Preload("AddedIngredients").
		Where("cart_id = ?", cartID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) FindCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) FindCartItemByKey(ctx context.Context, cartID uuid.UUID, key string) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).Where("cart_id = ? AND config_key = ?", cartID, key).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// CartQuantity is the sum of quantities over all lines of the cart.
func (r *GormRepo) CartQuantity(ctx context.Context, cartID uuid.UUID) (int, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// InsertCartItem links existing ingredients without upserting them.
func (r *GormRepo) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Omit("ProductItem", "AddedIngredients.*").Create(item).Error
}

func (r *GormRepo) SetCartItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.DB.WithContext(ctx).Model(&models.CartItem{}).Where("id = ?", itemID).Update("quantity", quantity).Error
}

func (r *GormRepo) MoveCartItem(ctx context.Context, itemID, toCartID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.CartItem{}).Where("id = ?", itemID).Update("cart_id", toCartID).Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, itemID uuid.UUID) error {
	db := r.DB.WithContext(ctx)
	if err := db.Exec("DELETE FROM cart_item_ingredients WHERE cart_item_id = ?", itemID).Error; err != nil {
		return err
	}
	return db.Where("id = ?", itemID).Delete(&models.CartItem{}).Error
}

func (r *GormRepo) deleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	db := r.DB.WithContext(ctx)
	if err := db.Exec("DELETE FROM cart_item_ingredients WHERE cart_item_id IN (SELECT id FROM cart_items WHERE cart_id = ?)", cartID).Error; err != nil {
		return err
	}
	return db.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// ClearCart empties the cart after checkout. The cart row itself stays.
func (r *GormRepo) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if err := r.deleteCartItems(ctx, cartID); err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).
		Updates(map[string]any{"total_amount": decimal.Zero, "coupon_code": nil}).Error
}

// RecalculateCart recomputes total_amount from the lines currently stored,
// so it sees every change made earlier in the same transaction. It returns
// the cart with its items loaded.
func (r *GormRepo) RecalculateCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := r.FindCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	items, err := r.LoadCartItems(ctx, cartID)
	if err != nil {
		return nil, err
	}

	percent := decimal.Zero
	if cart.CouponCode != nil {
		coupon, err := r.FindCouponByCode(ctx, *cart.CouponCode)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if coupon != nil && coupon.Usable(r.now()) {
			percent = coupon.Percent
		}
	}

	total := domain.CartTotal(CartLines(items), percent)
	if err := r.DB.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).
		Update("total_amount", total).Error; err != nil {
		return nil, err
	}

	cart.TotalAmount = total
	cart.Items = items
	return cart, nil
}

// CartLines prices stored lines at current catalog prices.
func CartLines(items []models.CartItem) []domain.CartLine {
	lines := make([]domain.CartLine, len(items))
	for i, it := range items {
		prices := make([]decimal.Decimal, len(it.AddedIngredients))
		for j, ing := range it.AddedIngredients {
			prices[j] = ing.Price
		}
		lines[i] = domain.CartLine{
			UnitPrice:        it.ProductItem.Price,
			IngredientPrices: prices,
			Quantity:         it.Quantity,
		}
	}
	return lines
}

func (r *GormRepo) now() time.Time {
	if r.DB.NowFunc != nil {
		return r.DB.NowFunc()
	}
	return time.Now().UTC()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
