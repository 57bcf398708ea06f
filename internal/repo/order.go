package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

type OrderFilter struct {
	Statuses    []domain.OrderStatus
	From        *time.Time
	To          *time.Time
	IncludeDemo bool
	Limit       int
	Offset      int
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) FindOrderByPaymentReference(ctx context.Context, ref string) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Where("payment_reference = ?", ref).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Clauses(forUpdate()).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOrderStatus writes only the mutable status columns.
func (r *GormRepo) SaveOrderStatus(ctx context.Context, o *models.Order) error {
	return r.DB.WithContext(ctx).Model(o).
		Select("status", "status_history", "preparing_at", "ready_at", "dispatched_at", "delivered_at", "cancelled_at", "updated_at").
		Updates(o).Error
}

// UpdateOrderOperational writes the comment and prep estimate.
func (r *GormRepo) UpdateOrderOperational(ctx context.Context, id uuid.UUID, comment *string, prepMinutes *int) error {
	updates := map[string]any{}
	if comment != nil {
		updates["comment"] = *comment
	}
	if prepMinutes != nil {
		updates["estimated_prep_minutes"] = *prepMinutes
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	if !f.IncludeDemo {
		q = q.Where("demo = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var orders []models.Order
	if err := q.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
