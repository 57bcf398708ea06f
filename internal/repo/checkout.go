package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/Skotchmaster/food_order/internal/models"
)

func (r *GormRepo) CreateCheckoutAttempt(ctx context.Context, a *models.CheckoutAttempt) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *GormRepo) FindCheckoutAttempt(ctx context.Context, intentID string) (*models.CheckoutAttempt, error) {
	var a models.CheckoutAttempt
	if err := r.DB.WithContext(ctx).Where("intent_id = ?", intentID).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormRepo) CompleteCheckoutAttempt(ctx context.Context, attemptID, orderID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.CheckoutAttempt{}).Where("id = ?", attemptID).
		Updates(map[string]any{"status": models.AttemptCompleted, "order_id": orderID}).Error
}
