package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/models"
)

func (r *GormRepo) InsertOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error {
	return r.DB.WithContext(ctx).Create(ev).Error
}

// PendingOutboxEvents returns unprocessed events oldest first.
func (r *GormRepo) PendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var out []models.OutboxEvent
	err := r.DB.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) MarkOutboxProcessed(ctx context.Context, id string, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]any{"processed_at": at, "attempts": gorm.Expr("attempts + 1")}).Error
}
