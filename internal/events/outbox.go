package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/repo"
)

// Outbox writes events through the caller's transaction, so an event exists
// exactly when the change it describes was committed.
type Outbox struct{}

func (Outbox) Emit(ctx context.Context, tx *repo.GormRepo, eventType, aggregateID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s: %w", eventType, err)
	}
	ev := &models.OutboxEvent{
		ID:          ulid.Make().String(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     string(data),
	}
	if err := tx.InsertOutboxEvent(ctx, ev); err != nil {
		return fmt.Errorf("outbox: insert %s: %w", eventType, err)
	}
	return nil
}
