package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/repo"
)

type HandlerFunc func(ctx context.Context, ev Event) error

type subscription struct {
	name string
	fn   HandlerFunc
}

// Dispatcher delivers stored events to subscribers. A failing handler is
// logged and does not stop the others; the event is marked processed
// either way.
type Dispatcher struct {
	repo     *repo.GormRepo
	log      *slog.Logger
	interval time.Duration
	batch    int
	now      func() time.Time

	byType map[string][]subscription
	all    []subscription
	wake   chan struct{}
}

func NewDispatcher(r *repo.GormRepo, log *slog.Logger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Dispatcher{
		repo:     r,
		log:      log,
		interval: interval,
		batch:    100,
		now:      func() time.Time { return time.Now().UTC() },
		byType:   make(map[string][]subscription),
		wake:     make(chan struct{}, 1),
	}
}

// Subscribe registers fn for one event type. Register before Run.
func (d *Dispatcher) Subscribe(eventType, name string, fn HandlerFunc) {
	d.byType[eventType] = append(d.byType[eventType], subscription{name: name, fn: fn})
}

func (d *Dispatcher) SubscribeAll(name string, fn HandlerFunc) {
	d.all = append(d.all, subscription{name: name, fn: fn})
}

// Notify wakes Run without waiting for the next tick.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("outbox_drain_error", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DrainOnce handles pending events until none are left and returns how many
// it processed.
func (d *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	processed := 0
	for {
		pending, err := d.repo.PendingOutboxEvents(ctx, d.batch)
		if err != nil {
			return processed, err
		}
		if len(pending) == 0 {
			return processed, nil
		}
		for _, row := range pending {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			d.dispatch(ctx, toEvent(row))
			if err := d.repo.MarkOutboxProcessed(ctx, row.ID, d.now()); err != nil {
				return processed, err
			}
			processed++
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	subs := append(append([]subscription(nil), d.byType[ev.Type]...), d.all...)
	for _, s := range subs {
		if err := d.safeCall(ctx, s, ev); err != nil {
			d.log.Error("event_handler_error",
				"handler", s.name,
				"event_id", ev.ID,
				"event_type", ev.Type,
				"aggregate_id", ev.AggregateID,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) safeCall(ctx context.Context, s subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event_handler_panic", "handler", s.name, "event_id", ev.ID, "panic", r)
		}
	}()
	return s.fn(ctx, ev)
}

func toEvent(row models.OutboxEvent) Event {
	return Event{
		ID:          row.ID,
		Type:        row.Type,
		AggregateID: row.AggregateID,
		Payload:     json.RawMessage(row.Payload),
		CreatedAt:   row.CreatedAt,
	}
}
