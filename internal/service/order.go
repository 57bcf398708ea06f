package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/events"
	"github.com/Skotchmaster/food_order/internal/export"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/repo"
	"github.com/Skotchmaster/food_order/internal/search"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

const maxPrepMinutes = 600

// OrderSearcher is the search index the admin board queries.
type OrderSearcher interface {
	IndexOrder(ctx context.Context, o *models.Order) error
	Search(ctx context.Context, query string, from, size int) (search.Results, error)
}

type OrderService struct {
	Repo     *repo.GormRepo
	Outbox   events.Outbox
	Events   EventNotifier
	Index    OrderSearcher
	Location *time.Location
	Now      func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// TransitionStatus moves an order to target. The move must be in the
// transition table and allowed for the actor's role; otherwise the order is
// left untouched. Legality is checked before the role so the caller learns
// about an impossible move first.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID uuid.UUID, target domain.OrderStatus, actor Identity, note string) (*models.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrValidation, domain.ErrUnknownStatus)
	}
	if !actor.Role.IsStaff() {
		return nil, fmt.Errorf("%w: staff only", ErrForbidden)
	}

	var (
		order *models.Order
		from  domain.OrderStatus
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order", ErrNotFound)
		}
		if err != nil {
			return err
		}
		from = o.Status

		if err := domain.CheckTransition(from, target); err != nil {
			return err
		}
		if !domain.RoleMayTransition(actor.Role, from, target) {
			return fmt.Errorf("%w: %w: %s may not move %s to %s", ErrForbidden, domain.ErrTransitionForbidden, actor.Role, from, target)
		}

		at := s.now()
		o.Status = target
		o.StatusHistory = o.StatusHistory.Append(domain.StatusEntry{
			Status:  target,
			At:      at,
			ActorID: actor.ActorID(),
			Note:    note,
		})
		o.StampStatusTime(target, at)
		if err := tx.SaveOrderStatus(ctx, o); err != nil {
			return err
		}
		order = o

		return s.Outbox.Emit(ctx, tx, events.TypeOrderStatusChanged, o.ID.String(), events.OrderStatusChanged{
			OrderID: o.ID,
			From:    from,
			To:      target,
			ActorID: actor.ActorID(),
			Note:    note,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		s.Events.Notify()
	}
	logging.FromContext(ctx).Info("order_status_changed", "order_id", order.ID, "from", from, "to", target, "actor", actor.ActorID(), "role", actor.Role)
	return order, nil
}

// GetOrder returns an order to its owner or to staff.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, viewer Identity) (*models.Order, error) {
	o, err := s.Repo.FindOrder(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if viewer.Role.IsStaff() {
		return o, nil
	}
	if viewer.UserID == nil || o.UserID == nil || *o.UserID != *viewer.UserID {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	}
	return o, nil
}

func (s *OrderService) ListCustomerOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.Repo.ListOrdersByUser(ctx, userID, limit, offset)
}

// ListOrders is the staff board view.
func (s *OrderService) ListOrders(ctx context.Context, f repo.OrderFilter) ([]models.Order, error) {
	return s.Repo.ListOrders(ctx, f)
}

type OperationalUpdate struct {
	Comment              *string `json:"comment"`
	EstimatedPrepMinutes *int    `json:"estimated_prep_minutes"`
}

// UpdateOperational changes the kitchen comment and prep estimate. These
// fields do not affect status or money.
func (s *OrderService) UpdateOperational(ctx context.Context, orderID uuid.UUID, in OperationalUpdate) (*models.Order, error) {
	if in.Comment == nil && in.EstimatedPrepMinutes == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if m := in.EstimatedPrepMinutes; m != nil && (*m < 0 || *m > maxPrepMinutes) {
		return nil, fmt.Errorf("%w: estimated_prep_minutes must be between 0 and %d", ErrValidation, maxPrepMinutes)
	}
	if in.Comment != nil {
		c := strings.TrimSpace(*in.Comment)
		in.Comment = &c
	}

	if _, err := s.Repo.FindOrder(ctx, orderID); errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order", ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateOrderOperational(ctx, orderID, in.Comment, in.EstimatedPrepMinutes); err != nil {
		return nil, err
	}
	return s.Repo.FindOrder(ctx, orderID)
}

// ExportCSV writes the filtered orders as CSV in the store's time zone.
func (s *OrderService) ExportCSV(ctx context.Context, w io.Writer, f repo.OrderFilter) error {
	f.Limit, f.Offset = 0, 0
	orders, err := s.Repo.ListOrders(ctx, f)
	if err != nil {
		return err
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return export.WriteOrdersCSV(w, orders, loc)
}

func (s *OrderService) Search(ctx context.Context, query string, from, size int) (search.Results, error) {
	if s.Index == nil {
		return search.Results{}, fmt.Errorf("%w: search is not configured", ErrUnavailable)
	}
	if strings.TrimSpace(query) == "" {
		return search.Results{}, fmt.Errorf("%w: query is required", ErrValidation)
	}
	return s.Index.Search(ctx, query, from, size)
}
