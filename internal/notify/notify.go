// Package notify hands customer notifications to the email service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

const NotificationsTopic = "notifications"

const (
	KindOrderConfirmation = "order_confirmation"
	KindStatusUpdate      = "order_status_update"
)

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, items domain.OrderLines) error
	SendStatusUpdate(ctx context.Context, order *models.Order, status domain.OrderStatus) error
}

// Message is what the email service consumes.
type Message struct {
	Kind          string             `json:"kind"`
	OrderID       string             `json:"order_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerEmail string             `json:"customer_email"`
	Status        domain.OrderStatus `json:"status"`
	Summary       string             `json:"summary,omitempty"`
	Items         domain.OrderLines  `json:"items,omitempty"`
	Total         decimal.Decimal    `json:"total"`
	Currency      string             `json:"currency"`
	Demo          bool               `json:"demo"`
}

func confirmationMessage(order *models.Order, items domain.OrderLines) Message {
	return Message{
		Kind:          KindOrderConfirmation,
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        order.Status,
		Summary:       items.Summary(),
		Items:         items,
		Total:         order.TotalAmount,
		Currency:      order.Currency,
		Demo:          order.Demo,
	}
}

func statusMessage(order *models.Order, status domain.OrderStatus) Message {
	return Message{
		Kind:          KindStatusUpdate,
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        status,
		Total:         order.TotalAmount,
		Currency:      order.Currency,
		Demo:          order.Demo,
	}
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaNotifier struct {
	Writer MessageWriter
}

func (n *KafkaNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order, items domain.OrderLines) error {
	return n.publish(ctx, confirmationMessage(order, items))
}

func (n *KafkaNotifier) SendStatusUpdate(ctx context.Context, order *models.Order, status domain.OrderStatus) error {
	return n.publish(ctx, statusMessage(order, status))
}

func (n *KafkaNotifier) publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(msg.OrderID), Value: data}); err != nil {
		return fmt.Errorf("notify: publish %s: %w", msg.Kind, err)
	}
	return nil
}

// LogNotifier is used when no broker is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, order *models.Order, items domain.OrderLines) error {
	n.Log.Info("notification", "kind", KindOrderConfirmation, "order_id", order.ID, "email", order.CustomerEmail, "summary", items.Summary())
	return nil
}

func (n *LogNotifier) SendStatusUpdate(_ context.Context, order *models.Order, status domain.OrderStatus) error {
	n.Log.Info("notification", "kind", KindStatusUpdate, "order_id", order.ID, "email", order.CustomerEmail, "status", status)
	return nil
}
