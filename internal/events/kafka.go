package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const OrderEventsTopic = "order_events"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// KafkaForwarder republishes every event for other services, keyed by
// aggregate id so one order's events stay in one partition.
type KafkaForwarder struct {
	Writer MessageWriter
}

func (f *KafkaForwarder) Handle(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = f.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: write %s: %w", ev.Type, err)
	}
	return nil
}
