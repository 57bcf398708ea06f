package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

type recordingWriter struct{ msgs []kafka.Message }

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		Status:        domain.StatusConfirmed,
		TotalAmount:   decimal.RequireFromString("138.62"),
		Currency:      "ILS",
		Lines: domain.OrderLines{
			domain.NewLineItem("v1", "Margherita", "", "", decimal.NewFromInt(50), 2, nil, nil),
		},
	}
}

func TestKafkaNotifier_Confirmation(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	n := &KafkaNotifier{Writer: w}
	o := sampleOrder()

	require.NoError(t, n.SendOrderConfirmation(context.Background(), o, o.Lines))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, o.ID.String(), string(w.msgs[0].Key))

	var m Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &m))
	assert.Equal(t, KindOrderConfirmation, m.Kind)
	assert.Equal(t, "2x Margherita", m.Summary)
	assert.Equal(t, "dana@example.com", m.CustomerEmail)
	assert.True(t, m.Total.Equal(o.TotalAmount))
}

func TestKafkaNotifier_StatusUpdate(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	n := &KafkaNotifier{Writer: w}

	require.NoError(t, n.SendStatusUpdate(context.Background(), sampleOrder(), domain.StatusDelivering))

	var m Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &m))
	assert.Equal(t, KindStatusUpdate, m.Kind)
	assert.Equal(t, domain.StatusDelivering, m.Status)
	assert.Empty(t, m.Items)
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := &LogNotifier{Log: slog.New(slog.NewJSONHandler(&buf, nil))}
	o := sampleOrder()

	require.NoError(t, n.SendStatusUpdate(context.Background(), o, domain.StatusCancelled))
	assert.Contains(t, buf.String(), `"status":"CANCELLED"`)
}
