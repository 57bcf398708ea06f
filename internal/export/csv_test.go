package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
)

func TestWriteOrdersCSV(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("IDT", 3*60*60)
	o := models.Order{
		ID:               uuid.MustParse("7f1f4a52-0a43-4b35-9d3f-5f1c2c6b7a10"),
		CreatedAt:        time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC),
		CustomerName:     "Dana, Levi",
		CustomerEmail:    "dana@example.com",
		CustomerPhone:    "050-1234567",
		Address:          "Herzl 1",
		TotalAmount:      decimal.RequireFromString("138.6"),
		Status:           domain.StatusDelivered,
		PaymentReference: "pi_1",
		Demo:             true,
		Lines: domain.OrderLines{
			domain.NewLineItem("v1", "Margherita", "thin", "", decimal.NewFromInt(50), 2, nil, nil),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrdersCSV(&buf, []models.Order{o}, loc))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, orderColumns, rows[0])
	assert.Equal(t, []string{
		"7f1f4a52-0a43-4b35-9d3f-5f1c2c6b7a10", "2024-05-02", "00:30", "Dana, Levi",
		"dana@example.com", "050-1234567", "Herzl 1", "2x Margherita (thin)",
		"138.60", "DELIVERED", "pi_1", "true",
	}, rows[1])
}
