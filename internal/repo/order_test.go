package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/testutil"
)

func newOrder(ref string, status domain.OrderStatus, demo bool) *models.Order {
	at := time.Now().UTC()
	return &models.Order{
		Lines: domain.OrderLines{
			domain.NewLineItem("v1", "Margherita", "thin", "large", decimal.NewFromInt(50), 1, nil, nil),
		},
		TotalAmount:      decimal.NewFromInt(69),
		Currency:         "ILS",
		CustomerName:     "Dana",
		PaymentReference: ref,
		Status:           status,
		StatusHistory:    domain.NewConfirmedHistory(at, ""),
		Demo:             demo,
	}
}

func TestCreateOrder_RoundTripsSnapshot(t *testing.T) {
	r := New(testutil.NewDB(t))
	ctx := context.Background()

	o := newOrder("pi_1", domain.StatusConfirmed, false)
	require.NoError(t, r.CreateOrder(ctx, o))

	got, err := r.FindOrderByPaymentReference(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Margherita", got.Lines[0].ProductName)
	assert.True(t, got.Lines[0].LineTotal.Equal(decimal.NewFromInt(50)))
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, domain.StatusConfirmed, got.StatusHistory[1].Status)
}

func TestCreateOrder_DuplicatePaymentReference(t *testing.T) {
	r := New(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, r.CreateOrder(ctx, newOrder("pi_dup", domain.StatusConfirmed, false)))
	err := r.CreateOrder(ctx, newOrder("pi_dup", domain.StatusConfirmed, false))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestSaveOrderStatus_WritesOnlyStatusColumns(t *testing.T) {
	r := New(testutil.NewDB(t))
	ctx := context.Background()

	o := newOrder("pi_2", domain.StatusConfirmed, false)
	require.NoError(t, r.CreateOrder(ctx, o))

	at := time.Now().UTC()
	o.Status = domain.StatusPreparing
	o.StatusHistory = o.StatusHistory.Append(domain.StatusEntry{Status: domain.StatusPreparing, At: at})
	o.StampStatusTime(domain.StatusPreparing, at)
	o.TotalAmount = decimal.NewFromInt(1)
	require.NoError(t, r.SaveOrderStatus(ctx, o))

	got, err := r.FindOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, got.Status)
	assert.Len(t, got.StatusHistory, 3)
	assert.NotNil(t, got.PreparingAt)
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(69)))
}

func TestListOrders_Filters(t *testing.T) {
	r := New(testutil.NewDB(t))
	ctx := context.Background()
	userID := uuid.New()

	a := newOrder("pi_a", domain.StatusConfirmed, false)
	a.UserID = &userID
	require.NoError(t, r.CreateOrder(ctx, a))
	require.NoError(t, r.CreateOrder(ctx, newOrder("pi_b", domain.StatusReady, false)))
	require.NoError(t, r.CreateOrder(ctx, newOrder("pi_c", domain.StatusReady, true)))

	ready, err := r.ListOrders(ctx, OrderFilter{Statuses: []domain.OrderStatus{domain.StatusReady}})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "pi_b", ready[0].PaymentReference)

	all, err := r.ListOrders(ctx, OrderFilter{IncludeDemo: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	future := time.Now().UTC().Add(time.Hour)
	none, err := r.ListOrders(ctx, OrderFilter{From: &future})
	require.NoError(t, err)
	assert.Empty(t, none)

	mine, err := r.ListOrdersByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	comment := "ring twice"
	prep := 25
	require.NoError(t, r.UpdateOrderOperational(ctx, a.ID, &comment, &prep))
	got, err := r.FindOrder(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ring twice", got.Comment)
	require.NotNil(t, got.EstimatedPrepMinutes)
	assert.Equal(t, 25, *got.EstimatedPrepMinutes)
}
