package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []OrderStatus{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
	StatusDelivering, StatusDelivered, StatusCancelled, StatusSucceeded,
}

func TestCanTransition_Table(t *testing.T) {
	t.Parallel()

	allowed := map[OrderStatus][]OrderStatus{
		StatusPending:    {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusPreparing, StatusCancelled},
		StatusPreparing:  {StatusReady, StatusCancelled},
		StatusReady:      {StatusDelivering, StatusPreparing, StatusCancelled},
		StatusDelivering: {StatusDelivered, StatusCancelled},
		StatusSucceeded:  {StatusDelivered},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTerminal(StatusDelivered))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusSucceeded))
	assert.False(t, IsTerminal(StatusReady))
	assert.Empty(t, AllowedTransitions(StatusDelivered))
}

func TestCheckTransition_ReportsPair(t *testing.T) {
	t.Parallel()

	err := CheckTransition(StatusReady, StatusConfirmed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusReady, ite.From)
	assert.Equal(t, StatusConfirmed, ite.To)

	assert.NoError(t, CheckTransition(StatusReady, StatusDelivering))
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	st, err := ParseStatus(" preparing ")
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, st)

	_, err = ParseStatus("LOST")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestNotifiesCustomer(t *testing.T) {
	t.Parallel()

	assert.True(t, NotifiesCustomer(StatusConfirmed))
	assert.True(t, NotifiesCustomer(StatusCancelled))
	assert.False(t, NotifiesCustomer(StatusReady))
	assert.False(t, NotifiesCustomer(StatusPending))
}

func TestRoleMayTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role Role
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{"kitchen starts", RoleKitchen, StatusConfirmed, StatusPreparing, true},
		{"kitchen finishes", RoleKitchen, StatusPreparing, StatusReady, true},
		{"kitchen remake", RoleKitchen, StatusReady, StatusPreparing, true},
		{"kitchen cannot dispatch", RoleKitchen, StatusReady, StatusDelivering, false},
		{"kitchen cannot cancel", RoleKitchen, StatusConfirmed, StatusCancelled, false},
		{"courier picks up", RoleCourier, StatusReady, StatusDelivering, true},
		{"courier delivers", RoleCourier, StatusDelivering, StatusDelivered, true},
		{"courier closes legacy", RoleCourier, StatusSucceeded, StatusDelivered, true},
		{"courier cannot cook", RoleCourier, StatusConfirmed, StatusPreparing, false},
		{"admin cancels", RoleAdmin, StatusDelivering, StatusCancelled, true},
		{"customer blocked", RoleCustomer, StatusPending, StatusCancelled, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RoleMayTransition(tt.role, tt.from, tt.to))
		})
	}
}
