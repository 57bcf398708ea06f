package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusPreparing  OrderStatus = "PREPARING"
	StatusReady      OrderStatus = "READY"
	StatusDelivering OrderStatus = "DELIVERING"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
	// StatusSucceeded is kept for orders written before DELIVERED existed.
	StatusSucceeded OrderStatus = "SUCCEEDED"
)

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrTransitionForbidden = errors.New("transition not allowed for role")
	ErrUnknownStatus       = errors.New("unknown order status")
)

var orderStateTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusPreparing, StatusCancelled},
	StatusPreparing:  {StatusReady, StatusCancelled},
	StatusReady:      {StatusDelivering, StatusPreparing, StatusCancelled},
	StatusDelivering: {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusSucceeded:  {StatusDelivered},
}

var notifyingStatuses = []OrderStatus{
	StatusConfirmed,
	StatusPreparing,
	StatusDelivering,
	StatusDelivered,
	StatusCancelled,
}

// InvalidTransitionError reports the attempted pair so callers can show it.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := orderStateTransitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStateTransitions[s]
	return ok
}

func CanTransition(from, to OrderStatus) bool {
	next, ok := orderStateTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// AllowedTransitions returns a copy of the statuses reachable from from.
func AllowedTransitions(from OrderStatus) []OrderStatus {
	return slices.Clone(orderStateTransitions[from])
}

func IsTerminal(s OrderStatus) bool {
	next, ok := orderStateTransitions[s]
	return ok && len(next) == 0
}

// CheckTransition returns an *InvalidTransitionError when to is not reachable from from.
func CheckTransition(from, to OrderStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// NotifiesCustomer reports whether entering s should reach the customer.
func NotifiesCustomer(s OrderStatus) bool {
	return slices.Contains(notifyingStatuses, s)
}
