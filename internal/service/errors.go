package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation")  // 400
	ErrNotFound    = errors.New("not found")   // 404
	ErrConflict    = errors.New("conflict")    // 409
	ErrForbidden   = errors.New("forbidden")   // 403
	ErrUnavailable = errors.New("unavailable") // 503

	ErrCartLimitExceeded  = errors.New("cart item limit exceeded")
	ErrStoreClosed        = errors.New("store is not accepting orders")
	ErrRateLimited        = errors.New("too many orders, try again later")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrCartNotFound       = errors.New("cart not found, restart checkout")
	ErrCartChanged        = errors.New("cart changed during checkout, restart checkout")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
)

type CartLimitError struct {
	Max int
}

func (e *CartLimitError) Error() string {
	return fmt.Sprintf("%s: at most %d items", ErrCartLimitExceeded, e.Max)
}

func (e *CartLimitError) Unwrap() error { return ErrCartLimitExceeded }

type StoreClosedError struct {
	Reason string
}

func (e *StoreClosedError) Error() string {
	if e.Reason == "" {
		return ErrStoreClosed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrStoreClosed, e.Reason)
}

func (e *StoreClosedError) Unwrap() error { return ErrStoreClosed }

// RequiresRestart reports whether the client must begin checkout again
// rather than retry the same step.
func RequiresRestart(err error) bool {
	return errors.Is(err, ErrCartNotFound) || errors.Is(err, ErrCartChanged)
}
