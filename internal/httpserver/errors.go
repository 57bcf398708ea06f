package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/payment"
	"github.com/Skotchmaster/food_order/internal/service"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

type errorBody struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Restart bool               `json:"restart,omitempty"`
	Max     int                `json:"max,omitempty"`
	Reason  string             `json:"reason,omitempty"`
	From    domain.OrderStatus `json:"from,omitempty"`
	To      domain.OrderStatus `json:"to,omitempty"`
}

// writeError maps service errors to a status code and logs the failure
// under event. Unknown errors become a 500 without details.
func writeError(c echo.Context, l *slog.Logger, event string, err error) error {
	code, body := classify(err)
	body.Status = "error"
	switch {
	case code >= 500:
		l.Error(event, "status", code, "error", err)
	default:
		l.Warn(event, "status", code, "error", err)
	}
	return c.JSON(code, body)
}

func classify(err error) (int, errorBody) {
	var (
		limit   *service.CartLimitError
		closed  *service.StoreClosedError
		invalid *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &limit):
		return http.StatusConflict, errorBody{Message: service.ErrCartLimitExceeded.Error(), Max: limit.Max}
	case errors.As(err, &closed):
		return http.StatusServiceUnavailable, errorBody{Message: service.ErrStoreClosed.Error(), Reason: closed.Reason}
	case errors.As(err, &invalid):
		return http.StatusConflict, errorBody{Message: "invalid status transition", From: invalid.From, To: invalid.To}
	case service.RequiresRestart(err):
		return http.StatusConflict, errorBody{Message: err.Error(), Restart: true}
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Message: service.ErrRateLimited.Error()}
	case errors.Is(err, service.ErrEmptyCart):
		return http.StatusUnprocessableEntity, errorBody{Message: service.ErrEmptyCart.Error()}
	case errors.Is(err, service.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrPaymentDeclined):
		return http.StatusPaymentRequired, errorBody{Message: service.ErrPaymentDeclined.Error()}
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, errorBody{Message: "invalid signature"}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, errorBody{Message: err.Error()}
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Message: "internal error"}
	}
}

func badRequest(c echo.Context, l *slog.Logger, event, msg string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "error", err)
	return c.JSON(http.StatusBadRequest, errorBody{Status: "error", Message: msg})
}

// httpErrorHandler renders errors returned by middleware, such as the
// session and CSRF checks, in the same shape as handler errors.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	l := logging.FromContext(c.Request().Context())

	code, msg := http.StatusInternalServerError, "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= 500 {
		l.Error("http_error", "status", code, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorBody{Status: "error", Message: msg})
	}
	if err != nil {
		l.Error("http_error_write", "error", err)
	}
}
