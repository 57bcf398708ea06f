package httpserver

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/service"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

const maxWebhookBody = 1 << 16

type CheckoutHTTP struct {
	Svc   *service.CheckoutService
	Guard *service.StoreGuard
}

func (h *CheckoutHTTP) StoreStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Guard.IsAcceptingOrders(c.Request().Context()))
}

func (h *CheckoutHTTP) Begin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "begin.checkout")

	var req service.BeginCheckoutInput
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, l, "begin_checkout_error", "invalid body", err)
		}
	}

	res, err := h.Svc.BeginCheckout(ctx, identity(c), req)
	if err != nil {
		return writeError(c, l, "begin_checkout_error", err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *CheckoutHTTP) Complete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complete.checkout")

	var req service.CompleteCheckoutInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "complete_checkout_error", "invalid body", err)
	}

	order, err := h.Svc.CompleteCheckout(ctx, identity(c), req)
	if err != nil {
		return writeError(c, l, "complete_checkout_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "order": order})
}

// Webhook reads the raw body because the signature covers exact bytes.
func (h *CheckoutHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.webhook")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return badRequest(c, l, "payment_webhook_error", "unreadable body", err)
	}
	if len(body) > maxWebhookBody {
		l.Warn("payment_webhook_error", "status", http.StatusRequestEntityTooLarge, "bytes", len(body))
		return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Status: "error", Message: "webhook body too large"})
	}

	res, err := h.Svc.HandlePaymentWebhook(ctx, c.Request().Header, body)
	if err != nil {
		return writeError(c, l, "payment_webhook_error", err)
	}
	return c.JSON(http.StatusOK, res)
}
