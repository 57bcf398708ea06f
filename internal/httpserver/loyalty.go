package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/models"
	"github.com/Skotchmaster/food_order/internal/service"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

type LoyaltyHTTP struct {
	Svc *service.LoyaltyService
}

func (h *LoyaltyHTTP) Balance(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "loyalty.balance")

	id := identity(c)
	balance, err := h.Svc.Balance(ctx, *id.UserID)
	if err != nil {
		return writeError(c, l, "loyalty_balance_error", err)
	}
	offset, limit := pagination(c)
	history, err := h.Svc.History(ctx, *id.UserID, limit, offset)
	if err != nil {
		return writeError(c, l, "loyalty_balance_error", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance": balance, "transactions": history})
}

func (h *LoyaltyHTTP) Preview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "loyalty.preview")

	var req struct {
		Points int64 `json:"points"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "loyalty_preview_error", "invalid body", err)
	}

	id := identity(c)
	res, err := h.Svc.PreviewRedemption(ctx, *id.UserID, req.Points)
	if err != nil {
		return writeError(c, l, "loyalty_preview_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *LoyaltyHTTP) Adjust(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "loyalty.adjust")

	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return badRequest(c, l, "loyalty_adjust_error", "invalid user id", err)
	}
	var req struct {
		Points int64  `json:"points"`
		Kind   string `json:"kind"`
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "loyalty_adjust_error", "invalid body", err)
	}
	kind := models.LoyaltyKind(req.Kind)
	if kind == "" {
		kind = models.LoyaltyAdjustment
	}

	admin := identity(c)
	balance, err := h.Svc.Adjust(ctx, userID, *admin.UserID, req.Points, kind, req.Reason)
	if err != nil {
		return writeError(c, l, "loyalty_adjust_error", err)
	}

	l.Info("loyalty_adjusted", "user_id", userID, "points", req.Points, "kind", kind, "actor", admin.ActorID())
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "balance": balance})
}
