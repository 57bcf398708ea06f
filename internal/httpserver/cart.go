package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/service"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) respond(c echo.Context, code int, view *service.CartView) error {
	setCartToken(c, view.IssuedToken)
	return c.JSON(code, view)
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	view, err := h.Svc.GetCurrentCart(ctx, identity(c))
	if err != nil {
		return writeError(c, l, "get_cart_error", err)
	}
	return h.respond(c, http.StatusOK, view)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart.item")

	var req service.AddItemInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "add_cart_item_error", "invalid body", err)
	}

	view, err := h.Svc.AddItem(ctx, identity(c), req)
	if err != nil {
		return writeError(c, l, "add_cart_item_error", err)
	}

	l.Info("cart_item_added", "cart_id", view.ID, "product_item_id", req.ProductItemID)
	return h.respond(c, http.StatusCreated, view)
}

func (h *CartHTTP) SetQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "set.cart.quantity")

	itemID, err := uuidParam(c, "id")
	if err != nil {
		return badRequest(c, l, "set_cart_quantity_error", "invalid item id", err)
	}
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return badRequest(c, l, "set_cart_quantity_error", "quantity is required", err)
	}

	view, err := h.Svc.SetItemQuantity(ctx, identity(c), itemID, *req.Quantity)
	if err != nil {
		return writeError(c, l, "set_cart_quantity_error", err)
	}
	return h.respond(c, http.StatusOK, view)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart.item")

	itemID, err := uuidParam(c, "id")
	if err != nil {
		return badRequest(c, l, "remove_cart_item_error", "invalid item id", err)
	}

	view, err := h.Svc.RemoveItem(ctx, identity(c), itemID)
	if err != nil {
		return writeError(c, l, "remove_cart_item_error", err)
	}
	return h.respond(c, http.StatusOK, view)
}

func (h *CartHTTP) ApplyCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "apply.coupon")

	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil || req.Code == "" {
		return badRequest(c, l, "apply_coupon_error", "code is required", err)
	}

	view, err := h.Svc.ApplyCoupon(ctx, identity(c), req.Code)
	if err != nil {
		return writeError(c, l, "apply_coupon_error", err)
	}
	return h.respond(c, http.StatusOK, view)
}

func (h *CartHTTP) RemoveCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.coupon")

	view, err := h.Svc.RemoveCoupon(ctx, identity(c))
	if err != nil {
		return writeError(c, l, "remove_coupon_error", err)
	}
	return h.respond(c, http.StatusOK, view)
}

// Merge is called by the client right after login.
func (h *CartHTTP) Merge(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "merge.cart")

	view, err := h.Svc.MergeGuestCart(ctx, identity(c))
	if err != nil {
		return writeError(c, l, "merge_cart_error", err)
	}

	l.Info("cart_merged", "cart_id", view.ID, "quantity", view.TotalQuantity)
	return h.respond(c, http.StatusOK, view)
}
