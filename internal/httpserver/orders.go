package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/service"
	"github.com/Skotchmaster/food_order/pkg/logging"
)

type OrderHTTP struct {
	Svc      *service.OrderService
	Cart     *service.CartService
	Location *time.Location
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.orders")

	id := identity(c)
	offset, limit := pagination(c)
	orders, err := h.Svc.ListCustomerOrders(ctx, *id.UserID, limit, offset)
	if err != nil {
		return writeError(c, l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.order")

	orderID, err := uuidParam(c, "id")
	if err != nil {
		return badRequest(c, l, "get_order_error", "invalid order id", err)
	}
	order, err := h.Svc.GetOrder(ctx, orderID, identity(c))
	if err != nil {
		return writeError(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) Reorder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reorder")

	orderID, err := uuidParam(c, "id")
	if err != nil {
		return badRequest(c, l, "reorder_error", "invalid order id", err)
	}
	view, err := h.Cart.Reorder(ctx, identity(c), orderID)
	if err != nil {
		return writeError(c, l, "reorder_error", err)
	}

	l.Info("order_reordered", "order_id", orderID, "skipped", len(view.Skipped))
	setCartToken(c, view.IssuedToken)
	return c.JSON(http.StatusOK, view)
}

// Board lists orders for kitchen, courier and admin screens.
func (h *OrderHTTP) Board(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "staff.board")

	f, err := orderFilter(c, h.Location)
	if err != nil {
		return badRequest(c, l, "staff_board_error", err.Error(), err)
	}
	orders, err := h.Svc.ListOrders(ctx, f)
	if err != nil {
		return writeError(c, l, "staff_board_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) Transition(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "transition.order")

	orderID, err := uuidParam(c, "id")
	if err != nil {
		return badRequest(c, l, "transition_order_error", "invalid order id", err)
	}
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "transition_order_error", "invalid body", err)
	}
	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		return badRequest(c, l, "transition_order_error", err.Error(), err)
	}

	order, err := h.Svc.TransitionStatus(ctx, orderID, target, identity(c), req.Note)
	if err != nil {
		return writeError(c, l, "transition_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) UpdateOperational(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update.order")

	orderID, err := uuidParam(c, "id")
	if err != nil {
		return badRequest(c, l, "update_order_error", "invalid order id", err)
	}
	var req service.OperationalUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, l, "update_order_error", "invalid body", err)
	}

	order, err := h.Svc.UpdateOperational(ctx, orderID, req)
	if err != nil {
		return writeError(c, l, "update_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ExportCSV(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "export.orders")

	f, err := orderFilter(c, h.Location)
	if err != nil {
		return badRequest(c, l, "export_orders_error", err.Error(), err)
	}

	var buf bytes.Buffer
	if err := h.Svc.ExportCSV(ctx, &buf, f); err != nil {
		return writeError(c, l, "export_orders_error", err)
	}

	name := fmt.Sprintf("orders-%s.csv", time.Now().In(h.Location).Format(dateLayout))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *OrderHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search.orders")

	offset, limit := pagination(c)
	res, err := h.Svc.Search(ctx, c.QueryParam("q"), offset, limit)
	if err != nil {
		return writeError(c, l, "search_orders_error", err)
	}
	c.Response().Header().Set("X-Total-Count", strconv.FormatInt(res.Total, 10))
	return c.JSON(http.StatusOK, res)
}
