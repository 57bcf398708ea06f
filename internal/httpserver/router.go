package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/domain"
	middleware "github.com/Skotchmaster/food_order/pkg/middleware/auth"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	CartHandler     *CartHTTP
	CheckoutHandler *CheckoutHTTP
	OrderHandler    *OrderHTTP
	LoyaltyHandler  *LoyaltyHTTP
	Session         *middleware.SessionMiddleware
	DB              Pinger
}

const WebhookPath = "/webhooks/payment"

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = httpErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})

	if d.OrderHandler.Location == nil {
		d.OrderHandler.Location = time.UTC
	}

	e.POST(WebhookPath, d.CheckoutHandler.Webhook)

	api := e.Group("/api/v1")
	api.Use(d.Session.OptionalAuth)

	api.GET("/store/status", d.CheckoutHandler.StoreStatus)

	cart := api.Group("/cart")
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PATCH("/items/:id", d.CartHandler.SetQuantity)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.POST("/coupon", d.CartHandler.ApplyCoupon)
	cart.DELETE("/coupon", d.CartHandler.RemoveCoupon)
	cart.POST("/merge", d.CartHandler.Merge, d.Session.RequireAuth, requireUser)

	api.POST("/checkout", d.CheckoutHandler.Begin)
	api.POST("/checkout/complete", d.CheckoutHandler.Complete)

	orders := api.Group("/orders", d.Session.RequireAuth, requireUser)
	orders.GET("", d.OrderHandler.List)
	orders.GET("/:id", d.OrderHandler.Get)
	orders.POST("/:id/reorder", d.OrderHandler.Reorder)

	loyalty := api.Group("/loyalty", d.Session.RequireAuth, requireUser)
	loyalty.GET("", d.LoyaltyHandler.Balance)
	loyalty.POST("/preview", d.LoyaltyHandler.Preview)

	staff := api.Group("/staff", d.Session.RequireRole(
		string(domain.RoleKitchen), string(domain.RoleCourier), string(domain.RoleAdmin),
	), requireUser)
	staff.GET("/orders", d.OrderHandler.Board)
	staff.GET("/orders/:id", d.OrderHandler.Get)
	staff.POST("/orders/:id/status", d.OrderHandler.Transition)

	admin := api.Group("/admin", d.Session.RequireAdmin, requireUser)
	admin.PATCH("/orders/:id", d.OrderHandler.UpdateOperational)
	admin.GET("/orders/export.csv", d.OrderHandler.ExportCSV)
	admin.GET("/orders/search", d.OrderHandler.Search)
	admin.POST("/loyalty/:user_id/adjust", d.LoyaltyHandler.Adjust)
}

// requireUser rejects sessions whose subject is not a user id.
func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if identity(c).UserID == nil {
			return c.JSON(http.StatusUnauthorized, errorBody{Status: "error", Message: "unauthorized"})
		}
		return next(c)
	}
}
