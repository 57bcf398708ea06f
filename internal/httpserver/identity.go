package httpserver

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/internal/domain"
	"github.com/Skotchmaster/food_order/internal/service"
	middleware "github.com/Skotchmaster/food_order/pkg/middleware/auth"
	"github.com/Skotchmaster/food_order/pkg/tokens"
)

const cartTokenTTL = 30 * 24 * time.Hour

// identity collects what the session middleware and the cart cookie say
// about the caller. A malformed user id is treated as a guest.
func identity(c echo.Context) service.Identity {
	id := service.Identity{IP: c.RealIP(), Role: domain.RoleCustomer}

	if s, ok := c.Get(middleware.ContextUserID).(string); ok && s != "" {
		if uid, err := uuid.Parse(s); err == nil {
			id.UserID = &uid
		}
	}
	if r, ok := c.Get(middleware.ContextRole).(string); ok && r != "" && id.UserID != nil {
		id.Role = domain.ParseRole(r)
	}
	if ck, err := c.Cookie(tokens.CartCookie); err == nil {
		id.CartToken = ck.Value
	}
	return id
}

// setCartToken stores a newly issued cart token; empty means unchanged.
func setCartToken(c echo.Context, token string) {
	if token == "" {
		return
	}
	c.SetCookie(tokens.CreateCookie(tokens.CartCookie, token, "/", time.Now().Add(cartTokenTTL)))
}
