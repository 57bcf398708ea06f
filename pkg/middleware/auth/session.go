package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/food_order/pkg/authclient"
	"github.com/Skotchmaster/food_order/pkg/tokens"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Refresher rotates an expired access token through the auth service.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken, accessToken string) (*authclient.RefreshResponse, error)
}

type SessionMiddleware struct {
	JWTSecret  []byte
	AuthClient Refresher
}

func NewSessionMiddleware(secret []byte, authClient Refresher) *SessionMiddleware {
	return &SessionMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

// OptionalAuth attaches the session when a valid one is present and lets
// guests through otherwise.
func (m *SessionMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.resolve(c)
		if err == nil && claims != nil {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func (m *SessionMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *SessionMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireRole("admin")(next)
}

// RequireRole admits only sessions whose role claim is one of roles.
func (m *SessionMiddleware) RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
			if !slices.Contains(roles, claims.Role) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return nil
		})
	}
}

func (m *SessionMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.resolve(c)
		if err != nil {
			return err
		}
		if claims == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}
		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				return validationErr
			}
		}
		setUserContext(c, claims)
		return next(c)
	}
}

// resolve returns nil claims without error when no session cookie is sent.
func (m *SessionMiddleware) resolve(c echo.Context) (*tokens.AccessClaims, error) {
	if uid, ok := c.Get(ContextUserID).(string); ok && uid != "" {
		role, _ := c.Get(ContextRole).(string)
		return &tokens.AccessClaims{Role: role, RegisteredClaims: jwt.RegisteredClaims{Subject: uid}}, nil
	}

	accessCookie, err := c.Cookie(tokens.AccessCookie)
	if err != nil || accessCookie.Value == "" {
		return nil, nil
	}

	claims, err := tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
	if err == nil {
		return claims, nil
	}

	if !errors.Is(err, jwt.ErrTokenExpired) || m.AuthClient == nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	refreshCookie, rErr := c.Cookie(tokens.RefreshCookie)
	if rErr != nil || refreshCookie.Value == "" {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	refreshResp, refErr := m.AuthClient.RefreshTokens(c.Request().Context(), refreshCookie.Value, accessCookie.Value)
	if refErr != nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh failed")
	}

	newClaims, pErr := tokens.AccessClaimsFromToken(refreshResp.AccessToken, m.JWTSecret)
	if pErr != nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
	}

	c.SetCookie(tokens.CreateCookie(tokens.AccessCookie, refreshResp.AccessToken, "/", time.Unix(refreshResp.AccessExp, 0)))
	c.SetCookie(tokens.CreateCookie(tokens.RefreshCookie, refreshResp.RefreshToken, "/", time.Unix(refreshResp.RefreshExp, 0)))

	return newClaims, nil
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(tokens.DeleteCookie(tokens.AccessCookie, "/"))
	c.SetCookie(tokens.DeleteCookie(tokens.RefreshCookie, "/"))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(ContextUserID, claims.Subject)
	c.Set(ContextRole, claims.Role)
}
