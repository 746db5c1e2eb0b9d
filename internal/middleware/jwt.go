// Package middleware contains reusable HTTP middleware: JWT
// authentication, the employee gate, Redis rate limiting and response
// caching.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/dinetab/table-reservation/internal/model"
)

// principalKey is the echo context key the authenticated principal is
// stored under.
const principalKey = "principal"

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and materializes its claims into a model.Principal for handlers to pick
// up via middleware.PrincipalFrom. Requests without a valid token never
// reach the handler, so the reservation core can trust the principal it
// is handed.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			p := model.Principal{}
			if v, ok := claims["username"].(string); ok {
				p.Username = v
			}
			if v, ok := claims["email"].(string); ok {
				p.Email = v
			}
			if v, ok := claims["is_employee"].(bool); ok {
				p.IsEmployee = v
			}
			if p.Username == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(principalKey, p)
			if sub, ok := claims["sub"].(float64); ok {
				c.Set("user_id", uint64(sub))
			}
			return next(c)
		}
	}
}

// PrincipalFrom extracts the authenticated principal stored by JWTAuth.
// The boolean is false when the middleware did not run (or rejected the
// request), which handlers should treat as unauthenticated.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// UserIDFrom extracts the numeric account id stored by JWTAuth.
func UserIDFrom(c echo.Context) (uint64, bool) {
	id, ok := c.Get("user_id").(uint64)
	return id, ok
}
