package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireEmployee aborts the request with 403 unless the authenticated
// principal is an employee. It assumes JWTAuth ran earlier in the chain.
// Reservation endpoints do their own finer-grained checks inside the
// transaction; this gate is for surfaces that are employee-only in their
// entirety, such as restaurant provisioning.
func RequireEmployee() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok || !p.IsEmployee {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
