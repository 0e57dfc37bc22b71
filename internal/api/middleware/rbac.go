package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RBAC allows a route only for the listed roles. Auth must run first; it
// stores the caller's role in the context, and a missing role fails closed.
func RBAC(roles ...string) echo.MiddlewareFunc {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := set[role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
