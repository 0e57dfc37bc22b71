package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

// ctxClaims extracts the auth claims injected by the Auth middleware and
// performs a fast-fail check before any service call:
//   - role must be non-empty (presence proves the middleware ran).
//   - customer role requires a non-empty client_id; without it the JWT is
//     structurally valid but operationally unusable, so reject with 401.
func ctxClaims(c echo.Context) (role, clientID string, err error) {
	role, _ = c.Get("role").(string)
	if role == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	clientID, _ = c.Get("client_id").(string)
	if role == domain.RoleCustomer && clientID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "token missing client identity")
	}

	return role, clientID, nil
}
