package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequirePermission allows the request when the caller holds any of the given
// permission codenames. Administrators pass every check.
func RequirePermission(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if HasPermission(p, perms...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required permission: %s", strings.Join(perms, " or ")))
		}
	}
}

// RequireAdmin restricts a route group to administrators.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil || !p.IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "administrator access required")
			}
			return next(c)
		}
	}
}

func HasPermission(p *Principal, perms ...string) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin {
		return true
	}
	for _, required := range perms {
		for _, granted := range p.Permissions {
			if matchPermission(granted, required) {
				return true
			}
		}
	}
	return false
}

// matchPermission compares "app.codename" permissions; "app.*" grants every
// codename in the app.
func matchPermission(granted, required string) bool {
	if granted == "" || required == "" {
		return false
	}
	if granted == required {
		return true
	}
	gApp, gCode, ok := strings.Cut(granted, ".")
	if !ok {
		return false
	}
	rApp, _, ok := strings.Cut(required, ".")
	return ok && gCode == "*" && gApp == rApp
}
