package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"repairhub/internal/authz"
	"repairhub/internal/common"
)

// RequireCapability gates a route group on one capability of the caller's
// role. Missing claims deny; an unknown role carries no capabilities, so it
// denies too.
func RequireCapability(check func(authz.CapabilitySet) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := common.GetRoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing role")
			}
			if !check(authz.CapabilitiesFor(role)) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireStoreAdmin admits owners, admins and platform operators only.
func RequireStoreAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := common.GetRoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing role")
			}
			if !role.IsStoreAdmin() && !role.IsPlatformOperator() {
				return echo.NewHTTPError(http.StatusForbidden, "Administrator access required")
			}
			return next(c)
		}
	}
}

// RequirePlatformOperator admits only the platform-level role.
func RequirePlatformOperator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := common.GetRoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing role")
			}
			if !role.IsPlatformOperator() {
				return echo.NewHTTPError(http.StatusForbidden, "Operator access required")
			}
			return next(c)
		}
	}
}
