package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/authz"
	"repairhub/internal/common"
	"repairhub/internal/tokens"
)

// JWTMiddleware validates the bearer token and stashes the verified user
// id, store id and role in the request context. Role and store come from
// the token claims, never from request parameters.
func JWTMiddleware(tokenSvc tokens.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing token")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token format")
			}

			claims, err := tokenSvc.Validate(c.Request().Context(), tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token subject")
			}

			role, ok := authz.ParseRole(claims.Role)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unknown role")
			}

			ctx := context.WithValue(c.Request().Context(), common.UserIDKey, userID)
			ctx = context.WithValue(ctx, common.RoleKey, role)
			if claims.StoreID != "" {
				storeID, err := uuid.Parse(claims.StoreID)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid store id in token")
				}
				ctx = context.WithValue(ctx, common.StoreIDKey, storeID)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}
