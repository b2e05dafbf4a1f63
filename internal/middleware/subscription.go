package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/common"
	"repairhub/internal/models"
	"repairhub/internal/subscription"
)

// SnapshotFetcher is the slice of the subscription resolver this middleware
// needs.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, storeID uuid.UUID) (models.SubscriptionSnapshot, error)
}

// RequireActiveSubscription gates subscription-dependent routes on the
// store's billing snapshot. Owners and admins pass regardless of billing
// state so they can reach the upgrade flow; everyone else needs an active
// subscription. Any failure reading the snapshot denies (fail closed).
func RequireActiveSubscription(fetcher SnapshotFetcher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			role, ok := common.GetRoleFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing role")
			}
			if role.IsStoreAdmin() {
				return next(c)
			}

			storeID, ok := common.GetStoreIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusPaymentRequired, "No active subscription")
			}

			snap, err := fetcher.Fetch(ctx, storeID)
			if err != nil || !subscription.IsActive(snap) {
				return echo.NewHTTPError(http.StatusPaymentRequired, "No active subscription")
			}
			return next(c)
		}
	}
}
