package guard

import (
	"context"

	"github.com/google/uuid"

	"repairhub/internal/models"
	"repairhub/internal/subscription"
)

// BillingRoute is where callers without an active entitlement land.
const BillingRoute = "/subscription"

// SnapshotFetcher is the slice of the subscription resolver the guard needs.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, storeID uuid.UUID) (models.SubscriptionSnapshot, error)
}

// SubscriptionGuard gates subscription-dependent routes on the denormalized
// billing snapshot. Administrators are never blocked by billing state.
// Every failure path redirects to the billing page; the guard never allows
// on error.
type SubscriptionGuard struct {
	fetcher SnapshotFetcher
}

func NewSubscriptionGuard(fetcher SnapshotFetcher) *SubscriptionGuard {
	return &SubscriptionGuard{fetcher: fetcher}
}

func (g *SubscriptionGuard) Evaluate(ctx context.Context, route Route, src Source) Decision {
	if !route.RequiresSubscription {
		return Allow()
	}

	if src.Principal() == nil {
		return loginRedirect(route.Path)
	}

	// The snapshot check needs the role from a finished session load.
	if err := src.Ready(ctx); err != nil {
		return RedirectTo(BillingRoute)
	}

	principal := src.Principal()
	if principal == nil {
		return loginRedirect(route.Path)
	}
	if principal.IsStoreAdmin() {
		return Allow()
	}

	if principal.StoreID == nil {
		return RedirectTo(BillingRoute)
	}

	snap, err := g.fetcher.Fetch(ctx, *principal.StoreID)
	if err != nil {
		return RedirectTo(BillingRoute)
	}

	if !subscription.IsActive(snap) {
		return RedirectTo(BillingRoute)
	}
	if route.RequiredFeature != "" && !subscription.HasFeature(snap, route.RequiredFeature) {
		return RedirectTo(BillingRoute)
	}

	return Allow()
}
