package guard

import (
	"context"

	"repairhub/internal/session"
)

// AdminGuard gates admin surfaces. The platform-operator check is strictly
// stronger than the admin check and runs after it.
type AdminGuard struct{}

func (AdminGuard) Evaluate(ctx context.Context, route Route, src Source) Decision {
	if !route.RequiresAdmin && !route.RequiresSuperAdmin {
		return Allow()
	}

	principal := src.Principal()

	if route.RequiresAdmin && !principal.IsStoreAdmin() {
		return RedirectTo(session.DashboardLanding)
	}

	if route.RequiresSuperAdmin && !principal.IsPlatformOperator() {
		return RedirectTo(session.DashboardLanding)
	}

	return Allow()
}
