package guard

import (
	"context"

	"repairhub/internal/session"
)

// AuthGuard gates authenticated routes and keeps signed-in users off the
// login/register pages.
type AuthGuard struct{}

func (AuthGuard) Evaluate(ctx context.Context, route Route, src Source) Decision {
	principal := src.Principal()

	if principal != nil && route.HideForAuth {
		return RedirectTo(session.DashboardLanding)
	}

	if principal == nil && route.RequiresAuth {
		return loginRedirect(route.Path)
	}

	return Allow()
}
