package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/common"
	"repairhub/internal/guard"
	"repairhub/internal/session"
)

// appRoutes is the navigable surface of the client app, with the access
// metadata the guard chain evaluates.
var appRoutes = []guard.Route{
	{Path: session.LoginRoute, HideForAuth: true},
	{Path: session.DashboardLanding, RequiresAuth: true},
	{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true, RequiredFeature: "repairs"},
	{Path: "/customers", RequiresAuth: true, RequiresSubscription: true},
	{Path: "/inventory", RequiresAuth: true, RequiresSubscription: true},
	{Path: "/metrics", RequiresAuth: true, RequiresSubscription: true, RequiredFeature: "metrics"},
	{Path: "/settings", RequiresAuth: true, RequiresAdmin: true},
	{Path: "/settings/users", RequiresAuth: true, RequiresAdmin: true},
	{Path: guard.BillingRoute, RequiresAuth: true},
	{Path: session.AdminLanding, RequiresAuth: true, RequiresSuperAdmin: true},
}

// contextSource adapts the verified token claims in the request context to
// the guard chain's session source. The claims are already validated, so
// Ready has nothing left to resolve.
type contextSource struct {
	principal *session.Principal
}

func (s *contextSource) Ready(ctx context.Context) error { return nil }
func (s *contextSource) Principal() *session.Principal   { return s.principal }

// NavigationHandlers answers which app routes the caller may navigate to,
// evaluated through the same guard chain the client runs.
type NavigationHandlers struct {
	chain guard.Chain
}

func NewNavigationHandlers(fetcher guard.SnapshotFetcher) *NavigationHandlers {
	return &NavigationHandlers{chain: guard.NewChain(guard.NewSubscriptionGuard(fetcher))}
}

// RouteDecision is one route's evaluated outcome.
type RouteDecision struct {
	Path       string `json:"path"`
	Allowed    bool   `json:"allowed"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// GetNavigation evaluates every app route for the authenticated caller.
func (h *NavigationHandlers) GetNavigation(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	role, ok := common.GetRoleFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var storeID *uuid.UUID
	if id, ok := common.GetStoreIDFromContext(ctx); ok {
		storeID = &id
	}

	src := &contextSource{principal: &session.Principal{
		ID:      userID,
		Role:    role,
		StoreID: storeID,
	}}

	decisions := make([]RouteDecision, 0, len(appRoutes))
	for _, route := range appRoutes {
		d := h.chain.Evaluate(ctx, route, src)
		decisions = append(decisions, RouteDecision{
			Path:       route.Path,
			Allowed:    d.Allowed,
			RedirectTo: d.Redirect,
		})
	}
	return c.JSON(http.StatusOK, decisions)
}
