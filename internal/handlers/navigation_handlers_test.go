package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"repairhub/internal/authz"
	"repairhub/internal/common"
	"repairhub/internal/guard"
	"repairhub/internal/models"
	"repairhub/internal/session"
)

// stubSnapshotFetcher returns a fixed snapshot or error.
type stubSnapshotFetcher struct {
	snap models.SubscriptionSnapshot
	err  error
}

func (f *stubSnapshotFetcher) Fetch(ctx context.Context, storeID uuid.UUID) (models.SubscriptionSnapshot, error) {
	return f.snap, f.err
}

type NavigationHandlersTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	storeID uuid.UUID
	userID  uuid.UUID
}

func (suite *NavigationHandlersTestSuite) SetupTest() {
	suite.echo = echo.New()
	suite.storeID = uuid.New()
	suite.userID = uuid.New()
}

func TestNavigationHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(NavigationHandlersTestSuite))
}

func (suite *NavigationHandlersTestSuite) request(role *authz.Role, withStore bool) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/navigation", nil)
	ctx := req.Context()
	if role != nil {
		ctx = context.WithValue(ctx, common.UserIDKey, suite.userID)
		ctx = context.WithValue(ctx, common.RoleKey, *role)
		if withStore {
			ctx = context.WithValue(ctx, common.StoreIDKey, suite.storeID)
		}
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return suite.echo.NewContext(req, rec), rec
}

func (suite *NavigationHandlersTestSuite) decisions(rec *httptest.ResponseRecorder) map[string]RouteDecision {
	var list []RouteDecision
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	byPath := make(map[string]RouteDecision, len(list))
	for _, d := range list {
		byPath[d.Path] = d
	}
	return byPath
}

func (suite *NavigationHandlersTestSuite) TestGetNavigation_Unauthenticated() {
	h := NewNavigationHandlers(&stubSnapshotFetcher{})
	c, _ := suite.request(nil, false)

	err := h.GetNavigation(c)
	httpErr, ok := err.(*echo.HTTPError)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), http.StatusUnauthorized, httpErr.Code)
}

func (suite *NavigationHandlersTestSuite) TestGetNavigation_TechnicianWithActiveSubscription() {
	h := NewNavigationHandlers(&stubSnapshotFetcher{snap: models.SubscriptionSnapshot{
		Status:   models.SubscriptionActive,
		Features: []string{"basic", "repairs"},
	}})
	role := authz.RoleTechnician
	c, rec := suite.request(&role, true)

	suite.Require().NoError(h.GetNavigation(c))
	byPath := suite.decisions(rec)

	assert.True(suite.T(), byPath["/repairs"].Allowed)
	assert.True(suite.T(), byPath["/dashboard"].Allowed)
	// Feature not in the plan.
	assert.Equal(suite.T(), guard.BillingRoute, byPath["/metrics"].RedirectTo)
	// Role short of admin.
	assert.Equal(suite.T(), session.DashboardLanding, byPath["/settings"].RedirectTo)
	assert.Equal(suite.T(), session.DashboardLanding, byPath[session.AdminLanding].RedirectTo)
	// Signed-in users are kept off the login page.
	assert.Equal(suite.T(), session.DashboardLanding, byPath[session.LoginRoute].RedirectTo)
}

func (suite *NavigationHandlersTestSuite) TestGetNavigation_TechnicianInactiveGoesToBilling() {
	h := NewNavigationHandlers(&stubSnapshotFetcher{snap: models.DefaultSnapshot()})
	role := authz.RoleTechnician
	c, rec := suite.request(&role, true)

	suite.Require().NoError(h.GetNavigation(c))
	byPath := suite.decisions(rec)

	assert.Equal(suite.T(), guard.BillingRoute, byPath["/repairs"].RedirectTo)
	assert.Equal(suite.T(), guard.BillingRoute, byPath["/customers"].RedirectTo)
	assert.True(suite.T(), byPath[guard.BillingRoute].Allowed)
}

func (suite *NavigationHandlersTestSuite) TestGetNavigation_OwnerBypassesBillingState() {
	h := NewNavigationHandlers(&stubSnapshotFetcher{snap: models.DefaultSnapshot()})
	role := authz.RoleOwner
	c, rec := suite.request(&role, true)

	suite.Require().NoError(h.GetNavigation(c))
	byPath := suite.decisions(rec)

	assert.True(suite.T(), byPath["/repairs"].Allowed)
	assert.True(suite.T(), byPath["/settings"].Allowed)
	assert.Equal(suite.T(), session.DashboardLanding, byPath[session.AdminLanding].RedirectTo)
}
