package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"repairhub/internal/authz"
	"repairhub/internal/models"
	"repairhub/internal/session"
)

// fakeSource is a pre-resolved session state.
type fakeSource struct {
	principal *session.Principal
	readyErr  error
}

func (f *fakeSource) Ready(ctx context.Context) error { return f.readyErr }
func (f *fakeSource) Principal() *session.Principal   { return f.principal }

// fakeFetcher returns a fixed snapshot or error.
type fakeFetcher struct {
	snap models.SubscriptionSnapshot
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, storeID uuid.UUID) (models.SubscriptionSnapshot, error) {
	return f.snap, f.err
}

func activeSnapshot() models.SubscriptionSnapshot {
	return models.SubscriptionSnapshot{
		Status:   models.SubscriptionActive,
		Features: []string{"basic", "repairs", "metrics"},
	}
}

func principalWith(role authz.Role) *session.Principal {
	storeID := uuid.New()
	return &session.Principal{
		ID:      uuid.New(),
		Email:   "staff@example.com",
		Role:    role,
		StoreID: &storeID,
	}
}

type GuardChainTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (suite *GuardChainTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

func TestGuardChainTestSuite(t *testing.T) {
	suite.Run(t, new(GuardChainTestSuite))
}

func (suite *GuardChainTestSuite) chain(fetcher SnapshotFetcher) Chain {
	return NewChain(NewSubscriptionGuard(fetcher))
}

func (suite *GuardChainTestSuite) TestAnonymousOnProtectedRoute_RedirectsToLoginWithReturnPath() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: nil}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs/42", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), "/login?redirect=%2Frepairs%2F42", d.Redirect)
}

func (suite *GuardChainTestSuite) TestAnonymousOnPublicRoute_Allowed() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: nil}

	d := chain.Evaluate(suite.ctx, Route{Path: "/pricing"}, src)
	assert.True(suite.T(), d.Allowed)
}

func (suite *GuardChainTestSuite) TestSignedInOnLoginPage_RedirectsToDashboard() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: principalWith(authz.RoleTechnician)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/login", HideForAuth: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), session.DashboardLanding, d.Redirect)
}

func (suite *GuardChainTestSuite) TestNonAdminOnAdminRoute_RedirectsToDashboard() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: principalWith(authz.RoleManager)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/settings/users", RequiresAuth: true, RequiresAdmin: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), session.DashboardLanding, d.Redirect)
}

func (suite *GuardChainTestSuite) TestAdminOnSuperAdminRoute_RedirectsToDashboard() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: principalWith(authz.RoleAdmin)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/admin/stores", RequiresAuth: true, RequiresSuperAdmin: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), session.DashboardLanding, d.Redirect)
}

func (suite *GuardChainTestSuite) TestSuperAdminOnSuperAdminRoute_Allowed() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: principalWith(authz.RoleSuperAdmin)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/admin/stores", RequiresAuth: true, RequiresSuperAdmin: true}, src)
	assert.True(suite.T(), d.Allowed)
}

func (suite *GuardChainTestSuite) TestTechnicianWithActiveSubscription_Allowed() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{principal: principalWith(authz.RoleTechnician)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.True(suite.T(), d.Allowed)
}

func (suite *GuardChainTestSuite) TestTechnicianWithPastDueSubscription_RedirectsToBilling() {
	snap := models.SubscriptionSnapshot{Status: models.SubscriptionPastDue, Features: []string{"basic"}}
	chain := suite.chain(&fakeFetcher{snap: snap})
	src := &fakeSource{principal: principalWith(authz.RoleTechnician)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), BillingRoute, d.Redirect)
}

func (suite *GuardChainTestSuite) TestOwnerBypassesInactiveSubscription() {
	snap := models.DefaultSnapshot()
	chain := suite.chain(&fakeFetcher{snap: snap})
	src := &fakeSource{principal: principalWith(authz.RoleOwner)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.True(suite.T(), d.Allowed)
}

func (suite *GuardChainTestSuite) TestAdminBypassesInactiveSubscription() {
	chain := suite.chain(&fakeFetcher{snap: models.DefaultSnapshot()})
	src := &fakeSource{principal: principalWith(authz.RoleAdmin)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.True(suite.T(), d.Allowed)
}

func (suite *GuardChainTestSuite) TestSnapshotFetchError_FailsClosed() {
	chain := suite.chain(&fakeFetcher{err: errors.New("store unreachable")})
	src := &fakeSource{principal: principalWith(authz.RoleTechnician)}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), BillingRoute, d.Redirect)
}

func (suite *GuardChainTestSuite) TestSessionNotReady_FailsClosed() {
	chain := suite.chain(&fakeFetcher{snap: activeSnapshot()})
	src := &fakeSource{
		principal: principalWith(authz.RoleTechnician),
		readyErr:  errors.New("session load failed"),
	}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), BillingRoute, d.Redirect)
}

func (suite *GuardChainTestSuite) TestMissingFeature_RedirectsToBilling() {
	snap := models.SubscriptionSnapshot{Status: models.SubscriptionActive, Features: []string{"basic"}}
	chain := suite.chain(&fakeFetcher{snap: snap})
	src := &fakeSource{principal: principalWith(authz.RoleTechnician)}

	d := chain.Evaluate(suite.ctx, Route{
		Path: "/metrics", RequiresAuth: true, RequiresSubscription: true, RequiredFeature: "metrics",
	}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Equal(suite.T(), BillingRoute, d.Redirect)
}

func (suite *GuardChainTestSuite) TestChainShortCircuits_AuthBeforeSubscription() {
	// The fetcher must never be consulted for an anonymous caller.
	fetcher := &fakeFetcher{err: errors.New("must not be called")}
	chain := suite.chain(fetcher)
	src := &fakeSource{principal: nil}

	d := chain.Evaluate(suite.ctx, Route{Path: "/repairs", RequiresAuth: true, RequiresSubscription: true}, src)
	assert.False(suite.T(), d.Allowed)
	assert.Contains(suite.T(), d.Redirect, session.LoginRoute)
}
