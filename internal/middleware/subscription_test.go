package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"repairhub/internal/authz"
	"repairhub/internal/common"
	"repairhub/internal/models"
)

type stubFetcher struct {
	snap    models.SubscriptionSnapshot
	err     error
	fetched bool
}

func (f *stubFetcher) Fetch(ctx context.Context, storeID uuid.UUID) (models.SubscriptionSnapshot, error) {
	f.fetched = true
	return f.snap, f.err
}

func invoke(mw echo.MiddlewareFunc, role *authz.Role, storeID *uuid.UUID) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/repairs", nil)

	ctx := req.Context()
	if role != nil {
		ctx = context.WithValue(ctx, common.RoleKey, *role)
	}
	if storeID != nil {
		ctx = context.WithValue(ctx, common.StoreIDKey, *storeID)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return rec, handler(c)
}

func httpStatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return 0
}

func TestRequireActiveSubscription_ActivePasses(t *testing.T) {
	fetcher := &stubFetcher{snap: models.SubscriptionSnapshot{Status: models.SubscriptionActive}}
	role := authz.RoleTechnician
	storeID := uuid.New()

	rec, err := invoke(RequireActiveSubscription(fetcher), &role, &storeID)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fetcher.fetched)
}

func TestRequireActiveSubscription_InactiveDenied(t *testing.T) {
	fetcher := &stubFetcher{snap: models.DefaultSnapshot()}
	role := authz.RoleReception
	storeID := uuid.New()

	_, err := invoke(RequireActiveSubscription(fetcher), &role, &storeID)
	assert.Equal(t, http.StatusPaymentRequired, httpStatusOf(err))
}

func TestRequireActiveSubscription_AdminBypassesBilling(t *testing.T) {
	// Admins must reach the upgrade flow even with a dead subscription, and
	// the snapshot must not even be consulted.
	fetcher := &stubFetcher{snap: models.DefaultSnapshot()}
	for _, role := range []authz.Role{authz.RoleOwner, authz.RoleAdmin} {
		role := role
		storeID := uuid.New()
		rec, err := invoke(RequireActiveSubscription(fetcher), &role, &storeID)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.False(t, fetcher.fetched)
}

func TestRequireActiveSubscription_FetchErrorFailsClosed(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("resolver down")}
	role := authz.RoleTechnician
	storeID := uuid.New()

	_, err := invoke(RequireActiveSubscription(fetcher), &role, &storeID)
	assert.Equal(t, http.StatusPaymentRequired, httpStatusOf(err))
}

func TestRequireActiveSubscription_MissingRole(t *testing.T) {
	fetcher := &stubFetcher{snap: models.DefaultSnapshot()}

	_, err := invoke(RequireActiveSubscription(fetcher), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, httpStatusOf(err))
}

func TestRequireActiveSubscription_MissingStore(t *testing.T) {
	fetcher := &stubFetcher{snap: models.SubscriptionSnapshot{Status: models.SubscriptionActive}}
	role := authz.RoleTechnician

	_, err := invoke(RequireActiveSubscription(fetcher), &role, nil)
	assert.Equal(t, http.StatusPaymentRequired, httpStatusOf(err))
}

func TestRequireCapability(t *testing.T) {
	manageUsers := RequireCapability(func(caps authz.CapabilitySet) bool { return caps.ManageUsers })

	owner := authz.RoleOwner
	rec, err := invoke(manageUsers, &owner, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	tech := authz.RoleTechnician
	_, err = invoke(manageUsers, &tech, nil)
	assert.Equal(t, http.StatusForbidden, httpStatusOf(err))

	_, err = invoke(manageUsers, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, httpStatusOf(err))
}

func TestRequireStoreAdmin(t *testing.T) {
	mw := RequireStoreAdmin()

	for _, role := range []authz.Role{authz.RoleOwner, authz.RoleAdmin, authz.RoleSuperAdmin} {
		role := role
		rec, err := invoke(mw, &role, nil)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	for _, role := range []authz.Role{authz.RoleManager, authz.RoleTechnician, authz.RoleReception} {
		role := role
		_, err := invoke(mw, &role, nil)
		assert.Equal(t, http.StatusForbidden, httpStatusOf(err))
	}
}

func TestRequirePlatformOperator(t *testing.T) {
	mw := RequirePlatformOperator()

	super := authz.RoleSuperAdmin
	rec, err := invoke(mw, &super, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	owner := authz.RoleOwner
	_, err = invoke(mw, &owner, nil)
	assert.Equal(t, http.StatusForbidden, httpStatusOf(err))
}
