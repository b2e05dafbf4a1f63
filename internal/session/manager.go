package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairhub/internal/apperrors"
	"repairhub/internal/authz"
	"repairhub/internal/caching"
	"repairhub/internal/identity"
	"repairhub/internal/repositories"
)

// Principal is the resolved identity of the signed-in user, always derived
// from the most recently loaded backing record.
type Principal struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Role      authz.Role
	StoreID   *uuid.UUID
	StoreName string
}

// IsPlatformOperator reports whether the principal has cross-store access.
func (p *Principal) IsPlatformOperator() bool {
	return p != nil && p.Role.IsPlatformOperator()
}

// IsStoreAdmin reports whether the principal has admin-level access.
func (p *Principal) IsStoreAdmin() bool {
	return p != nil && p.Role.IsStoreAdmin()
}

// Landing routes by role. The post-login redirect is a property of login,
// not of the route guards.
const (
	AdminLanding     = "/admin/stores"
	DashboardLanding = "/dashboard"
	LoginRoute       = "/login"
)

// User-facing error kinds surfaced by Initialize/Login/Logout. Raw provider
// codes never leak past this package.
var (
	ErrNetwork            = errors.New("network error, please try again")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimited        = errors.New("too many attempts, please retry later")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrGeneric            = errors.New("sign-in failed")
)

// Manager is the session-scoped source of truth for "who is this and what
// store are they in". Construct one per logical session; no package-level
// singleton.
type Manager struct {
	provider  identity.Provider
	userRepo  repositories.UserRepository
	storeRepo repositories.StoreRepository
	cacheSvc  caching.CacheService
	logger    *zap.Logger

	// persistedSessionID seeds Initialize with a previously issued
	// provider session, when the caller has one.
	persistedSessionID string

	mu          sync.RWMutex
	principal   *Principal
	sessionID   string
	initialized bool

	initOnce sync.Once
	initErr  error
}

func NewManager(provider identity.Provider, userRepo repositories.UserRepository,
	storeRepo repositories.StoreRepository, cacheSvc caching.CacheService, logger *zap.Logger) *Manager {
	return &Manager{
		provider:  provider,
		userRepo:  userRepo,
		storeRepo: storeRepo,
		cacheSvc:  cacheSvc,
		logger:    logger,
	}
}

// WithPersistedSession sets the provider session id Initialize should try to
// restore. Call before Initialize.
func (m *Manager) WithPersistedSession(sessionID string) *Manager {
	m.persistedSessionID = sessionID
	return m
}

// Initialize resolves a persisted provider session, if any, exactly once.
// Concurrent callers block on the same in-flight resolution and observe the
// same result; later calls return the cached outcome without re-fetching.
// A dangling identity (session without a backing record) fails with
// NotFound, which callers treat as "force sign-out".
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.initialize(ctx)
		m.mu.Lock()
		m.initialized = true
		m.mu.Unlock()
	})
	return m.initErr
}

func (m *Manager) initialize(ctx context.Context) error {
	sess, err := m.provider.Restore(ctx, m.persistedSessionID)
	if err != nil {
		m.logger.Warn("session restore failed", zap.Error(err))
		return ErrNetwork
	}
	if sess == nil {
		// Anonymous: initialized with no principal set.
		return nil
	}
	return m.loadPrincipal(ctx, sess)
}

// Ready blocks until the session state is resolved. It is the guard-facing
// alias for Initialize.
func (m *Manager) Ready(ctx context.Context) error {
	return m.Initialize(ctx)
}

// Initialized reports whether Initialize has completed.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Principal returns a copy of the current principal, or nil when anonymous.
func (m *Manager) Principal() *Principal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.principal == nil {
		return nil
	}
	p := *m.principal
	return &p
}

// loadPrincipal loads the backing user record and, best-effort, the store
// display name. Role and store id always come from this load, never from a
// stale cached object.
func (m *Manager) loadPrincipal(ctx context.Context, sess *identity.Session) error {
	user, err := m.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.NotFound {
			return apperrors.E(apperrors.NotFound, "account record not found", err)
		}
		return ErrNetwork
	}

	principal := &Principal{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		StoreID:   user.StoreID,
	}

	if user.StoreID != nil {
		store, err := m.storeRepo.GetByID(ctx, *user.StoreID)
		if err != nil {
			// Display name only; not fatal.
			m.logger.Warn("failed to load store name",
				zap.String("store_id", user.StoreID.String()), zap.Error(err))
		} else {
			principal.StoreName = store.Name
		}
	}

	m.mu.Lock()
	m.principal = principal
	m.sessionID = sess.ID
	m.mu.Unlock()
	return nil
}

// Login verifies the credential with the identity provider, loads the
// backing record, and returns the role-based landing route. On failure the
// session state is left untouched and the error is one of the translated
// kinds (or a typed NotFound for a dangling identity).
func (m *Manager) Login(ctx context.Context, email, password string) (string, error) {
	sess, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		return "", translateProviderError(err)
	}

	if err := m.loadPrincipal(ctx, sess); err != nil {
		return "", err
	}

	if m.Principal().IsPlatformOperator() {
		return AdminLanding, nil
	}
	return DashboardLanding, nil
}

// Logout ends the provider session and unconditionally clears local state,
// even when the provider call fails; the provider error, if any, is still
// returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	sessionID := m.sessionID
	m.principal = nil
	m.sessionID = ""
	m.mu.Unlock()

	if err := m.provider.SignOut(ctx, sessionID); err != nil {
		m.logger.Warn("provider sign-out failed", zap.Error(err))
		return ErrNetwork
	}
	return nil
}

// UpdateUserRole assigns newRole to the target user. The local principal is
// updated optimistically; the repository write bumps the target's claims
// version and the cached copy is invalidated so outstanding tokens with the
// old role stop validating. That reconciliation step is required, not an
// optimization: a stale role claim is a security bug.
func (m *Manager) UpdateUserRole(ctx context.Context, targetID uuid.UUID, newRole authz.Role) error {
	caller := m.Principal()
	if caller == nil {
		return apperrors.E(apperrors.Unauthenticated, "not signed in", nil)
	}
	if !newRole.IsValid() {
		return apperrors.E(apperrors.FailedPrecondition, "unknown role", nil)
	}
	if !authz.CanAssignRole(caller.Role, newRole) {
		return apperrors.E(apperrors.PermissionDenied, "role not assignable by caller", nil)
	}

	// Optimistic local mutation, reverted if the write fails.
	prevRole := caller.Role
	m.mu.Lock()
	if m.principal != nil && m.principal.ID == targetID {
		m.principal.Role = newRole
	}
	m.mu.Unlock()

	version, err := m.userRepo.UpdateRole(ctx, targetID, newRole)
	if err != nil {
		m.mu.Lock()
		if m.principal != nil && m.principal.ID == targetID {
			m.principal.Role = prevRole
		}
		m.mu.Unlock()
		return err
	}

	// Reconciliation: invalidate the cached claims version so every
	// subsequent request re-reads the authoritative one.
	if err := m.cacheSvc.DeleteClaimsVersion(ctx, targetID); err != nil {
		m.logger.Warn("failed to invalidate claims version cache",
			zap.String("user_id", targetID.String()), zap.Error(err))
	}
	m.logger.Info("user role updated",
		zap.String("user_id", targetID.String()),
		zap.String("role", newRole.String()),
		zap.Int64("claims_version", version))
	return nil
}

func translateProviderError(err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrUserNotFound):
		return ErrInvalidCredentials
	case errors.Is(err, identity.ErrTooManyRequests):
		return ErrRateLimited
	case errors.Is(err, identity.ErrInvalidEmail):
		return ErrInvalidEmail
	case err == nil:
		return nil
	default:
		return ErrNetwork
	}
}
