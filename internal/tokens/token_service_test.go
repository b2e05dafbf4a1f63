package tokens

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"repairhub/internal/apperrors"
	"repairhub/internal/authz"
	"repairhub/internal/models"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	args := m.Called(ctx, storeID, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, storeID, limit, offset)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role authz.Role) (int64, error) {
	args := m.Called(ctx, id, role)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) GetClaimsVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetSnapshot(ctx context.Context, storeID uuid.UUID) (*models.SubscriptionSnapshot, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionSnapshot), args.Error(1)
}

func (m *MockCacheService) SetSnapshot(ctx context.Context, storeID uuid.UUID, snap models.SubscriptionSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, storeID, snap, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteSnapshot(ctx context.Context, storeID uuid.UUID) error {
	args := m.Called(ctx, storeID)
	return args.Error(0)
}

func (m *MockCacheService) PublishSnapshot(ctx context.Context, storeID uuid.UUID, snap *models.SubscriptionSnapshot) error {
	args := m.Called(ctx, storeID, snap)
	return args.Error(0)
}

func (m *MockCacheService) SubscribeSnapshots(ctx context.Context, storeID uuid.UUID) (<-chan []byte, func() error) {
	args := m.Called(ctx, storeID)
	return args.Get(0).(<-chan []byte), args.Get(1).(func() error)
}

func (m *MockCacheService) GetClaimsVersion(ctx context.Context, userID uuid.UUID) (int64, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SetClaimsVersion(ctx context.Context, userID uuid.UUID, version int64, ttl time.Duration) error {
	args := m.Called(ctx, userID, version, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteClaimsVersion(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCacheService) SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	args := m.Called(ctx, sessionID, userID, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetSession(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockCacheService) IncrementAttempts(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) ResetAttempts(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

const testJWTSecret = "test-secret-not-for-production"

type TokenServiceTestSuite struct {
	suite.Suite
	userRepo *MockUserRepository
	cacheSvc *MockCacheService
	svc      TokenService
	ctx      context.Context
	userID   uuid.UUID
	storeID  uuid.UUID
}

func (suite *TokenServiceTestSuite) SetupTest() {
	suite.userRepo = &MockUserRepository{}
	suite.cacheSvc = &MockCacheService{}
	suite.svc = NewTokenService(suite.userRepo, suite.cacheSvc, zap.NewNop(),
		testJWTSecret, 15*time.Minute, 720*time.Hour)
	suite.ctx = context.Background()
	suite.userID = uuid.New()
	suite.storeID = uuid.New()
}

func (suite *TokenServiceTestSuite) TearDownTest() {
	suite.userRepo.AssertExpectations(suite.T())
	suite.cacheSvc.AssertExpectations(suite.T())
}

func TestTokenServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TokenServiceTestSuite))
}

func (suite *TokenServiceTestSuite) user() *models.User {
	storeID := suite.storeID
	return &models.User{
		ID:            suite.userID,
		StoreID:       &storeID,
		Email:         "tech@example.com",
		Role:          authz.RoleTechnician,
		ClaimsVersion: 3,
	}
}

func (suite *TokenServiceTestSuite) TestGenerateValidateRoundtrip() {
	suite.cacheSvc.On("SetString", suite.ctx, mock.Anything, mock.Anything, 720*time.Hour).Return(nil)
	suite.cacheSvc.On("GetClaimsVersion", suite.ctx, suite.userID).Return(int64(3), true, nil)

	resp, err := suite.svc.Generate(suite.ctx, suite.user())
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "Bearer", resp.TokenType)
	assert.NotEmpty(suite.T(), resp.RefreshToken)

	claims, err := suite.svc.Validate(suite.ctx, resp.AccessToken)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), suite.userID.String(), claims.Subject)
	assert.Equal(suite.T(), authz.RoleTechnician.String(), claims.Role)
	assert.Equal(suite.T(), suite.storeID.String(), claims.StoreID)
	assert.Equal(suite.T(), int64(3), claims.ClaimsVersion)
}

func (suite *TokenServiceTestSuite) TestValidate_RejectsStaleClaimsVersion() {
	suite.cacheSvc.On("SetString", suite.ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	resp, err := suite.svc.Generate(suite.ctx, suite.user())
	suite.Require().NoError(err)

	// The role changed after minting: record version moved past the token's.
	suite.cacheSvc.On("GetClaimsVersion", suite.ctx, suite.userID).Return(int64(4), true, nil)

	_, err = suite.svc.Validate(suite.ctx, resp.AccessToken)
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.Unauthenticated, apperrors.CodeOf(err))
}

func (suite *TokenServiceTestSuite) TestValidate_CacheMissFallsBackToRecord() {
	suite.cacheSvc.On("SetString", suite.ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	resp, err := suite.svc.Generate(suite.ctx, suite.user())
	suite.Require().NoError(err)

	suite.cacheSvc.On("GetClaimsVersion", suite.ctx, suite.userID).Return(int64(0), false, nil)
	suite.userRepo.On("GetClaimsVersion", suite.ctx, suite.userID).Return(int64(3), nil)
	suite.cacheSvc.On("SetClaimsVersion", suite.ctx, suite.userID, int64(3), mock.Anything).Return(nil)

	claims, err := suite.svc.Validate(suite.ctx, resp.AccessToken)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), claims.ClaimsVersion)
}

func (suite *TokenServiceTestSuite) TestValidate_RejectsTamperedToken() {
	other := NewTokenService(suite.userRepo, suite.cacheSvc, zap.NewNop(),
		"different-secret", 15*time.Minute, 720*time.Hour)
	suite.cacheSvc.On("SetString", suite.ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	resp, err := other.Generate(suite.ctx, suite.user())
	suite.Require().NoError(err)

	_, err = suite.svc.Validate(suite.ctx, resp.AccessToken)
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.Unauthenticated, apperrors.CodeOf(err))
}

func (suite *TokenServiceTestSuite) TestValidate_RejectsExpiredToken() {
	expired := NewTokenService(suite.userRepo, suite.cacheSvc, zap.NewNop(),
		testJWTSecret, -time.Minute, 720*time.Hour)
	suite.cacheSvc.On("SetString", suite.ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	resp, err := expired.Generate(suite.ctx, suite.user())
	suite.Require().NoError(err)

	_, err = suite.svc.Validate(suite.ctx, resp.AccessToken)
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.Unauthenticated, apperrors.CodeOf(err))
}

func (suite *TokenServiceTestSuite) TestValidate_Garbage() {
	_, err := suite.svc.Validate(suite.ctx, "not.a.jwt")
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.Unauthenticated, apperrors.CodeOf(err))
}

func (suite *TokenServiceTestSuite) TestRefresh_RotatesToken() {
	refreshData := fmt.Sprintf("%s:%d", suite.userID.String(), time.Now().Add(time.Hour).Unix())
	suite.cacheSvc.On("GetString", suite.ctx, mock.Anything).Return(refreshData, nil)
	suite.cacheSvc.On("Delete", suite.ctx, mock.Anything).Return(nil)
	suite.userRepo.On("GetByID", suite.ctx, suite.userID).Return(suite.user(), nil)
	suite.cacheSvc.On("SetString", suite.ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := suite.svc.Refresh(suite.ctx, "old-refresh-token")
	suite.Require().NoError(err)
	assert.NotEmpty(suite.T(), resp.AccessToken)
	assert.NotEqual(suite.T(), "old-refresh-token", resp.RefreshToken)
	// The consumed token is gone from the cache.
	suite.cacheSvc.AssertCalled(suite.T(), "Delete", suite.ctx, mock.Anything)
}

func (suite *TokenServiceTestSuite) TestRefresh_ExpiredEntry() {
	refreshData := fmt.Sprintf("%s:%d", suite.userID.String(), time.Now().Add(-time.Hour).Unix())
	suite.cacheSvc.On("GetString", suite.ctx, mock.Anything).Return(refreshData, nil)
	suite.cacheSvc.On("Delete", suite.ctx, mock.Anything).Return(nil)

	_, err := suite.svc.Refresh(suite.ctx, "stale-refresh-token")
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.Unauthenticated, apperrors.CodeOf(err))
}

func (suite *TokenServiceTestSuite) TestRefresh_UnknownToken() {
	suite.cacheSvc.On("GetString", suite.ctx, mock.Anything).Return("", fmt.Errorf("key not found"))

	_, err := suite.svc.Refresh(suite.ctx, "never-issued")
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.Unauthenticated, apperrors.CodeOf(err))
}

func (suite *TokenServiceTestSuite) TestRevoke() {
	suite.cacheSvc.On("Delete", suite.ctx, mock.Anything).Return(nil)
	assert.NoError(suite.T(), suite.svc.Revoke(suite.ctx, "some-refresh-token"))
}
