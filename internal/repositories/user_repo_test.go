package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"repairhub/internal/apperrors"
	"repairhub/internal/authz"
	"repairhub/internal/models"
)

type UserRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    UserRepository
	storeID uuid.UUID
	userID  uuid.UUID
	context context.Context
}

func (suite *UserRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewUserRepo(mock)
	suite.storeID = uuid.New()
	suite.userID = uuid.New()
	suite.context = context.Background()
}

func (suite *UserRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestUserRepoTestSuite(t *testing.T) {
	suite.Run(t, new(UserRepoTestSuite))
}

func (suite *UserRepoTestSuite) userRow(role authz.Role, claimsVersion int64) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{"id", "store_id", "email", "password_hash", "first_name",
		"last_name", "role", "claims_version", "status", "created_at", "updated_at"}).
		AddRow(suite.userID, &suite.storeID, "tech@example.com", "$2a$10$hash", "Dana",
			"Reyes", role, claimsVersion, "active", now, now)
}

func (suite *UserRepoTestSuite) TestCreate_Success() {
	user := &models.User{
		ID:           suite.userID,
		StoreID:      &suite.storeID,
		Email:        "tech@example.com",
		PasswordHash: "$2a$10$hash",
		FirstName:    "Dana",
		LastName:     "Reyes",
		Role:         authz.RoleTechnician,
		Status:       "active",
	}

	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE email = \$1`).
		WithArgs(user.Email).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	suite.mock.ExpectExec(`
			INSERT INTO users \(id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at\)
			VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, NOW\(\), NOW\(\)\)
		`).WithArgs(user.ID, user.StoreID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.Role, user.ClaimsVersion, user.Status).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := suite.repo.Create(suite.context, user)
	assert.NoError(suite.T(), err)
}

func (suite *UserRepoTestSuite) TestCreate_DuplicateEmail() {
	user := &models.User{
		ID:      suite.userID,
		StoreID: &suite.storeID,
		Email:   "taken@example.com",
	}

	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE email = \$1`).
		WithArgs(user.Email).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	err := suite.repo.Create(suite.context, user)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "already exists")
}

func (suite *UserRepoTestSuite) TestGetByID_Success() {
	suite.mock.ExpectQuery(`SELECT id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnRows(suite.userRow(authz.RoleTechnician, 2))

	user, err := suite.repo.GetByID(suite.context, suite.userID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.userID, user.ID)
	assert.Equal(suite.T(), authz.RoleTechnician, user.Role)
	assert.Equal(suite.T(), int64(2), user.ClaimsVersion)
}

func (suite *UserRepoTestSuite) TestGetByID_NotFound() {
	suite.mock.ExpectQuery(`SELECT id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnError(pgx.ErrNoRows)

	user, err := suite.repo.GetByID(suite.context, suite.userID)
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.NotFound, apperrors.CodeOf(err))
	assert.Nil(suite.T(), user)
}

func (suite *UserRepoTestSuite) TestGetByEmail_Success() {
	suite.mock.ExpectQuery(`SELECT id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at FROM users WHERE email = \$1`).
		WithArgs("tech@example.com").
		WillReturnRows(suite.userRow(authz.RoleTechnician, 1))

	user, err := suite.repo.GetByEmail(suite.context, "tech@example.com")
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "tech@example.com", user.Email)
}

func (suite *UserRepoTestSuite) TestUpdateRole_BumpsClaimsVersion() {
	suite.mock.ExpectQuery(`
			UPDATE users
			SET role = \$1, claims_version = claims_version \+ 1, updated_at = NOW\(\)
			WHERE id = \$2
			RETURNING claims_version
		`).WithArgs(authz.RoleManager, suite.userID).
		WillReturnRows(pgxmock.NewRows([]string{"claims_version"}).AddRow(int64(3)))

	version, err := suite.repo.UpdateRole(suite.context, suite.userID, authz.RoleManager)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), version)
}

func (suite *UserRepoTestSuite) TestUpdateRole_UnknownUser() {
	suite.mock.ExpectQuery(`
			UPDATE users
			SET role = \$1, claims_version = claims_version \+ 1, updated_at = NOW\(\)
			WHERE id = \$2
			RETURNING claims_version
		`).WithArgs(authz.RoleManager, suite.userID).
		WillReturnError(pgx.ErrNoRows)

	_, err := suite.repo.UpdateRole(suite.context, suite.userID, authz.RoleManager)
	assert.Error(suite.T(), err)
	assert.Equal(suite.T(), apperrors.NotFound, apperrors.CodeOf(err))
}

func (suite *UserRepoTestSuite) TestGetClaimsVersion() {
	suite.mock.ExpectQuery(`SELECT claims_version FROM users WHERE id = \$1`).
		WithArgs(suite.userID).
		WillReturnRows(pgxmock.NewRows([]string{"claims_version"}).AddRow(int64(7)))

	version, err := suite.repo.GetClaimsVersion(suite.context, suite.userID)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(7), version)
}

func (suite *UserRepoTestSuite) TestDelete_ScopedToStore() {
	suite.mock.ExpectExec(`DELETE FROM users WHERE store_id = \$1 AND id = \$2`).
		WithArgs(suite.storeID, suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := suite.repo.Delete(suite.context, suite.storeID, suite.userID)
	assert.NoError(suite.T(), err)
}

func (suite *UserRepoTestSuite) TestDelete_OtherStoreIsNoOp() {
	otherStore := uuid.New()
	suite.mock.ExpectExec(`DELETE FROM users WHERE store_id = \$1 AND id = \$2`).
		WithArgs(otherStore, suite.userID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := suite.repo.Delete(suite.context, otherStore, suite.userID)
	assert.NoError(suite.T(), err)
}

func (suite *UserRepoTestSuite) TestList_ScopedToStore() {
	now := time.Now()
	otherID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "store_id", "email", "password_hash", "first_name",
		"last_name", "role", "claims_version", "status", "created_at", "updated_at"}).
		AddRow(suite.userID, &suite.storeID, "owner@example.com", "$2a$10$hash", "Alex",
			"Kim", authz.RoleOwner, int64(1), "active", now, now).
		AddRow(otherID, &suite.storeID, "tech@example.com", "$2a$10$hash", "Dana",
			"Reyes", authz.RoleTechnician, int64(1), "active", now, now)

	suite.mock.ExpectQuery(`
			SELECT id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at
			FROM users
			WHERE store_id = \$1
			ORDER BY created_at DESC
			LIMIT \$2 OFFSET \$3
		`).WithArgs(suite.storeID, 50, 0).
		WillReturnRows(rows)

	users, err := suite.repo.List(suite.context, suite.storeID, 50, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), users, 2)
	assert.Equal(suite.T(), authz.RoleOwner, users[0].Role)
}

func (suite *UserRepoTestSuite) TestList_DatabaseError() {
	suite.mock.ExpectQuery(`
			SELECT id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at
			FROM users
			WHERE store_id = \$1
			ORDER BY created_at DESC
			LIMIT \$2 OFFSET \$3
		`).WithArgs(suite.storeID, 50, 0).
		WillReturnError(errors.New("database connection failed"))

	users, err := suite.repo.List(suite.context, suite.storeID, 50, 0)
	assert.Error(suite.T(), err)
	assert.Nil(suite.T(), users)
}
