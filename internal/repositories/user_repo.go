package repositories

import (
	"context"
	"errors"
	"fmt"

	"repairhub/internal/apperrors"
	"repairhub/internal/authz"
	"repairhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
	List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.User, error)
	// UpdateRole writes the new role and bumps the claims version so
	// outstanding tokens carrying the old role stop validating.
	UpdateRole(ctx context.Context, id uuid.UUID, role authz.Role) (int64, error)
	GetClaimsVersion(ctx context.Context, id uuid.UUID) (int64, error)
}

type userRepo struct {
	db DB
}

func NewUserRepo(db DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.StoreID, &user.Email, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Role, &user.ClaimsVersion,
		&user.Status, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.E(apperrors.NotFound, "user not found", err)
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	var count int
	emailCheckQuery := `SELECT COUNT(*) FROM users WHERE email = $1`
	err := r.db.QueryRow(ctx, emailCheckQuery, user.Email).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if count > 0 {
		return apperrors.E(apperrors.FailedPrecondition, "user with this email already exists", nil)
	}

	query := `
		INSERT INTO users (id, store_id, email, password_hash, first_name, last_name, role, claims_version, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err = r.db.Exec(ctx, query, user.ID, user.StoreID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.Role, user.ClaimsVersion, user.Status)
	if err != nil {
		// The COUNT pre-check races with concurrent signups; the unique
		// index on email is the authority.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.E(apperrors.FailedPrecondition, "user with this email already exists", err)
		}
		return err
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $1, first_name = $2, last_name = $3, status = $4, updated_at = NOW()
		WHERE id = $5
	`
	_, err := r.db.Exec(ctx, query, user.Email, user.FirstName, user.LastName, user.Status, user.ID)
	return err
}

func (r *userRepo) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	query := `DELETE FROM users WHERE store_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, storeID, id)
	return err
}

func (r *userRepo) List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, storeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.StoreID, &user.Email, &user.PasswordHash,
			&user.FirstName, &user.LastName, &user.Role, &user.ClaimsVersion,
			&user.Status, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepo) UpdateRole(ctx context.Context, id uuid.UUID, role authz.Role) (int64, error) {
	query := `
		UPDATE users
		SET role = $1, claims_version = claims_version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING claims_version
	`
	var version int64
	err := r.db.QueryRow(ctx, query, role, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.E(apperrors.NotFound, "user not found", err)
		}
		return 0, err
	}
	return version, nil
}

func (r *userRepo) GetClaimsVersion(ctx context.Context, id uuid.UUID) (int64, error) {
	var version int64
	query := `SELECT claims_version FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.E(apperrors.NotFound, "user not found", err)
		}
		return 0, err
	}
	return version, nil
}
