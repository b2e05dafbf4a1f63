package repositories

import (
	"context"
	"errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, storeID, id uuid.UUID) (*models.Customer, error)
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
	List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.Customer, error)
	Search(ctx context.Context, storeID uuid.UUID, query string, limit int) ([]*models.Customer, error)
}

type customerRepo struct {
	db DB
}

func NewCustomerRepo(db DB) CustomerRepository {
	return &customerRepo{db: db}
}

const customerColumns = `id, store_id, first_name, last_name, email, phone, notes, created_at, updated_at`

func (r *customerRepo) Create(ctx context.Context, customer *models.Customer) error {
	query := `
		INSERT INTO customers (id, store_id, first_name, last_name, email, phone, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, customer.ID, customer.StoreID, customer.FirstName,
		customer.LastName, customer.Email, customer.Phone, customer.Notes)
	return err
}

func (r *customerRepo) GetByID(ctx context.Context, storeID, id uuid.UUID) (*models.Customer, error) {
	customer := &models.Customer{}
	query := `SELECT ` + customerColumns + ` FROM customers WHERE store_id = $1 AND id = $2`
	err := r.db.QueryRow(ctx, query, storeID, id).Scan(&customer.ID, &customer.StoreID,
		&customer.FirstName, &customer.LastName, &customer.Email, &customer.Phone,
		&customer.Notes, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.E(apperrors.NotFound, "customer not found", err)
		}
		return nil, err
	}
	return customer, nil
}

func (r *customerRepo) Update(ctx context.Context, customer *models.Customer) error {
	query := `
		UPDATE customers
		SET first_name = $1, last_name = $2, email = $3, phone = $4, notes = $5, updated_at = NOW()
		WHERE store_id = $6 AND id = $7
	`
	_, err := r.db.Exec(ctx, query, customer.FirstName, customer.LastName, customer.Email,
		customer.Phone, customer.Notes, customer.StoreID, customer.ID)
	return err
}

func (r *customerRepo) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	query := `DELETE FROM customers WHERE store_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, storeID, id)
	return err
}

func (r *customerRepo) List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, storeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func (r *customerRepo) Search(ctx context.Context, storeID uuid.UUID, search string, limit int) ([]*models.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE store_id = $1 AND (first_name ILIKE '%' || $2 || '%' OR last_name ILIKE '%' || $2 || '%' OR phone ILIKE '%' || $2 || '%')
		ORDER BY last_name, first_name
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, storeID, search, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func scanCustomers(rows pgx.Rows) ([]*models.Customer, error) {
	var customers []*models.Customer
	for rows.Next() {
		customer := &models.Customer{}
		if err := rows.Scan(&customer.ID, &customer.StoreID, &customer.FirstName,
			&customer.LastName, &customer.Email, &customer.Phone, &customer.Notes,
			&customer.CreatedAt, &customer.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}
