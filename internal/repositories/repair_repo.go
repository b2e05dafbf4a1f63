package repositories

import (
	"context"
	"errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type RepairRepository interface {
	Create(ctx context.Context, repair *models.Repair) error
	GetByID(ctx context.Context, storeID, id uuid.UUID) (*models.Repair, error)
	Update(ctx context.Context, repair *models.Repair) error
	UpdateStatus(ctx context.Context, storeID, id uuid.UUID, status string) error
	AppendPhotoKey(ctx context.Context, storeID, id uuid.UUID, key string) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
	List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.Repair, error)
	ListByCustomer(ctx context.Context, storeID, customerID uuid.UUID) ([]*models.Repair, error)
}

type repairRepo struct {
	db DB
}

func NewRepairRepo(db DB) RepairRepository {
	return &repairRepo{db: db}
}

const repairColumns = `id, store_id, customer_id, device_brand, device_model, issue, status, price, technician_id, photo_keys, created_at, updated_at`

func scanRepair(row pgx.Row) (*models.Repair, error) {
	repair := &models.Repair{}
	err := row.Scan(&repair.ID, &repair.StoreID, &repair.CustomerID, &repair.DeviceBrand,
		&repair.DeviceModel, &repair.Issue, &repair.Status, &repair.Price,
		&repair.TechnicianID, &repair.PhotoKeys, &repair.CreatedAt, &repair.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.E(apperrors.NotFound, "repair not found", err)
		}
		return nil, err
	}
	return repair, nil
}

func (r *repairRepo) Create(ctx context.Context, repair *models.Repair) error {
	query := `
		INSERT INTO repairs (id, store_id, customer_id, device_brand, device_model, issue, status, price, technician_id, photo_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, repair.ID, repair.StoreID, repair.CustomerID,
		repair.DeviceBrand, repair.DeviceModel, repair.Issue, repair.Status,
		repair.Price, repair.TechnicianID, repair.PhotoKeys)
	return err
}

func (r *repairRepo) GetByID(ctx context.Context, storeID, id uuid.UUID) (*models.Repair, error) {
	query := `SELECT ` + repairColumns + ` FROM repairs WHERE store_id = $1 AND id = $2`
	return scanRepair(r.db.QueryRow(ctx, query, storeID, id))
}

func (r *repairRepo) Update(ctx context.Context, repair *models.Repair) error {
	query := `
		UPDATE repairs
		SET device_brand = $1, device_model = $2, issue = $3, status = $4, price = $5, technician_id = $6, updated_at = NOW()
		WHERE store_id = $7 AND id = $8
	`
	_, err := r.db.Exec(ctx, query, repair.DeviceBrand, repair.DeviceModel, repair.Issue,
		repair.Status, repair.Price, repair.TechnicianID, repair.StoreID, repair.ID)
	return err
}

func (r *repairRepo) UpdateStatus(ctx context.Context, storeID, id uuid.UUID, status string) error {
	query := `UPDATE repairs SET status = $1, updated_at = NOW() WHERE store_id = $2 AND id = $3`
	_, err := r.db.Exec(ctx, query, status, storeID, id)
	return err
}

func (r *repairRepo) AppendPhotoKey(ctx context.Context, storeID, id uuid.UUID, key string) error {
	query := `
		UPDATE repairs
		SET photo_keys = array_append(photo_keys, $1), updated_at = NOW()
		WHERE store_id = $2 AND id = $3
	`
	_, err := r.db.Exec(ctx, query, key, storeID, id)
	return err
}

func (r *repairRepo) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	query := `DELETE FROM repairs WHERE store_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, storeID, id)
	return err
}

func (r *repairRepo) List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.Repair, error) {
	query := `
		SELECT ` + repairColumns + `
		FROM repairs
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, storeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepairs(rows)
}

func (r *repairRepo) ListByCustomer(ctx context.Context, storeID, customerID uuid.UUID) ([]*models.Repair, error) {
	query := `
		SELECT ` + repairColumns + `
		FROM repairs
		WHERE store_id = $1 AND customer_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, storeID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepairs(rows)
}

func scanRepairs(rows pgx.Rows) ([]*models.Repair, error) {
	var repairs []*models.Repair
	for rows.Next() {
		repair := &models.Repair{}
		if err := rows.Scan(&repair.ID, &repair.StoreID, &repair.CustomerID, &repair.DeviceBrand,
			&repair.DeviceModel, &repair.Issue, &repair.Status, &repair.Price,
			&repair.TechnicianID, &repair.PhotoKeys, &repair.CreatedAt, &repair.UpdatedAt); err != nil {
			return nil, err
		}
		repairs = append(repairs, repair)
	}
	return repairs, rows.Err()
}
