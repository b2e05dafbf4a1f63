package repositories

import (
	"context"
	"errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *models.InventoryItem) error
	GetByID(ctx context.Context, storeID, id uuid.UUID) (*models.InventoryItem, error)
	Update(ctx context.Context, item *models.InventoryItem) error
	AdjustQuantity(ctx context.Context, storeID, id uuid.UUID, delta int) error
	Delete(ctx context.Context, storeID, id uuid.UUID) error
	List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.InventoryItem, error)
	ListLowStock(ctx context.Context, storeID uuid.UUID) ([]*models.InventoryItem, error)
}

type inventoryRepo struct {
	db DB
}

func NewInventoryRepo(db DB) InventoryRepository {
	return &inventoryRepo{db: db}
}

const inventoryColumns = `id, store_id, name, sku, quantity, unit_price, min_stock, created_at, updated_at`

func (r *inventoryRepo) Create(ctx context.Context, item *models.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (id, store_id, name, sku, quantity, unit_price, min_stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, item.ID, item.StoreID, item.Name, item.SKU,
		item.Quantity, item.UnitPrice, item.MinStock)
	return err
}

func (r *inventoryRepo) GetByID(ctx context.Context, storeID, id uuid.UUID) (*models.InventoryItem, error) {
	item := &models.InventoryItem{}
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE store_id = $1 AND id = $2`
	err := r.db.QueryRow(ctx, query, storeID, id).Scan(&item.ID, &item.StoreID, &item.Name,
		&item.SKU, &item.Quantity, &item.UnitPrice, &item.MinStock, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.E(apperrors.NotFound, "inventory item not found", err)
		}
		return nil, err
	}
	return item, nil
}

func (r *inventoryRepo) Update(ctx context.Context, item *models.InventoryItem) error {
	query := `
		UPDATE inventory_items
		SET name = $1, sku = $2, quantity = $3, unit_price = $4, min_stock = $5, updated_at = NOW()
		WHERE store_id = $6 AND id = $7
	`
	_, err := r.db.Exec(ctx, query, item.Name, item.SKU, item.Quantity, item.UnitPrice,
		item.MinStock, item.StoreID, item.ID)
	return err
}

func (r *inventoryRepo) AdjustQuantity(ctx context.Context, storeID, id uuid.UUID, delta int) error {
	// Per-row atomic update is the only concurrency primitive relied on here.
	query := `
		UPDATE inventory_items
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE store_id = $2 AND id = $3 AND quantity + $1 >= 0
	`
	tag, err := r.db.Exec(ctx, query, delta, storeID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.E(apperrors.FailedPrecondition, "insufficient stock", nil)
	}
	return nil
}

func (r *inventoryRepo) Delete(ctx context.Context, storeID, id uuid.UUID) error {
	query := `DELETE FROM inventory_items WHERE store_id = $1 AND id = $2`
	_, err := r.db.Exec(ctx, query, storeID, id)
	return err
}

func (r *inventoryRepo) List(ctx context.Context, storeID uuid.UUID, limit, offset int) ([]*models.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventory_items
		WHERE store_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, storeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInventoryItems(rows)
}

func (r *inventoryRepo) ListLowStock(ctx context.Context, storeID uuid.UUID) ([]*models.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventory_items
		WHERE store_id = $1 AND quantity <= min_stock
		ORDER BY quantity
	`
	rows, err := r.db.Query(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInventoryItems(rows)
}

func scanInventoryItems(rows pgx.Rows) ([]*models.InventoryItem, error) {
	var items []*models.InventoryItem
	for rows.Next() {
		item := &models.InventoryItem{}
		if err := rows.Scan(&item.ID, &item.StoreID, &item.Name, &item.SKU, &item.Quantity,
			&item.UnitPrice, &item.MinStock, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
