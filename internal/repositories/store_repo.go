package repositories

import (
	"context"
	"errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type StoreRepository interface {
	Create(ctx context.Context, store *models.Store) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	GetByPaymentCustomerID(ctx context.Context, customerID string) (*models.Store, error)
	Update(ctx context.Context, store *models.Store) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Store, error)
	// GetSnapshot is the point read on the access-control hot path.
	GetSnapshot(ctx context.Context, id uuid.UUID) (models.SubscriptionSnapshot, error)
	// UpdateSnapshot overwrites the denormalized billing fields. Only the
	// webhook path and the explicit cancel operation call it.
	UpdateSnapshot(ctx context.Context, id uuid.UUID, snap models.SubscriptionSnapshot) error
	SetPaymentCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	SetSubscriptionID(ctx context.Context, id uuid.UUID, subscriptionID *string) error
	SetCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, cancel bool) error
}

type storeRepo struct {
	db DB
}

func NewStoreRepo(db DB) StoreRepository {
	return &storeRepo{db: db}
}

const storeColumns = `id, name, owner_user_id, payment_customer_id, subscription_id,
		subscription_status, subscription_price_id, subscription_period_end,
		subscription_cancel_at_period_end, subscription_features, created_at, updated_at`

func scanStore(row pgx.Row) (*models.Store, error) {
	store := &models.Store{}
	err := row.Scan(&store.ID, &store.Name, &store.OwnerUserID,
		&store.PaymentCustomerID, &store.SubscriptionID,
		&store.Subscription.Status, &store.Subscription.PriceID,
		&store.Subscription.CurrentPeriodEnd, &store.Subscription.CancelAtPeriodEnd,
		&store.Subscription.Features, &store.CreatedAt, &store.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.E(apperrors.NotFound, "store not found", err)
		}
		return nil, err
	}
	return store, nil
}

func (r *storeRepo) Create(ctx context.Context, store *models.Store) error {
	query := `
		INSERT INTO stores (id, name, owner_user_id, payment_customer_id, subscription_id,
			subscription_status, subscription_price_id, subscription_period_end,
			subscription_cancel_at_period_end, subscription_features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, store.ID, store.Name, store.OwnerUserID,
		store.PaymentCustomerID, store.SubscriptionID,
		store.Subscription.Status, store.Subscription.PriceID,
		store.Subscription.CurrentPeriodEnd, store.Subscription.CancelAtPeriodEnd,
		store.Subscription.Features)
	return err
}

func (r *storeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE id = $1`
	return scanStore(r.db.QueryRow(ctx, query, id))
}

func (r *storeRepo) GetByPaymentCustomerID(ctx context.Context, customerID string) (*models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores WHERE payment_customer_id = $1`
	return scanStore(r.db.QueryRow(ctx, query, customerID))
}

func (r *storeRepo) Update(ctx context.Context, store *models.Store) error {
	query := `
		UPDATE stores
		SET name = $1, owner_user_id = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := r.db.Exec(ctx, query, store.Name, store.OwnerUserID, store.ID)
	return err
}

func (r *storeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM stores WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

func (r *storeRepo) List(ctx context.Context, limit, offset int) ([]*models.Store, error) {
	query := `
		SELECT ` + storeColumns + `
		FROM stores
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []*models.Store
	for rows.Next() {
		store := &models.Store{}
		if err := rows.Scan(&store.ID, &store.Name, &store.OwnerUserID,
			&store.PaymentCustomerID, &store.SubscriptionID,
			&store.Subscription.Status, &store.Subscription.PriceID,
			&store.Subscription.CurrentPeriodEnd, &store.Subscription.CancelAtPeriodEnd,
			&store.Subscription.Features, &store.CreatedAt, &store.UpdatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

func (r *storeRepo) GetSnapshot(ctx context.Context, id uuid.UUID) (models.SubscriptionSnapshot, error) {
	snap := models.SubscriptionSnapshot{}
	query := `
		SELECT subscription_status, subscription_price_id, subscription_period_end,
			subscription_cancel_at_period_end, subscription_features
		FROM stores
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&snap.Status, &snap.PriceID,
		&snap.CurrentPeriodEnd, &snap.CancelAtPeriodEnd, &snap.Features)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SubscriptionSnapshot{}, apperrors.E(apperrors.NotFound, "store not found", err)
		}
		return models.SubscriptionSnapshot{}, err
	}
	return snap, nil
}

func (r *storeRepo) UpdateSnapshot(ctx context.Context, id uuid.UUID, snap models.SubscriptionSnapshot) error {
	query := `
		UPDATE stores
		SET subscription_status = $1, subscription_price_id = $2, subscription_period_end = $3,
			subscription_cancel_at_period_end = $4, subscription_features = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, snap.Status, snap.PriceID, snap.CurrentPeriodEnd,
		snap.CancelAtPeriodEnd, snap.Features, id)
	return err
}

func (r *storeRepo) SetPaymentCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	query := `UPDATE stores SET payment_customer_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, customerID, id)
	return err
}

func (r *storeRepo) SetSubscriptionID(ctx context.Context, id uuid.UUID, subscriptionID *string) error {
	query := `UPDATE stores SET subscription_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, subscriptionID, id)
	return err
}

func (r *storeRepo) SetCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, cancel bool) error {
	query := `UPDATE stores SET subscription_cancel_at_period_end = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, cancel, id)
	return err
}
