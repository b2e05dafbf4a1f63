package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is one customer organization (a tenant). The embedded subscription
// snapshot is denormalized from the payment processor via webhook and is the
// single authoritative gate for subscription-dependent access.
type Store struct {
	ID                uuid.UUID            `json:"id" db:"id"`
	Name              string               `json:"name" db:"name"`
	OwnerUserID       uuid.UUID            `json:"owner_user_id" db:"owner_user_id"`
	PaymentCustomerID *string              `json:"-" db:"payment_customer_id"`
	SubscriptionID    *string              `json:"-" db:"subscription_id"`
	Subscription      SubscriptionSnapshot `json:"subscription"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at" db:"updated_at"`
}
