package models

import (
	"time"

	"github.com/google/uuid"

	"repairhub/internal/authz"
)

// User is the persisted record behind a Principal. StoreID is nullable only
// while an account is being provisioned; every non-platform-operator user
// has exactly one store.
type User struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	StoreID           *uuid.UUID `json:"store_id" db:"store_id"`
	Email             string     `json:"email" db:"email"`
	PasswordHash      string     `json:"-" db:"password_hash"` // Never serialize in JSON
	FirstName         string     `json:"first_name" db:"first_name"`
	LastName          string     `json:"last_name" db:"last_name"`
	Role              authz.Role `json:"role" db:"role"`
	ClaimsVersion     int64      `json:"-" db:"claims_version"`
	Status            string     `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}
