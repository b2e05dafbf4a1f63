package models

import (
	"time"

	"github.com/google/uuid"
)

// Repair statuses form the intake-to-delivery lifecycle. Reception staff
// may only set the statuses authz allows them.
const (
	RepairCreated      = "created"
	RepairDiagnosed    = "diagnosed"
	RepairWaitingParts = "waiting_parts"
	RepairInProgress   = "in_progress"
	RepairCompleted    = "completed"
	RepairDelivered    = "delivered"
	RepairCancelled    = "cancelled"
)

// ValidRepairStatus reports whether status is one of the defined repair
// lifecycle statuses.
func ValidRepairStatus(status string) bool {
	switch status {
	case RepairCreated, RepairDiagnosed, RepairWaitingParts,
		RepairInProgress, RepairCompleted, RepairDelivered, RepairCancelled:
		return true
	}
	return false
}

type Repair struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	StoreID     uuid.UUID  `json:"store_id" db:"store_id"`
	CustomerID  uuid.UUID  `json:"customer_id" db:"customer_id"`
	DeviceBrand string     `json:"device_brand" db:"device_brand"`
	DeviceModel string     `json:"device_model" db:"device_model"`
	Issue       string     `json:"issue" db:"issue"`
	Status      string     `json:"status" db:"status"`
	Price       *float64   `json:"price" db:"price"`
	TechnicianID *uuid.UUID `json:"technician_id" db:"technician_id"`
	PhotoKeys   []string   `json:"photo_keys" db:"photo_keys"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
