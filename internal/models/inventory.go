package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is a spare part or accessory tracked per store.
type InventoryItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	StoreID   uuid.UUID `json:"store_id" db:"store_id"`
	Name      string    `json:"name" db:"name"`
	SKU       *string   `json:"sku" db:"sku"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	MinStock  int       `json:"min_stock" db:"min_stock"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
