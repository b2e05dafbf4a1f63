package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/apperrors"
	"repairhub/internal/common"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
)

// InventoryHandlers manages the spare-parts stock of a store.
type InventoryHandlers struct {
	inventoryRepo repositories.InventoryRepository
}

func NewInventoryHandlers(inventoryRepo repositories.InventoryRepository) *InventoryHandlers {
	return &InventoryHandlers{inventoryRepo: inventoryRepo}
}

// InventoryItemRequest represents the create/update payload
type InventoryItemRequest struct {
	Name      string  `json:"name" validate:"required"`
	SKU       *string `json:"sku"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	MinStock  int     `json:"min_stock" validate:"gte=0"`
}

func (h *InventoryHandlers) CreateItem(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req InventoryItemRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "item", err.Error())
	}

	item := &models.InventoryItem{
		ID:        uuid.New(),
		StoreID:   storeID,
		Name:      req.Name,
		SKU:       req.SKU,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		MinStock:  req.MinStock,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.inventoryRepo.Create(ctx, item); err != nil {
		return common.SendServerError(c, "Failed to create inventory item")
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *InventoryHandlers) GetItem(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	itemID, err := common.ValidateUUID(c.Param("id"), "item id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	item, err := h.inventoryRepo.GetByID(ctx, storeID, itemID)
	if err != nil {
		return common.SendNotFoundError(c, "Inventory item")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *InventoryHandlers) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	itemID, err := common.ValidateUUID(c.Param("id"), "item id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req InventoryItemRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "item", err.Error())
	}

	item, err := h.inventoryRepo.GetByID(ctx, storeID, itemID)
	if err != nil {
		return common.SendNotFoundError(c, "Inventory item")
	}

	item.Name = req.Name
	item.SKU = req.SKU
	item.Quantity = req.Quantity
	item.UnitPrice = req.UnitPrice
	item.MinStock = req.MinStock
	if err := h.inventoryRepo.Update(ctx, item); err != nil {
		return common.SendServerError(c, "Failed to update inventory item")
	}
	return c.JSON(http.StatusOK, item)
}

// AdjustQuantityRequest represents the stock adjustment payload
type AdjustQuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// AdjustQuantity atomically adds delta to the stock level. Going below zero
// fails with a precondition error and no write.
func (h *InventoryHandlers) AdjustQuantity(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	itemID, err := common.ValidateUUID(c.Param("id"), "item id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req AdjustQuantityRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.Delta == 0 {
		return common.SendClientError(c, "delta must be non-zero")
	}

	if err := h.inventoryRepo.AdjustQuantity(ctx, storeID, itemID, req.Delta); err != nil {
		if apperrors.CodeOf(err) == apperrors.FailedPrecondition {
			return c.JSON(http.StatusPreconditionFailed,
				common.CreateErrorResponse("FAILED_PRECONDITION", "Insufficient stock", nil))
		}
		return common.SendServerError(c, "Failed to adjust quantity")
	}

	item, err := h.inventoryRepo.GetByID(ctx, storeID, itemID)
	if err != nil {
		return common.SendNotFoundError(c, "Inventory item")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *InventoryHandlers) DeleteItem(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	itemID, err := common.ValidateUUID(c.Param("id"), "item id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.inventoryRepo.Delete(ctx, storeID, itemID); err != nil {
		return common.SendServerError(c, "Failed to delete inventory item")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListItems lists stock; `low_stock=true` filters to items at or below
// their minimum.
func (h *InventoryHandlers) ListItems(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	if c.QueryParam("low_stock") == "true" {
		items, err := h.inventoryRepo.ListLowStock(ctx, storeID)
		if err != nil {
			return common.SendServerError(c, "Failed to list low stock items")
		}
		return c.JSON(http.StatusOK, items)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	items, err := h.inventoryRepo.List(ctx, storeID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list inventory")
	}
	return c.JSON(http.StatusOK, items)
}
