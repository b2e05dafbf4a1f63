package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"repairhub/internal/common"
	"repairhub/internal/repositories"
)

// StoreHandlers exposes store account management. Listing every store is a
// platform-operator operation; everything else is scoped to the caller's own
// store.
type StoreHandlers struct {
	storeRepo repositories.StoreRepository
}

func NewStoreHandlers(storeRepo repositories.StoreRepository) *StoreHandlers {
	return &StoreHandlers{storeRepo: storeRepo}
}

// ListStores lists all store accounts. Mounted behind the platform-operator
// middleware.
func (h *StoreHandlers) ListStores(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	stores, err := h.storeRepo.List(ctx, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list stores")
	}
	return c.JSON(http.StatusOK, stores)
}

// GetMyStore returns the caller's store record, snapshot included.
func (h *StoreHandlers) GetMyStore(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	store, err := h.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return common.SendNotFoundError(c, "Store")
	}
	return c.JSON(http.StatusOK, store)
}

// UpdateStoreRequest represents the store settings payload
type UpdateStoreRequest struct {
	Name string `json:"name" validate:"required"`
}

// UpdateMyStore updates the caller's store settings. The billing snapshot
// is not writable here; only the webhook path changes it.
func (h *StoreHandlers) UpdateMyStore(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req UpdateStoreRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "name", "Store name is required")
	}

	store, err := h.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return common.SendNotFoundError(c, "Store")
	}

	store.Name = req.Name
	if err := h.storeRepo.Update(ctx, store); err != nil {
		return common.SendServerError(c, "Failed to update store")
	}
	return c.JSON(http.StatusOK, store)
}

// GetStore returns any store by id. Platform-operator only.
func (h *StoreHandlers) GetStore(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, err := common.ValidateUUID(c.Param("id"), "store id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	store, err := h.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return common.SendNotFoundError(c, "Store")
	}
	return c.JSON(http.StatusOK, store)
}
