package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/authz"
	"repairhub/internal/common"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
	"repairhub/internal/storage"
)

const photoURLExpiry = 15 * time.Minute

// RepairHandlers manages repair tickets, including status transitions and
// device photos.
type RepairHandlers struct {
	repairRepo repositories.RepairRepository
	photos     storage.PhotoStorage
}

func NewRepairHandlers(repairRepo repositories.RepairRepository, photos storage.PhotoStorage) *RepairHandlers {
	return &RepairHandlers{repairRepo: repairRepo, photos: photos}
}

// RepairRequest represents the repair intake payload
type RepairRequest struct {
	CustomerID   string   `json:"customer_id" validate:"required,uuid"`
	DeviceBrand  string   `json:"device_brand" validate:"required"`
	DeviceModel  string   `json:"device_model" validate:"required"`
	Issue        string   `json:"issue" validate:"required"`
	Price        *float64 `json:"price"`
	TechnicianID *string  `json:"technician_id" validate:"omitempty,uuid"`
}

// CreateRepair opens a new ticket in the created status.
func (h *RepairHandlers) CreateRepair(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req RepairRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "repair", err.Error())
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return common.SendClientError(c, "customer_id is not a valid id")
	}

	repair := &models.Repair{
		ID:          uuid.New(),
		StoreID:     storeID,
		CustomerID:  customerID,
		DeviceBrand: req.DeviceBrand,
		DeviceModel: req.DeviceModel,
		Issue:       req.Issue,
		Status:      models.RepairCreated,
		Price:       req.Price,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if req.TechnicianID != nil {
		techID, err := uuid.Parse(*req.TechnicianID)
		if err != nil {
			return common.SendClientError(c, "technician_id is not a valid id")
		}
		repair.TechnicianID = &techID
	}

	if err := h.repairRepo.Create(ctx, repair); err != nil {
		return common.SendServerError(c, "Failed to create repair")
	}
	return c.JSON(http.StatusCreated, repair)
}

func (h *RepairHandlers) GetRepair(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	repairID, err := common.ValidateUUID(c.Param("id"), "repair id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	repair, err := h.repairRepo.GetByID(ctx, storeID, repairID)
	if err != nil {
		return common.SendNotFoundError(c, "Repair")
	}
	return c.JSON(http.StatusOK, repair)
}

func (h *RepairHandlers) UpdateRepair(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	repairID, err := common.ValidateUUID(c.Param("id"), "repair id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req RepairRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "repair", err.Error())
	}

	repair, err := h.repairRepo.GetByID(ctx, storeID, repairID)
	if err != nil {
		return common.SendNotFoundError(c, "Repair")
	}

	repair.DeviceBrand = req.DeviceBrand
	repair.DeviceModel = req.DeviceModel
	repair.Issue = req.Issue
	repair.Price = req.Price
	if req.TechnicianID != nil {
		techID, err := uuid.Parse(*req.TechnicianID)
		if err != nil {
			return common.SendClientError(c, "technician_id is not a valid id")
		}
		repair.TechnicianID = &techID
	} else {
		repair.TechnicianID = nil
	}

	if err := h.repairRepo.Update(ctx, repair); err != nil {
		return common.SendServerError(c, "Failed to update repair")
	}
	return c.JSON(http.StatusOK, repair)
}

// UpdateStatusRequest represents the status transition payload
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus moves a ticket through the lifecycle. The caller's role
// limits which statuses it may set; reception can only park tickets in
// intake states.
func (h *RepairHandlers) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	role, ok := common.GetRoleFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	repairID, err := common.ValidateUUID(c.Param("id"), "repair id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if !models.ValidRepairStatus(req.Status) {
		return common.SendClientError(c, "Unknown repair status")
	}
	if !authz.CanSetRepairStatus(role, req.Status) {
		return common.SendForbiddenError(c, "Status not settable by caller")
	}

	if err := h.repairRepo.UpdateStatus(ctx, storeID, repairID, req.Status); err != nil {
		return common.SendServerError(c, "Failed to update status")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"id":     repairID.String(),
		"status": req.Status,
	})
}

// UploadPhoto attaches a device photo to a ticket via multipart form.
func (h *RepairHandlers) UploadPhoto(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	repairID, err := common.ValidateUUID(c.Param("id"), "repair id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if _, err := h.repairRepo.GetByID(ctx, storeID, repairID); err != nil {
		return common.SendNotFoundError(c, "Repair")
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return common.SendClientError(c, "A photo file is required")
	}
	src, err := file.Open()
	if err != nil {
		return common.SendServerError(c, "Failed to read upload")
	}
	defer src.Close()

	key, err := h.photos.UploadPhoto(ctx, storeID, repairID, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		return common.SendServerError(c, "Failed to store photo")
	}
	if err := h.repairRepo.AppendPhotoKey(ctx, storeID, repairID, key); err != nil {
		return common.SendServerError(c, "Failed to attach photo")
	}

	return c.JSON(http.StatusCreated, map[string]string{"key": key})
}

// GetPhotoURLs returns short-lived download links for a ticket's photos.
func (h *RepairHandlers) GetPhotoURLs(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	repairID, err := common.ValidateUUID(c.Param("id"), "repair id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	repair, err := h.repairRepo.GetByID(ctx, storeID, repairID)
	if err != nil {
		return common.SendNotFoundError(c, "Repair")
	}

	urls := make([]string, 0, len(repair.PhotoKeys))
	for _, key := range repair.PhotoKeys {
		url, err := h.photos.GetPhotoURL(ctx, key, photoURLExpiry)
		if err != nil {
			return common.SendServerError(c, "Failed to sign photo URL")
		}
		urls = append(urls, url)
	}
	return c.JSON(http.StatusOK, map[string][]string{"urls": urls})
}

func (h *RepairHandlers) DeleteRepair(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	repairID, err := common.ValidateUUID(c.Param("id"), "repair id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	repair, err := h.repairRepo.GetByID(ctx, storeID, repairID)
	if err != nil {
		return common.SendNotFoundError(c, "Repair")
	}
	for _, key := range repair.PhotoKeys {
		if err := h.photos.DeletePhoto(ctx, key); err != nil {
			return common.SendServerError(c, "Failed to delete photos")
		}
	}

	if err := h.repairRepo.Delete(ctx, storeID, repairID); err != nil {
		return common.SendServerError(c, "Failed to delete repair")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RepairHandlers) ListRepairs(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	repairs, err := h.repairRepo.List(ctx, storeID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list repairs")
	}
	return c.JSON(http.StatusOK, repairs)
}
