package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/common"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
)

// CustomerHandlers manages the client book of a store.
type CustomerHandlers struct {
	customerRepo repositories.CustomerRepository
	repairRepo   repositories.RepairRepository
}

func NewCustomerHandlers(customerRepo repositories.CustomerRepository, repairRepo repositories.RepairRepository) *CustomerHandlers {
	return &CustomerHandlers{customerRepo: customerRepo, repairRepo: repairRepo}
}

// CustomerRequest represents the create/update payload
type CustomerRequest struct {
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone"`
	Notes     *string `json:"notes"`
}

func (h *CustomerHandlers) CreateCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "customer", err.Error())
	}

	customer := &models.Customer{
		ID:        uuid.New(),
		StoreID:   storeID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := h.customerRepo.Create(ctx, customer); err != nil {
		return common.SendServerError(c, "Failed to create customer")
	}
	return c.JSON(http.StatusCreated, customer)
}

func (h *CustomerHandlers) GetCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	customerID, err := common.ValidateUUID(c.Param("id"), "customer id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	customer, err := h.customerRepo.GetByID(ctx, storeID, customerID)
	if err != nil {
		return common.SendNotFoundError(c, "Customer")
	}
	return c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandlers) UpdateCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	customerID, err := common.ValidateUUID(c.Param("id"), "customer id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req CustomerRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "customer", err.Error())
	}

	customer, err := h.customerRepo.GetByID(ctx, storeID, customerID)
	if err != nil {
		return common.SendNotFoundError(c, "Customer")
	}

	customer.FirstName = req.FirstName
	customer.LastName = req.LastName
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Notes = req.Notes
	if err := h.customerRepo.Update(ctx, customer); err != nil {
		return common.SendServerError(c, "Failed to update customer")
	}
	return c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandlers) DeleteCustomer(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	customerID, err := common.ValidateUUID(c.Param("id"), "customer id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	if err := h.customerRepo.Delete(ctx, storeID, customerID); err != nil {
		return common.SendServerError(c, "Failed to delete customer")
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCustomers lists or searches the store's clients. A `q` query flips
// into search mode.
func (h *CustomerHandlers) ListCustomers(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	if q := c.QueryParam("q"); q != "" {
		customers, err := h.customerRepo.Search(ctx, storeID, q, limit)
		if err != nil {
			return common.SendServerError(c, "Failed to search customers")
		}
		return c.JSON(http.StatusOK, customers)
	}

	customers, err := h.customerRepo.List(ctx, storeID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list customers")
	}
	return c.JSON(http.StatusOK, customers)
}

// ListCustomerRepairs returns the repair history of one client.
func (h *CustomerHandlers) ListCustomerRepairs(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	customerID, err := common.ValidateUUID(c.Param("id"), "customer id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	repairs, err := h.repairRepo.ListByCustomer(ctx, storeID, customerID)
	if err != nil {
		return common.SendServerError(c, "Failed to list repairs")
	}
	return c.JSON(http.StatusOK, repairs)
}
