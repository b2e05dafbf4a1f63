package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"repairhub/internal/apperrors"
	"repairhub/internal/billing"
	"repairhub/internal/common"
	"repairhub/internal/subscription"
)

// BillingHandlers exposes the checkout, portal and cancel operations. All
// authorization decisions happen inside the billing service; the handlers
// only translate transport.
type BillingHandlers struct {
	billingSvc billing.Service
	resolver   *subscription.Resolver
}

func NewBillingHandlers(billingSvc billing.Service, resolver *subscription.Resolver) *BillingHandlers {
	return &BillingHandlers{billingSvc: billingSvc, resolver: resolver}
}

// GetPlans lists the purchasable plans.
func (h *BillingHandlers) GetPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, subscription.AvailablePlans())
}

// GetSubscription returns the caller's store snapshot. Missing billing
// state reads as the default inactive snapshot, never an error.
func (h *BillingHandlers) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	snap, err := h.resolver.Fetch(ctx, storeID)
	if err != nil {
		return common.SendServerError(c, "Failed to read subscription")
	}
	return c.JSON(http.StatusOK, snap)
}

// CheckoutRequest represents the checkout session payload
type CheckoutRequest struct {
	PlanID     string `json:"plan_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CreateCheckoutSession starts a hosted checkout for the caller's store.
func (h *BillingHandlers) CreateCheckoutSession(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "checkout", err.Error())
	}

	sess, err := h.billingSvc.CreateCheckoutSession(ctx, userID, storeID, req.PlanID, req.SuccessURL, req.CancelURL)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// PortalRequest represents the billing portal payload
type PortalRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// CreatePortalSession opens the self-service billing portal.
func (h *BillingHandlers) CreatePortalSession(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req PortalRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "return_url", "A valid return URL is required")
	}

	sess, err := h.billingSvc.CreatePortalSession(ctx, userID, storeID, req.ReturnURL)
	if err != nil {
		return billingError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// CancelSubscription flags the store's subscription to end at the period
// boundary. Access continues until then.
func (h *BillingHandlers) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	if err := h.billingSvc.CancelSubscription(ctx, userID, storeID); err != nil {
		return billingError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Subscription will end at the current period",
	})
}

func billingError(c echo.Context, err error) error {
	code := apperrors.CodeOf(err)
	return c.JSON(apperrors.HTTPStatus(code), common.CreateErrorResponse(string(code), apperrors.MessageOf(err), nil))
}
