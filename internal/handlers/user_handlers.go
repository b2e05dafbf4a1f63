package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"repairhub/internal/authz"
	"repairhub/internal/caching"
	"repairhub/internal/common"
	"repairhub/internal/repositories"
)

// UserHandlers manages the staff accounts of a store.
type UserHandlers struct {
	userRepo repositories.UserRepository
	cacheSvc caching.CacheService
}

func NewUserHandlers(userRepo repositories.UserRepository, cacheSvc caching.CacheService) *UserHandlers {
	return &UserHandlers{userRepo: userRepo, cacheSvc: cacheSvc}
}

// ListUsers lists the staff of the caller's store.
func (h *UserHandlers) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = common.ValidatePaginationParams(limit, offset)

	users, err := h.userRepo.List(ctx, storeID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to list users")
	}
	return c.JSON(http.StatusOK, users)
}

// GetUser returns one staff member of the caller's store.
func (h *UserHandlers) GetUser(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	userID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		return common.SendNotFoundError(c, "User")
	}
	if user.StoreID == nil || *user.StoreID != storeID {
		role, _ := common.GetRoleFromContext(ctx)
		if !authz.CapabilitiesFor(role).AllStores {
			return common.SendNotFoundError(c, "User")
		}
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateRoleRequest represents the role change payload
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UpdateRole assigns a new role to a staff member. The write bumps the
// target's claims version, so tokens carrying the old role stop validating
// and the target is forced onto a freshly issued token.
func (h *UserHandlers) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()

	callerRole, ok := common.GetRoleFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	targetID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	newRole, ok := authz.ParseRole(req.Role)
	if !ok {
		return common.SendClientError(c, "Unknown role")
	}
	if !authz.CanAssignRole(callerRole, newRole) {
		return common.SendForbiddenError(c, "Role not assignable by caller")
	}

	target, err := h.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return common.SendNotFoundError(c, "User")
	}
	if !authz.CapabilitiesFor(callerRole).AllStores {
		storeID, ok := common.GetStoreIDFromContext(ctx)
		if !ok || target.StoreID == nil || *target.StoreID != storeID {
			return common.SendNotFoundError(c, "User")
		}
	}

	version, err := h.userRepo.UpdateRole(ctx, targetID, newRole)
	if err != nil {
		return common.SendServerError(c, "Failed to update role")
	}

	// Drop the cached claims version so the next request re-reads the
	// authoritative one and stale tokens are rejected immediately.
	_ = h.cacheSvc.DeleteClaimsVersion(ctx, targetID)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":        targetID,
		"role":           newRole,
		"claims_version": version,
	})
}

// DeleteUser removes a staff member from the caller's store.
func (h *UserHandlers) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()

	storeID, ok := common.GetStoreIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	userID, err := common.ValidateUUID(c.Param("id"), "user id")
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	callerID, _ := common.GetUserIDFromContext(ctx)
	if callerID == userID {
		return common.SendClientError(c, "Cannot delete your own account")
	}

	if err := h.userRepo.Delete(ctx, storeID, userID); err != nil {
		return common.SendServerError(c, "Failed to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}
