package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/authz"
)

type contextKey string

const (
	UserIDKey  contextKey = "user_id"
	StoreIDKey contextKey = "store_id"
	RoleKey    contextKey = "role"
)

// ErrorResponse is the standard error envelope for every JSON endpoint.
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

func SendForbiddenError(c echo.Context, message string) error {
	if message == "" {
		message = "Forbidden"
	}
	return c.JSON(http.StatusForbidden, CreateErrorResponse("FORBIDDEN", message, nil))
}

// ValidateUUID parses a path or query id, rejecting empty and malformed
// values with a field-specific message.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid id", fieldName)
	}
	return id, nil
}

// ValidatePaginationParams clamps limit and offset to sane bounds.
func ValidatePaginationParams(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetUserIDFromContext extracts the authenticated user id.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetStoreIDFromContext extracts the caller's store id. Platform operators
// have no store; the second return is false for them.
func GetStoreIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	storeID, ok := ctx.Value(StoreIDKey).(uuid.UUID)
	return storeID, ok
}

// GetRoleFromContext extracts the caller's role from verified token claims.
func GetRoleFromContext(ctx context.Context) (authz.Role, bool) {
	role, ok := ctx.Value(RoleKey).(authz.Role)
	return role, ok
}
