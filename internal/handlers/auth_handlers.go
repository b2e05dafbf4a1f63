package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"repairhub/internal/apperrors"
	"repairhub/internal/authz"
	"repairhub/internal/common"
	"repairhub/internal/identity"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
	"repairhub/internal/session"
	"repairhub/internal/tokens"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	provider  identity.Provider
	tokenSvc  tokens.TokenService
	userRepo  repositories.UserRepository
	storeRepo repositories.StoreRepository
}

func NewAuthHandlers(provider identity.Provider, tokenSvc tokens.TokenService,
	userRepo repositories.UserRepository, storeRepo repositories.StoreRepository) *AuthHandlers {
	return &AuthHandlers{
		provider:  provider,
		tokenSvc:  tokenSvc,
		userRepo:  userRepo,
		storeRepo: storeRepo,
	}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	// Redirect is the path the client wanted before being sent to login.
	// Echoed back so the client can resume navigation after sign-in.
	Redirect string `json:"redirect"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	models.TokenResponse
	User       *models.User `json:"user"`
	RedirectTo string       `json:"redirect_to"`
}

// Login verifies credentials and issues a token pair. The redirect target
// is role-based unless the client asked to return somewhere specific.
func (h *AuthHandlers) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}

	sess, err := h.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrTooManyRequests):
			return echo.NewHTTPError(http.StatusTooManyRequests, session.ErrRateLimited.Error())
		case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, session.ErrInvalidCredentials.Error())
		case errors.Is(err, identity.ErrInvalidEmail):
			return echo.NewHTTPError(http.StatusBadRequest, session.ErrInvalidEmail.Error())
		default:
			return echo.NewHTTPError(http.StatusServiceUnavailable, session.ErrNetwork.Error())
		}
	}

	user, err := h.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Account record not found")
	}

	tokenResponse, err := h.tokenSvc.Generate(ctx, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	redirectTo := req.Redirect
	if redirectTo == "" || !strings.HasPrefix(redirectTo, "/") {
		if user.Role.IsPlatformOperator() {
			redirectTo = session.AdminLanding
		} else {
			redirectTo = session.DashboardLanding
		}
	}

	return c.JSON(http.StatusOK, LoginResponse{
		TokenResponse: *tokenResponse,
		User:          user,
		RedirectTo:    redirectTo,
	})
}

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	StoreName string `json:"store_name" validate:"required"`
}

// SignupResponse represents the signup response
type SignupResponse struct {
	models.TokenResponse
	User  *models.User  `json:"user"`
	Store *models.Store `json:"store"`
}

// Signup provisions a new store with the caller as its owner. The fresh
// store starts on the default inactive snapshot until billing completes.
func (h *AuthHandlers) Signup(c echo.Context) error {
	ctx := c.Request().Context()

	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "signup", err.Error())
	}

	userID, passwordHash, err := h.provider.Register(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidEmail) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid email address")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create account")
	}

	if existing, err := h.userRepo.GetByEmail(ctx, req.Email); err == nil && existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "User already exists")
	}

	store := &models.Store{
		ID:           uuid.New(),
		Name:         req.StoreName,
		OwnerUserID:  userID,
		Subscription: models.DefaultSnapshot(),
	}
	if err := h.storeRepo.Create(ctx, store); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create store")
	}

	user := &models.User{
		ID:           userID,
		StoreID:      &store.ID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         authz.RoleOwner,
		Status:       "active",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := h.userRepo.Create(ctx, user); err != nil {
		// Roll the store back so a failed signup leaves no ownerless row.
		if delErr := h.storeRepo.Delete(ctx, store.ID); delErr != nil {
			c.Logger().Errorf("signup rollback failed for store %s: %v", store.ID, delErr)
		}
		if apperrors.CodeOf(err) == apperrors.FailedPrecondition {
			return echo.NewHTTPError(http.StatusConflict, "User already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}

	tokenResponse, err := h.tokenSvc.Generate(ctx, user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate tokens")
	}

	return c.JSON(http.StatusCreated, SignupResponse{
		TokenResponse: *tokenResponse,
		User:          user,
		Store:         store,
	})
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates the refresh token and mints a new pair reflecting the
// user record's current role.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Refresh token is required")
	}

	tokenResponse, err := h.tokenSvc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token")
	}
	return c.JSON(http.StatusOK, tokenResponse)
}

// LogoutRequest represents the logout request payload
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the refresh token if one was supplied. Local state clears
// regardless of revocation outcome.
func (h *AuthHandlers) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	if _, ok := common.GetUserIDFromContext(ctx); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req LogoutRequest
	_ = c.Bind(&req)

	if req.RefreshToken != "" {
		if err := h.tokenSvc.Revoke(ctx, req.RefreshToken); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to revoke token")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandlers) Me(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, user)
}
