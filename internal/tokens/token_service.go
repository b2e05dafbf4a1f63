package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairhub/internal/apperrors"
	"repairhub/internal/caching"
	"repairhub/internal/models"
	"repairhub/internal/repositories"
)

// Claims are the verified facts a request is authorized against. Role and
// store id are embedded so server-side checks don't hit the document store
// on every request; ClaimsVersion ties the token to the user record state
// it was minted from, so a role change invalidates outstanding tokens.
type Claims struct {
	Role          string `json:"role"`
	StoreID       string `json:"store_id,omitempty"`
	ClaimsVersion int64  `json:"claims_ver"`
	jwt.RegisteredClaims
}

// TokenService issues and validates access tokens and manages hashed
// refresh tokens in redis.
type TokenService interface {
	Generate(ctx context.Context, user *models.User) (*models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	// Validate parses the token, checks the signature and expiry, and
	// rejects tokens whose claims version is older than the user record's.
	Validate(ctx context.Context, token string) (*Claims, error)
	Revoke(ctx context.Context, refreshToken string) error
	// Reissue mints a fresh token pair reflecting the user record's current
	// role, store id and claims version. Called after a role-sync.
	Reissue(ctx context.Context, userID uuid.UUID) (*models.TokenResponse, error)
}

const claimsVersionCacheTTL = 5 * time.Minute

type tokenService struct {
	userRepo   repositories.UserRepository
	cacheSvc   caching.CacheService
	logger     *zap.Logger
	jwtSecret  []byte
	tokenTTL   time.Duration
	refreshTTL time.Duration
}

func NewTokenService(userRepo repositories.UserRepository, cacheSvc caching.CacheService,
	logger *zap.Logger, jwtSecret string, tokenTTL, refreshTTL time.Duration) TokenService {
	return &tokenService{
		userRepo:   userRepo,
		cacheSvc:   cacheSvc,
		logger:     logger,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *tokenService) Generate(ctx context.Context, user *models.User) (*models.TokenResponse, error) {
	now := time.Now()
	tokenID := uuid.NewString()

	storeID := ""
	if user.StoreID != nil {
		storeID = user.StoreID.String()
	}

	claims := Claims{
		Role:          user.Role.String(),
		StoreID:       storeID,
		ClaimsVersion: user.ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "repairhub-auth",
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{"repairhub-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	refreshToken := generateSecureToken()
	refreshTokenHash := hashToken(refreshToken)

	refreshData := fmt.Sprintf("%s:%d", user.ID.String(), now.Add(s.refreshTTL).Unix())
	cacheKey := fmt.Sprintf("repairhub:refresh-token:%s", refreshTokenHash)
	if err := s.cacheSvc.SetString(ctx, cacheKey, refreshData, s.refreshTTL); err != nil {
		s.logger.Warn("failed to store refresh token", zap.Error(err))
		// Token generation itself succeeded; refresh will just not work.
	}

	return &models.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenTTL.Seconds()),
		RefreshToken: refreshToken,
		UserID:       user.ID.String(),
		StoreID:      storeID,
		IssuedAt:     now,
	}, nil
}

func (s *tokenService) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	refreshTokenHash := hashToken(refreshToken)
	cacheKey := fmt.Sprintf("repairhub:refresh-token:%s", refreshTokenHash)

	data, err := s.cacheSvc.GetString(ctx, cacheKey)
	if err != nil {
		return nil, apperrors.E(apperrors.Unauthenticated, "invalid refresh token", err)
	}

	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return nil, apperrors.E(apperrors.Unauthenticated, "invalid refresh token", nil)
	}
	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		_ = s.cacheSvc.Delete(ctx, cacheKey)
		return nil, apperrors.E(apperrors.Unauthenticated, "refresh token expired", err)
	}

	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, apperrors.E(apperrors.Unauthenticated, "invalid refresh token", err)
	}

	// Rotate: the old refresh token dies with its use.
	_ = s.cacheSvc.Delete(ctx, cacheKey)

	return s.Reissue(ctx, userID)
}

func (s *tokenService) Validate(ctx context.Context, token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apperrors.E(apperrors.Unauthenticated, "invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, apperrors.E(apperrors.Unauthenticated, "invalid token claims", nil)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperrors.E(apperrors.Unauthenticated, "invalid token subject", err)
	}

	// Stale-claims check: a token minted before the last role change is a
	// security bug, not a UX bug. The authoritative version lives in the
	// users table; the cache only shortens the hot path.
	current, err := s.currentClaimsVersion(ctx, userID)
	if err != nil {
		return nil, apperrors.E(apperrors.Internal, "claims version lookup failed", err)
	}
	if claims.ClaimsVersion != current {
		return nil, apperrors.E(apperrors.Unauthenticated, "token claims out of date", nil)
	}

	return claims, nil
}

func (s *tokenService) Revoke(ctx context.Context, refreshToken string) error {
	cacheKey := fmt.Sprintf("repairhub:refresh-token:%s", hashToken(refreshToken))
	return s.cacheSvc.Delete(ctx, cacheKey)
}

func (s *tokenService) Reissue(ctx context.Context, userID uuid.UUID) (*models.TokenResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, user)
}

func (s *tokenService) currentClaimsVersion(ctx context.Context, userID uuid.UUID) (int64, error) {
	if version, ok, err := s.cacheSvc.GetClaimsVersion(ctx, userID); err == nil && ok {
		return version, nil
	}

	version, err := s.userRepo.GetClaimsVersion(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.cacheSvc.SetClaimsVersion(ctx, userID, version, claimsVersionCacheTTL); err != nil {
		s.logger.Warn("claims version cache write failed", zap.Error(err))
	}
	return version, nil
}

func generateSecureToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return base64.URLEncoding.EncodeToString(bytes)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
