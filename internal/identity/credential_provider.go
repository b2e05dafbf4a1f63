package identity

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"repairhub/internal/caching"
	"repairhub/internal/repositories"

	"repairhub/internal/apperrors"
)

const (
	sessionTTL     = 30 * 24 * time.Hour
	maxAttempts    = 5
	attemptsWindow = 15 * time.Minute
)

// credentialProvider verifies email/password against the users table and
// keeps persisted sessions in redis.
type credentialProvider struct {
	userRepo repositories.UserRepository
	cacheSvc caching.CacheService
}

func NewCredentialProvider(userRepo repositories.UserRepository, cacheSvc caching.CacheService) Provider {
	return &credentialProvider{userRepo: userRepo, cacheSvc: cacheSvc}
}

func (p *credentialProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	attempts, err := p.cacheSvc.IncrementAttempts(ctx, email, attemptsWindow)
	if err == nil && attempts > maxAttempts {
		return nil, ErrTooManyRequests
	}
	// A rate-limiter outage must not lock everyone out; fall through.

	user, err := p.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("identity: lookup failed: %w", err)
	}

	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	if err := p.cacheSvc.SetSession(ctx, sessionID, user.ID.String(), sessionTTL); err != nil {
		return nil, fmt.Errorf("identity: persist session: %w", err)
	}
	_ = p.cacheSvc.ResetAttempts(ctx, email)

	return &Session{ID: sessionID, UserID: user.ID, Email: user.Email}, nil
}

func (p *credentialProvider) Register(ctx context.Context, email, password string) (uuid.UUID, string, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return uuid.Nil, "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return uuid.Nil, "", ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("identity: hash password: %w", err)
	}
	return uuid.New(), string(hash), nil
}

func (p *credentialProvider) Restore(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	userIDStr, err := p.cacheSvc.GetSession(ctx, sessionID)
	if err != nil {
		if err == caching.ErrCacheMiss {
			return nil, nil
		}
		return nil, fmt.Errorf("identity: restore session: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("identity: corrupt session record: %w", err)
	}

	user, err := p.userRepo.GetByID(ctx, userID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.NotFound {
			// Dangling identity: session points at a deleted user. Drop the
			// session key so the stale entry does not outlive the account.
			_ = p.cacheSvc.DeleteSession(ctx, sessionID)
			return nil, nil
		}
		return nil, fmt.Errorf("identity: load user: %w", err)
	}

	return &Session{ID: sessionID, UserID: user.ID, Email: user.Email}, nil
}

func (p *credentialProvider) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return p.cacheSvc.DeleteSession(ctx, sessionID)
}
