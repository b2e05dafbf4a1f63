package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Session is a persisted identity-provider session. The core trusts only
// the user id and email from this boundary; roles always come from the
// backing user record or a verified token, never from here.
type Session struct {
	ID     string
	UserID uuid.UUID
	Email  string
}

// Provider-specific failure codes. Callers translate these into the small
// user-facing set; anything else is treated as a network/internal failure.
var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrUserNotFound       = errors.New("identity: user not found")
	ErrTooManyRequests    = errors.New("identity: too many attempts")
	ErrInvalidEmail       = errors.New("identity: invalid email address")
)

// Provider is the identity/session boundary: verify a credential, create an
// account, restore a persisted session, end a session.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// Register validates the credential pair and returns the new account id
	// plus the password hash to persist alongside the user record.
	Register(ctx context.Context, email, password string) (uuid.UUID, string, error)
	// Restore returns the session for a persisted session id, or (nil, nil)
	// when no session exists.
	Restore(ctx context.Context, sessionID string) (*Session, error)
	SignOut(ctx context.Context, sessionID string) error
}
