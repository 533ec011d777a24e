// Package identity adapts identity providers. A Backend authenticates
// credentials and tokens; a Client wraps a Backend with the signed-in state
// and change notifications a single session needs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUserDisabled       = errors.New("user disabled")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrUnavailable        = errors.New("identity provider unavailable")
)

// AuthError is returned for every credential, token or provider failure.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(op string, err error) error {
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}
	return &AuthError{Op: op, Err: err}
}

// Identity is an authenticated account as reported by the provider.
type Identity struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    *string   `json:"photoURL"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Backend is implemented by Local and Toolkit.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// UpdateDisplayName changes the display name of the token's account.
	UpdateDisplayName(ctx context.Context, token, name string) error
	// Verify returns the identity a token belongs to.
	Verify(ctx context.Context, token string) (*Identity, error)
	// Revoke invalidates a token before it expires.
	Revoke(ctx context.Context, token string) error
}

// Provider is the signed-in view of one session.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	// OnIdentityChange registers fn. fn is called once with the current
	// identity (nil when signed out) and again after every change.
	OnIdentityChange(fn func(*Identity)) (unsubscribe func())
	UpdateDisplayName(ctx context.Context, id *Identity, name string) error
	Current() *Identity
}
