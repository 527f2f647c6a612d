// Package auth issues and verifies the session tokens of the application.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	ErrInvalidCredentials = core.NewAuthError("invalid credentials")
	ErrAccountDisabled    = core.NewAuthError("account disabled")
	ErrTokenMissing       = core.NewAuthError("missing or malformed token")
	ErrTokenExpired       = core.NewAuthError("token expired")
	ErrTokenInvalid       = core.NewAuthError("invalid token")
	ErrTokenRevoked       = core.NewAuthError("token revoked")
	ErrRefreshExpired     = core.NewAuthError("refresh has expired")
)

type (
	// IdentityStore resolves accounts. *user.Service implements it.
	IdentityStore interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
		Lookup(ctx context.Context, id string) (user.User, error)
	}

	// Denylist keeps the ids of revoked tokens until they expire.
	Denylist interface {
		Revoke(ctx context.Context, tokenID string, until time.Time) error
		IsRevoked(ctx context.Context, tokenID string) (bool, error)
	}

	// Claims represents the authorization claims transmitted via a JWT.
	Claims struct {
		jwt.RegisteredClaims
		Role         core.Role `json:"role"`
		OrigIssuedAt int64     `json:"oriat,omitempty"`
	}

	// Token is a signed session credential.
	Token struct {
		Value     string    `json:"token"`
		ID        string    `json:"-"`
		UserID    string    `json:"-"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	// Identity is what a valid token resolves to. It never carries secrets.
	Identity struct {
		UserID       string
		Role         core.Role
		TokenID      string
		IssuedAt     time.Time
		OrigIssuedAt time.Time
		ExpiresAt    time.Time
	}

	// Option customizes an Issuer or an Authenticator.
	Option func(*options)

	options struct {
		nowFunc func() time.Time
	}
)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.nowFunc = now }
}

func newOptions(opts []Option) options {
	o := options{nowFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
