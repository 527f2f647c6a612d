package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Authenticator verifies tokens. It only reads the identity store and the denylist.
type Authenticator struct {
	users    IdentityStore
	denylist Denylist
	key      []byte
	parser   *jwt.Parser
	opts     options
}

func NewAuthenticator(conf *core.Config, users IdentityStore, denylist Denylist, opts ...Option) *Authenticator {
	o := newOptions(opts)
	return &Authenticator{
		users:    users,
		denylist: denylist,
		key:      []byte(conf.SecretKey),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(conf.AppName),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(o.nowFunc),
		),
		opts: o,
	}
}

// Authenticate resolves rawToken to the Identity it was issued for.
func (a *Authenticator) Authenticate(ctx context.Context, rawToken string) (Identity, error) {
	if rawToken == "" {
		return Identity{}, ErrTokenMissing
	}

	claims := new(Claims)
	_, err := a.parser.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return a.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	if claims.ID == "" || claims.Subject == "" || claims.IssuedAt == nil || !claims.Role.Valid() {
		return Identity{}, ErrTokenInvalid
	}

	if a.denylist != nil {
		revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Identity{}, errors.Wrap(err, "checking token denylist")
		}
		if revoked {
			return Identity{}, ErrTokenRevoked
		}
	}

	// the account must still exist, be active and have the same role
	usr, err := a.users.Lookup(ctx, claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return Identity{}, ErrTokenInvalid
		}
		return Identity{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive || usr.Role != claims.Role {
		return Identity{}, ErrTokenInvalid
	}

	return Identity{
		UserID:       usr.ID,
		Role:         usr.Role,
		TokenID:      claims.ID,
		IssuedAt:     claims.IssuedAt.Time,
		OrigIssuedAt: time.Unix(claims.OrigIssuedAt, 0),
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// Revoke puts the token of id on the denylist until it expires.
func (a *Authenticator) Revoke(ctx context.Context, id Identity) error {
	if a.denylist == nil || id.TokenID == "" {
		return nil
	}
	return errors.Wrap(a.denylist.Revoke(ctx, id.TokenID, id.ExpiresAt), "revoking token")
}
