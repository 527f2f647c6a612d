package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

// Issuer checks credentials and issues signed tokens.
type Issuer struct {
	users      IdentityStore
	key        []byte
	appName    string
	ttl        time.Duration
	refreshTTL time.Duration
	opts       options
}

func NewIssuer(conf *core.Config, users IdentityStore, opts ...Option) *Issuer {
	return &Issuer{
		users:      users,
		key:        []byte(conf.SecretKey),
		appName:    conf.AppName,
		ttl:        conf.Auth.TokenTTL,
		refreshTTL: conf.Auth.RefreshTTL,
		opts:       newOptions(opts),
	}
}

// Issue returns a token for the account with email if pwd matches its password and the account is
// active. Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
func (iss *Issuer) Issue(ctx context.Context, email, pwd string) (Token, error) {
	usr, err := iss.users.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			compareDummy(pwd)
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return Token{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return Token{}, ErrAccountDisabled
	}
	return iss.sign(usr, iss.opts.nowFunc())
}

// Refresh issues a new token for id while its original login is within the refresh window.
// id must come from Authenticator.Authenticate.
func (iss *Issuer) Refresh(ctx context.Context, id Identity) (Token, error) {
	now := iss.opts.nowFunc()
	if !now.Before(id.OrigIssuedAt.Add(iss.refreshTTL)) {
		return Token{}, ErrRefreshExpired
	}
	usr, err := iss.users.Lookup(ctx, id.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Token{}, ErrTokenInvalid
		}
		return Token{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return Token{}, ErrAccountDisabled
	}
	return iss.sign(usr, id.OrigIssuedAt)
}

func (iss *Issuer) sign(usr user.User, origIssuedAt time.Time) (Token, error) {
	now := iss.opts.nowFunc()
	if origIssuedAt.IsZero() || origIssuedAt.After(now) {
		origIssuedAt = now
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    iss.appName,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(iss.ttl)),
		},
		Role:         usr.Role,
		OrigIssuedAt: origIssuedAt.Unix(),
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(iss.key)
	if err != nil {
		return Token{}, errors.Wrap(err, "signing token")
	}
	return Token{
		Value:     ss,
		ID:        claims.ID,
		UserID:    usr.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// compareDummy spends the time of a real password check.
func compareDummy(pwd string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pwd))
}
