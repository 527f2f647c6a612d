package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/policy"
	"github.com/trezcool/academia/core/user"
)

const (
	contextIdentityKey = "identity"
	contextSubjectKey  = "subject"

	msgPasswordReset = "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
)

// authMiddleware resolves the credential of the request, from the Authorization header first and
// the session cookie otherwise, to an auth.Identity and the policy.Subject acting on its behalf.
func authMiddleware(authn *auth.Authenticator, batches *batch.Service, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			raw, err := requestToken(ctx, cookieName)
			if err != nil {
				return err
			}
			id, err := authn.Authenticate(ctx.Request().Context(), raw)
			if err != nil {
				return err
			}
			subj, err := batches.Subject(ctx.Request().Context(), id.UserID, id.Role)
			if err != nil {
				return errors.Wrap(err, "resolving subject")
			}
			ctx.Set(contextIdentityKey, id)
			ctx.Set(contextSubjectKey, subj)
			return next(ctx)
		}
	}
}

func requestToken(ctx echo.Context, cookieName string) (string, error) {
	if header := ctx.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", auth.ErrTokenMissing
		}
		return strings.TrimSpace(token), nil
	}
	if cookie, err := ctx.Cookie(cookieName); err == nil {
		return cookie.Value, nil
	}
	return "", auth.ErrTokenMissing
}

func contextIdentity(ctx echo.Context) (auth.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(auth.Identity)
	return id, ok
}

// contextSubject returns the subject set by authMiddleware. Routes without it act as nobody.
func contextSubject(ctx echo.Context) policy.Subject {
	subj, _ := ctx.Get(contextSubjectKey).(policy.Subject)
	return subj
}

type authApi struct {
	conf     *core.Config
	issuer   *auth.Issuer
	authn    *auth.Authenticator
	users    *user.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerAuthAPI(g *echo.Group, authed echo.MiddlewareFunc, deps *Deps) {
	api := authApi{
		conf:     deps.Conf,
		issuer:   deps.Issuer,
		authn:    deps.Authenticator,
		users:    deps.Users,
		validate: deps.Validate,
		logger:   deps.Logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` & `/password-reset` per client IP
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/logout", api.logout, authed)
	ag.POST("/refresh", api.refresh, authed)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	tok, err := api.issuer.Issue(rctx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	usr, err := api.users.Lookup(rctx, tok.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if usr, err = api.users.SetLastLogin(rctx, usr); err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}

	api.setCookie(ctx, tok.Value, tok.ExpiresAt)
	return ctx.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"token":      tok.Value,
		"expires_at": tok.ExpiresAt,
		"user":       usr,
	})
}

func (api *authApi) logout(ctx echo.Context) error {
	if id, ok := contextIdentity(ctx); ok {
		if err := api.authn.Revoke(ctx.Request().Context(), id); err != nil {
			return errors.Wrap(err, "revoking token")
		}
	}
	api.setCookie(ctx, "", time.Unix(0, 0))
	return done(ctx, "Logged out.")
}

func (api *authApi) refresh(ctx echo.Context) error {
	id, ok := contextIdentity(ctx)
	if !ok {
		return auth.ErrTokenMissing
	}
	rctx := ctx.Request().Context()
	tok, err := api.issuer.Refresh(rctx, id)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	// the previous token must not outlive its replacement
	if err = api.authn.Revoke(rctx, id); err != nil {
		return errors.Wrap(err, "revoking token")
	}

	api.setCookie(ctx, tok.Value, tok.ExpiresAt)
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "token": tok.Value, "expires_at": tok.ExpiresAt})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.users.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return done(ctx, msgPasswordReset)
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := api.users.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return done(ctx, "Password has been reset with the new password.")
}

func (api *authApi) setCookie(ctx echo.Context, value string, expires time.Time) {
	ctx.SetCookie(&http.Cookie{
		Name:     api.conf.Auth.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   api.conf.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
