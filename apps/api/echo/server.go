package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/batch"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/fee"
	"github.com/trezcool/academia/core/notice"
	"github.com/trezcool/academia/core/ticket"
	"github.com/trezcool/academia/core/user"
)

type (
	// Deps are the collaborators of the API, built once at startup.
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Uploader   core.Uploader

		Issuer        *auth.Issuer
		Authenticator *auth.Authenticator

		Users      *user.Service
		Batches    *batch.Service
		Tickets    *ticket.Service
		Materials  *content.Service
		Recordings *content.Service
		Fees       *fee.Service
		Notices    *notice.Service

		// SignalShutdown is called when a handler fails with a core shutdown error.
		SignalShutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		deps    *Deps
		app     *echo.Echo
		metrics *metrics
	}
)

var _ Server = (*server)(nil)

func NewServer(deps *Deps) Server {
	if deps.SignalShutdown == nil {
		deps.SignalShutdown = func() {}
	}
	s := &server{
		deps:    deps,
		app:     echo.New(),
		metrics: newMetrics(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.metrics, s.deps.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(s.metrics.handler()))

	v1 := s.app.Group("/v1")
	authed := authMiddleware(s.deps.Authenticator, s.deps.Batches, conf.Auth.CookieName)

	registerAuthAPI(v1, authed, s.deps)
	registerUserAPI(v1, authed, s.deps.Users)
	registerTicketAPI(v1, authed, s.deps.Tickets, s.deps.Uploader)
	registerContentAPI(v1.Group("/materials", authed), s.deps.Materials, s.deps.Uploader)
	registerContentAPI(v1.Group("/recordings", authed), s.deps.Recordings, s.deps.Uploader)
	registerFeeAPI(v1, authed, s.deps.Fees)
	registerBatchAPI(v1, authed, s.deps.Batches)
	registerNoticeAPI(v1, authed, s.deps.Notices)
}

func (s *server) Start() error {
	s.app.Server.ReadTimeout = s.deps.Conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.deps.Conf.Server.WriteTimeout
	return s.app.Start(s.deps.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
