package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/notice"
)

type noticeApi struct {
	svc *notice.Service
}

func registerNoticeAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *notice.Service) {
	api := noticeApi{svc: svc}

	ng := g.Group("/notices", authed)
	ng.POST("", api.create)
	ng.GET("", api.query)
	ng.GET("/:id", api.retrieve)
	ng.DELETE("/:id", api.destroy)
}

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	n, err := api.svc.Create(ctx.Request().Context(), contextSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ok(ctx, http.StatusCreated, "notice", n)
}

func (api *noticeApi) query(ctx echo.Context) error {
	notices, err := api.svc.List(ctx.Request().Context(), contextSubject(ctx))
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	return ok(ctx, http.StatusOK, "notices", nonNil(notices))
}

func (api *noticeApi) retrieve(ctx echo.Context) error {
	n, err := api.svc.Get(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding notice by ID")
	}
	return ok(ctx, http.StatusOK, "notice", n)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return done(ctx, "Notice deleted.")
}
