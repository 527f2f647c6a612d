package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *fee.Service) {
	api := feeApi{svc: svc}

	fg := g.Group("/fees", authed)
	fg.POST("", api.create)
	fg.GET("", api.query)
	fg.GET("/:id", api.retrieve)
	fg.PATCH("/:id", api.update)
	fg.DELETE("/:id", api.destroy)
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	rec, err := api.svc.Create(ctx.Request().Context(), contextSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ok(ctx, http.StatusCreated, "fee", rec)
}

func (api *feeApi) query(ctx echo.Context) error {
	filter := new(fee.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	recs, err := api.svc.List(ctx.Request().Context(), contextSubject(ctx), *filter)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	return ok(ctx, http.StatusOK, "fees", nonNil(recs))
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.Get(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding fee by ID")
	}
	return ok(ctx, http.StatusOK, "fee", rec)
}

func (api *feeApi) update(ctx echo.Context) error {
	var data fee.UpdateRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecord")
	}
	rec, err := api.svc.Update(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ok(ctx, http.StatusOK, "fee", rec)
}

func (api *feeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return done(ctx, "Fee deleted.")
}
