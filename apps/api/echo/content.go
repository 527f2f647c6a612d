package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/content"
	"github.com/trezcool/academia/core/policy"
)

type contentApi struct {
	svc      *content.Service
	uploader core.Uploader
	folder   string
	one      string
	many     string
}

// registerContentAPI mounts the item endpoints of svc on g, which already requires authentication.
func registerContentAPI(g *echo.Group, svc *content.Service, uploader core.Uploader) {
	kind := string(svc.Kind())
	api := contentApi{
		svc:      svc,
		uploader: uploader,
		folder:   kind + "s",
		one:      kind,
		many:     kind + "s",
	}

	g.POST("", api.create)
	g.GET("", api.query)
	g.GET("/:id", api.retrieve)
	g.PATCH("/:id/scope", api.updateScope)
	g.POST("/:id/view", api.view)
	g.GET("/:id/views", api.views)
	g.DELETE("/:id", api.destroy)
}

// create accepts either a JSON body with a url, or a multipart form with a "file" to upload
// and a "scope" field ("all" or comma separated batch ids).
func (api *contentApi) create(ctx echo.Context) error {
	subj := contextSubject(ctx)
	var data content.NewItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewItem")
	}

	if isMultipart(ctx) {
		data.Scope = policy.ParseScope(ctx.FormValue("scope"))
		fh, err := formFile(ctx, "file")
		if err != nil {
			return err
		}
		if fh != nil {
			// nothing is stored for an item that would be rejected
			if data, err = api.svc.Check(subj, data, true); err != nil {
				return errors.Wrapf(err, "checking %s", api.one)
			}
			if data.URL, err = storeFile(ctx, api.uploader, fh, api.folder); err != nil {
				return err
			}
		}
	}

	it, err := api.svc.Create(ctx.Request().Context(), subj, data)
	if err != nil {
		return errors.Wrapf(err, "creating %s", api.one)
	}
	return ok(ctx, http.StatusCreated, api.one, it)
}

func (api *contentApi) query(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	items, err := api.svc.List(ctx.Request().Context(), contextSubject(ctx), *filter)
	if err != nil {
		return errors.Wrapf(err, "querying %s", api.many)
	}
	return ok(ctx, http.StatusOK, api.many, nonNil(items))
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	it, err := api.svc.Get(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "finding %s by ID", api.one)
	}
	return ok(ctx, http.StatusOK, api.one, it)
}

func (api *contentApi) updateScope(ctx echo.Context) error {
	var data content.UpdateScope
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateScope")
	}
	it, err := api.svc.UpdateScope(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrapf(err, "updating %s scope", api.one)
	}
	return ok(ctx, http.StatusOK, api.one, it)
}

func (api *contentApi) view(ctx echo.Context) error {
	v, err := api.svc.RecordView(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "recording %s view", api.one)
	}
	return ok(ctx, http.StatusCreated, "view", v)
}

func (api *contentApi) views(ctx echo.Context) error {
	views, err := api.svc.Views(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "listing %s views", api.one)
	}
	return ok(ctx, http.StatusOK, "views", nonNil(views))
}

func (api *contentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrapf(err, "deleting %s", api.one)
	}
	return done(ctx, "Deleted.")
}
