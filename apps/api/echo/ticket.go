package echoapi

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ticket"
)

const ticketAttachmentsFolder = "support"

type ticketApi struct {
	svc      *ticket.Service
	uploader core.Uploader
}

func registerTicketAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *ticket.Service, uploader core.Uploader) {
	api := ticketApi{svc: svc, uploader: uploader}

	tg := g.Group("/support", authed)
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.GET("/my", api.queryMine)
	tg.GET("/:id", api.retrieve)
	tg.PATCH("/:id/status", api.updateStatus)
	tg.DELETE("/:id", api.destroy)
}

func (api *ticketApi) create(ctx echo.Context) error {
	var data ticket.NewTicket
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTicket")
	}
	if isMultipart(ctx) {
		fh, err := formFile(ctx, "attachment")
		if err != nil {
			return err
		}
		if fh != nil {
			// nothing is stored for a ticket that would be rejected
			if data, err = api.svc.Check(contextSubject(ctx), data); err != nil {
				return errors.Wrap(err, "checking NewTicket")
			}
			if data.AttachmentURL, err = storeFile(ctx, api.uploader, fh, ticketAttachmentsFolder); err != nil {
				return err
			}
		}
	}

	t, err := api.svc.Create(ctx.Request().Context(), contextSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating ticket")
	}
	return ok(ctx, http.StatusCreated, "ticket", t)
}

func (api *ticketApi) query(ctx echo.Context) error {
	filter := new(ticket.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	tickets, err := api.svc.List(ctx.Request().Context(), contextSubject(ctx), *filter)
	if err != nil {
		return errors.Wrap(err, "querying tickets")
	}
	return ok(ctx, http.StatusOK, "tickets", nonNil(tickets))
}

func (api *ticketApi) queryMine(ctx echo.Context) error {
	filter := new(ticket.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	tickets, err := api.svc.ListMine(ctx.Request().Context(), contextSubject(ctx), *filter)
	if err != nil {
		return errors.Wrap(err, "querying own tickets")
	}
	return ok(ctx, http.StatusOK, "tickets", nonNil(tickets))
}

func (api *ticketApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding ticket by ID")
	}
	return ok(ctx, http.StatusOK, "ticket", t)
}

func (api *ticketApi) updateStatus(ctx echo.Context) error {
	var data ticket.UpdateStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	t, err := api.svc.UpdateStatus(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating ticket status")
	}
	return ok(ctx, http.StatusOK, "ticket", t)
}

func (api *ticketApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting ticket")
	}
	return done(ctx, "Ticket deleted.")
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formFile returns the file of the multipart field, or nil when the request carries no such file.
func formFile(ctx echo.Context, field string) (*multipart.FileHeader, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s form file", field)
	}
	return fh, nil
}

// storeFile uploads fh to folder and returns its URL.
func storeFile(ctx echo.Context, uploader core.Uploader, fh *multipart.FileHeader, folder string) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", fh.Filename)
	}
	defer file.Close()

	url, err := uploader.Upload(ctx.Request().Context(), file, fh.Filename, folder)
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", fh.Filename)
	}
	return url, nil
}

// nonNil keeps empty lists as [] in responses.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
