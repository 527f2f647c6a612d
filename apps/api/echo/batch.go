package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/batch"
)

type batchApi struct {
	svc *batch.Service
}

func registerBatchAPI(g *echo.Group, authed echo.MiddlewareFunc, svc *batch.Service) {
	api := batchApi{svc: svc}

	cg := g.Group("/courses", authed)
	cg.POST("", api.createCourse)
	cg.GET("", api.queryCourses)
	cg.GET("/:id", api.retrieveCourse)
	cg.PATCH("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroyCourse)

	bg := g.Group("/batches", authed)
	bg.POST("", api.createBatch)
	bg.GET("", api.queryBatches)
	bg.GET("/:id", api.retrieveBatch)
	bg.PATCH("/:id", api.updateBatch)
	bg.DELETE("/:id", api.destroyBatch)
}

// Courses

func (api *batchApi) createCourse(ctx echo.Context) error {
	var data batch.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	c, err := api.svc.CreateCourse(ctx.Request().Context(), contextSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ok(ctx, http.StatusCreated, "course", c)
}

func (api *batchApi) queryCourses(ctx echo.Context) error {
	filter := new(batch.CourseFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to CourseFilter")
	}
	courses, err := api.svc.ListCourses(ctx.Request().Context(), contextSubject(ctx), *filter)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ok(ctx, http.StatusOK, "courses", nonNil(courses))
}

func (api *batchApi) retrieveCourse(ctx echo.Context) error {
	c, err := api.svc.GetCourse(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ok(ctx, http.StatusOK, "course", c)
}

func (api *batchApi) updateCourse(ctx echo.Context) error {
	var data batch.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	c, err := api.svc.UpdateCourse(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ok(ctx, http.StatusOK, "course", c)
}

func (api *batchApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return done(ctx, "Course deleted.")
}

// Batches

func (api *batchApi) createBatch(ctx echo.Context) error {
	var data batch.NewBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBatch")
	}
	b, err := api.svc.CreateBatch(ctx.Request().Context(), contextSubject(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}
	return ok(ctx, http.StatusCreated, "batch", b)
}

func (api *batchApi) queryBatches(ctx echo.Context) error {
	filter := new(batch.BatchFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to BatchFilter")
	}
	batches, err := api.svc.ListBatches(ctx.Request().Context(), contextSubject(ctx), *filter)
	if err != nil {
		return errors.Wrap(err, "querying batches")
	}
	return ok(ctx, http.StatusOK, "batches", nonNil(batches))
}

func (api *batchApi) retrieveBatch(ctx echo.Context) error {
	b, err := api.svc.GetBatch(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding batch by ID")
	}
	return ok(ctx, http.StatusOK, "batch", b)
}

func (api *batchApi) updateBatch(ctx echo.Context) error {
	var data batch.UpdateBatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBatch")
	}
	b, err := api.svc.UpdateBatch(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}
	return ok(ctx, http.StatusOK, "batch", b)
}

func (api *batchApi) destroyBatch(ctx echo.Context) error {
	if err := api.svc.DeleteBatch(ctx.Request().Context(), contextSubject(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return done(ctx, "Batch deleted.")
}
