package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/user"
)

type enrollmentApi struct {
	deps *Deps
	svc  *enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := enrollmentApi{deps: deps, svc: deps.EnrollmentSvc}
	student := roleMiddleware(deps.UserSvc, user.RoleStudent)
	manager := roleMiddleware(deps.UserSvc, user.RoleInstructor, user.RoleEmployee)

	eg := g.Group("/enrollments", jwt)
	eg.POST("/enroll/:course_id", api.enroll, student)
	eg.GET("/progress/:enrollment_id", api.progress, student)
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.GET("/:id/activities", api.activities, manager)
	eg.POST("/:id/complete", api.complete, manager)
	eg.PUT("/:id/status", api.setStatus, manager)
	eg.DELETE("/:id", api.destroy, roleMiddleware(deps.UserSvc, user.RoleEmployee))
}

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), usr, ctx.Param("course_id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *enrollmentApi) progress(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	progress, err := api.svc.ListProgress(ctx.Request().Context(), usr, ctx.Param("enrollment_id"))
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	if progress == nil {
		progress = []enrollment.Progress{}
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var query enrollment.Query
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}
	if query.Status != "" && !query.Status.IsValid() {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}

	enrollments, err := api.svc.List(ctx.Request().Context(), usr, query, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rctx := ctx.Request().Context()
	e, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	pct, err := api.svc.ProgressPercentage(rctx, e)
	if err != nil {
		return errors.Wrap(err, "computing progress percentage")
	}
	return ctx.JSON(http.StatusOK, EnrollmentDetail{Enrollment: e, ProgressPercentage: pct})
}

func (api *enrollmentApi) activities(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rctx := ctx.Request().Context()
	e, err := api.svc.Get(rctx, usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	acts, err := api.svc.Activities(rctx, enrollment.ActivityQuery{EnrollmentID: e.ID, Limit: bindPage(ctx).Limit()})
	if err != nil {
		return errors.Wrap(err, "listing activities")
	}
	if acts == nil {
		acts = []enrollment.Activity{}
	}
	return ctx.JSON(http.StatusOK, acts)
}

func (api *enrollmentApi) complete(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data enrollment.SetGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetGrade")
	}
	e, err := api.svc.Complete(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "completing enrollment")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) setStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data enrollment.SetStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetStatus")
	}
	e, err := api.svc.SetStatus(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting enrollment status")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type EnrollmentDetail struct {
	enrollment.Enrollment
	ProgressPercentage int `json:"progress_percentage"`
}
