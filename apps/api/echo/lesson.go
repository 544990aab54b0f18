package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/user"
)

type lessonApi struct {
	deps *Deps
	svc  *curriculum.Service
}

func registerLessonAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := lessonApi{deps: deps, svc: deps.CurriculumSvc}
	instructor := roleMiddleware(deps.UserSvc, user.RoleInstructor)

	lg := g.Group("/courses/:slug/lessons", jwt)
	lg.POST("", api.create, instructor)
	lg.GET("/:lesson_id", api.retrieve)
	lg.PUT("/:lesson_id", api.update, instructor)
	lg.DELETE("/:lesson_id", api.destroy, instructor)
	// non students get a 404, like unknown lessons
	lg.POST("/:lesson_id/complete", api.toggleCompletion)
}

func (api *lessonApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data curriculum.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	lesson, err := api.svc.CreateLesson(ctx.Request().Context(), usr, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lesson)
}

// retrieve shows a lesson to the course owner, employees and enrolled students. A student
// visit is recorded on the enrollment progress.
func (api *lessonApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rctx := ctx.Request().Context()
	slug, lessonID := ctx.Param("slug"), ctx.Param("lesson_id")
	course, err := api.deps.CatalogSvc.GetCourse(rctx, slug)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	lesson, err := api.svc.GetLesson(rctx, course.ID, lessonID)
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}

	detail := LessonDetail{Lesson: lesson}
	switch {
	case usr.IsStudent():
		if !course.IsPublished() {
			return catalog.ErrCourseNotFound
		}
		progress, err := api.deps.EnrollmentSvc.VisitLesson(rctx, usr, slug, lessonID)
		if err != nil {
			return errors.Wrap(err, "visiting lesson")
		}
		detail.Progress = &progress
	case usr.IsEmployee(), usr.ID == course.InstructorID:
	default:
		return curriculum.ErrLessonNotFound
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *lessonApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data curriculum.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	lesson, err := api.svc.UpdateLesson(ctx.Request().Context(), usr, ctx.Param("slug"), ctx.Param("lesson_id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lesson)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteLesson(ctx.Request().Context(), usr, ctx.Param("slug"), ctx.Param("lesson_id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) toggleCompletion(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	progress, err := api.deps.EnrollmentSvc.ToggleLessonCompletion(
		ctx.Request().Context(),
		usr,
		ctx.Param("slug"),
		ctx.Param("lesson_id"),
	)
	if err != nil {
		return errors.Wrap(err, "toggling lesson completion")
	}
	return ctx.JSON(http.StatusOK, progress)
}

type LessonDetail struct {
	curriculum.Lesson
	Progress *enrollment.Progress `json:"progress,omitempty"`
}
