package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
)

type catalogApi struct {
	deps *Deps
	svc  *catalog.Service
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := catalogApi{deps: deps, svc: deps.CatalogSvc}
	employee := roleMiddleware(deps.UserSvc, user.RoleEmployee)
	instructor := roleMiddleware(deps.UserSvc, user.RoleInstructor)

	cg := g.Group("/categories")
	cg.GET("", api.listCategories, optionalJWT(jwt))
	cg.GET("/:slug", api.retrieveCategory)
	cg.POST("", api.createCategory, jwt, employee)
	cg.PUT("/:slug", api.updateCategory, jwt, employee)
	cg.DELETE("/:slug", api.destroyCategory, jwt, employee)

	tg := g.Group("/tags")
	tg.GET("", api.listTags)
	tg.POST("", api.createTag, jwt, employee)
	tg.PUT("/:id", api.updateTag, jwt, employee)
	tg.DELETE("/:id", api.destroyTag, jwt, employee)

	crg := g.Group("/courses")
	crg.GET("", api.listCourses)
	crg.GET("/mine", api.listOwnedCourses, jwt, instructor)
	crg.POST("", api.createCourse, jwt, instructor)
	crg.GET("/:slug", api.retrieveCourse, optionalJWT(jwt))
	crg.PUT("/:slug", api.updateCourse, jwt, instructor)
	crg.DELETE("/:slug", api.destroyCourse, jwt, instructor)
	crg.POST("/:slug/publish", api.publishCourse, jwt, instructor)
	crg.POST("/:slug/archive", api.archiveCourse, jwt, instructor)
}

// Categories

func (api *catalogApi) listCategories(ctx echo.Context) error {
	// inactive categories are only listed to employees asking for them
	activeOnly := true
	if all, _ := strconv.ParseBool(ctx.QueryParam("all")); all {
		usr, err := optionalUser(ctx, api.deps.UserSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		activeOnly = usr == nil || !usr.IsEmployee()
	}

	cats, err := api.svc.ListCategories(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "listing categories")
	}
	if cats == nil {
		cats = []catalog.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *catalogApi) retrieveCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) createCategory(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data catalog.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	cat, err := api.svc.CreateCategory(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *catalogApi) updateCategory(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data catalog.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}

	rctx := ctx.Request().Context()
	cat, err := api.svc.GetCategory(rctx, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}
	cat, err = api.svc.UpdateCategory(rctx, usr, cat.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) destroyCategory(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	cat, err := api.svc.GetCategory(rctx, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}
	if err := api.svc.DeleteCategory(rctx, usr, cat.ID); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Tags

func (api *catalogApi) listTags(ctx echo.Context) error {
	tags, err := api.svc.ListTags(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing tags")
	}
	if tags == nil {
		tags = []catalog.Tag{}
	}
	return ctx.JSON(http.StatusOK, tags)
}

func (api *catalogApi) createTag(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data catalog.NewTag
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTag")
	}
	tag, err := api.svc.CreateTag(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating tag")
	}
	return ctx.JSON(http.StatusCreated, tag)
}

func (api *catalogApi) updateTag(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data catalog.UpdateTag
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTag")
	}
	tag, err := api.svc.UpdateTag(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating tag")
	}
	return ctx.JSON(http.StatusOK, tag)
}

func (api *catalogApi) destroyTag(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteTag(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting tag")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Courses

func (api *catalogApi) listCourses(ctx echo.Context) error {
	var query catalog.CourseQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Course{})
	}
	courses, err := api.svc.ListPublished(ctx.Request().Context(), query, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) listOwnedCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.svc.ListOwned(ctx.Request().Context(), usr, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing owned courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	usr, err := optionalUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rctx := ctx.Request().Context()
	course, err := api.svc.GetVisibleCourse(rctx, usr, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	detail := CourseDetail{Course: course, IsFree: course.IsFree()}

	if detail.Tags, err = api.svc.CourseTags(rctx, course.ID); err != nil {
		return errors.Wrap(err, "getting course tags")
	}
	if detail.Lessons, err = api.deps.CurriculumSvc.ListLessons(rctx, course.ID); err != nil {
		return errors.Wrap(err, "listing lessons")
	}
	if detail.Reviews, err = api.deps.ReviewSvc.ListApproved(rctx, course.ID, core.Page{}); err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	if detail.EnrollmentCount, err = api.deps.EnrollmentSvc.CountForCourse(rctx, course.ID); err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	if usr != nil && usr.IsStudent() {
		_, err := api.deps.EnrollmentSvc.FindForStudent(rctx, usr.ID, course.ID)
		switch {
		case err == nil:
			detail.IsEnrolled = true
		case errors.Cause(err) != enrollment.ErrNotFound:
			return errors.Wrap(err, "finding enrollment")
		}
	}

	if detail.Tags == nil {
		detail.Tags = []catalog.Tag{}
	}
	if detail.Lessons == nil {
		detail.Lessons = []curriculum.Lesson{}
	}
	if detail.Reviews == nil {
		detail.Reviews = []review.Review{}
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *catalogApi) createCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data catalog.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	course, err := api.svc.CreateCourse(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *catalogApi) updateCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data catalog.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	course, err := api.svc.UpdateCourse(ctx.Request().Context(), usr, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteCourse(ctx.Request().Context(), usr, ctx.Param("slug")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) publishCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	course, err := api.svc.Publish(ctx.Request().Context(), usr, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) archiveCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	course, err := api.svc.Archive(ctx.Request().Context(), usr, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "archiving course")
	}
	return ctx.JSON(http.StatusOK, course)
}

// CourseDetail is the course page: the course with its curriculum, approved reviews and
// enrollment figures.
type CourseDetail struct {
	catalog.Course
	Tags            []catalog.Tag       `json:"tags"`
	Lessons         []curriculum.Lesson `json:"lessons"`
	Reviews         []review.Review     `json:"reviews"`
	EnrollmentCount int                 `json:"enrollment_count"`
	IsEnrolled      bool                `json:"is_enrolled"`
	IsFree          bool                `json:"is_free"`
}
