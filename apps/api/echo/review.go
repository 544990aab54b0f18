package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
)

type reviewApi struct {
	deps *Deps
	svc  *review.Service
}

func registerReviewAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := reviewApi{deps: deps, svc: deps.ReviewSvc}
	employee := roleMiddleware(deps.UserSvc, user.RoleEmployee)

	g.POST("/courses/:slug/review", api.create, jwt)
	g.GET("/courses/:slug/reviews", api.listApproved)

	rg := g.Group("/reviews", jwt, employee)
	rg.GET("/pending", api.listPending)
	rg.POST("/:id/approve", api.approve)
	rg.DELETE("/:id", api.reject)
}

// create files a review. Users that are not enrolled in the course get a validation error.
func (api *reviewApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data review.NewReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	r, err := api.svc.Create(ctx.Request().Context(), usr, ctx.Param("slug"), data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *reviewApi) listApproved(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	course, err := api.deps.CatalogSvc.GetVisibleCourse(rctx, nil, ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	reviews, err := api.svc.ListApproved(rctx, course.ID, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	if reviews == nil {
		reviews = []review.Review{}
	}
	return ctx.JSON(http.StatusOK, reviews)
}

func (api *reviewApi) listPending(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reviews, err := api.svc.ListPending(ctx.Request().Context(), usr, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing pending reviews")
	}
	if reviews == nil {
		reviews = []review.Review{}
	}
	return ctx.JSON(http.StatusOK, reviews)
}

func (api *reviewApi) approve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.Approve(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving review")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *reviewApi) reject(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Reject(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "rejecting review")
	}
	return ctx.NoContent(http.StatusNoContent)
}
