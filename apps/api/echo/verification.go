package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/core/verification"
)

type verificationApi struct {
	deps *Deps
	svc  *verification.Service
}

func registerVerificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := verificationApi{deps: deps, svc: deps.VerificationSvc}
	instructor := roleMiddleware(deps.UserSvc, user.RoleInstructor)
	employee := roleMiddleware(deps.UserSvc, user.RoleEmployee)

	vg := g.Group("/verifications", jwt)
	vg.POST("", api.submit, instructor)
	vg.GET("/mine", api.mine, instructor)
	vg.GET("/pending", api.listPending, employee)
	vg.POST("/:id/review", api.review, employee)
}

func (api *verificationApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data verification.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	sub, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting verification request")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *verificationApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sub, err := api.svc.Mine(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting verification request")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *verificationApi) listPending(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	subs, err := api.svc.ListPending(ctx.Request().Context(), usr, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing pending verification requests")
	}
	if subs == nil {
		subs = []verification.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *verificationApi) review(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data verification.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	sub, err := api.svc.Review(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing verification request")
	}
	return ctx.JSON(http.StatusOK, sub)
}
