package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/core/user"
)

type dashboardApi struct {
	deps *Deps
	svc  *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := dashboardApi{deps: deps, svc: deps.DashboardSvc}
	g.GET("/dashboard", api.retrieve, jwt)
}

// retrieve returns the dashboard of the requesting user's role.
func (api *dashboardApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data interface{}
	rctx := ctx.Request().Context()
	switch usr.Role {
	case user.RoleStudent:
		data, err = api.svc.Student(rctx, usr)
	case user.RoleInstructor:
		data, err = api.svc.Instructor(rctx, usr)
	case user.RoleEmployee:
		data, err = api.svc.Employee(rctx, usr)
	default:
		return errHttpForbidden
	}
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, data)
}
