package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/user"
)

type userApi struct {
	deps *Deps
	svc  *user.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := userApi{deps: deps, svc: deps.UserSvc}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.register)
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.PUT("/me/profile", api.updateProfile)
	ag.PUT("/me/photo", api.setPhoto)
	ag.PUT("/me/password", api.setPassword)

	// employee endpoints
	eg := ag.Group("", roleMiddleware(api.svc, user.RoleEmployee))
	eg.GET("", api.query)
	eg.PUT("/:id/active", api.setActive)
	eg.DELETE("/:id", api.destroy)

	ig := g.Group("/instructors")
	ig.GET("", api.listInstructors)
	ig.GET("/:id", api.retrieveInstructor)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	acc, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	data.Username = core.CleanString(data.Username, true /* lower */)
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.deps.Conf, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.deps.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.deps.Conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	acc, err := api.svc.GetAccount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting account")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	acc, err := api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, acc)
}

func (api *userApi) setPhoto(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data SetPhotoRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPhotoRequest")
	}
	data.PhotoKey = core.CleanString(data.PhotoKey)
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	old, err := api.svc.SetPhoto(rctx, usr.ID, data.PhotoKey)
	if err != nil {
		return errors.Wrap(err, "setting photo")
	}
	if old != data.PhotoKey {
		core.DeleteBlobs(rctx, api.deps.Blobs, api.deps.Logger, old)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) setPassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data SetPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPasswordRequest")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}
	if err := usr.CheckPassword(data.CurrentPassword); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "current_password", Error: "wrong password"})
	}

	sp := user.NewSetPassword(usr, data.Password, data.PasswordConfirm)
	if _, err := api.svc.SetPassword(ctx.Request().Context(), usr, sp); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) query(ctx echo.Context) error {
	var filter user.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	if filter.Role != "" && !filter.Role.IsValid() {
		return ctx.JSON(http.StatusOK, []user.User{})
	}

	users, err := api.svc.Query(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) setActive(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// no self-lockout
	if ctx.Param("id") == ctxUsr.ID {
		return errHttpForbidden
	}
	var data SetActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}
	if err := api.deps.Validate.Struct(data); err != nil {
		return err
	}

	usr, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting user active flag")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctx.Param("id") == ctxUsr.ID {
		return errHttpForbidden
	}

	rctx := ctx.Request().Context()
	if _, err := api.svc.GetByID(rctx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if err := api.svc.Delete(rctx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) listInstructors(ctx echo.Context) error {
	accs, err := api.svc.ListInstructors(ctx.Request().Context(), bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing instructors")
	}
	if accs == nil {
		accs = []user.Account{}
	}
	return ctx.JSON(http.StatusOK, accs)
}

func (api *userApi) retrieveInstructor(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	acc, err := api.svc.GetAccount(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting instructor account")
	}
	if !acc.User.IsInstructor() || !acc.User.IsActive {
		return user.ErrNotFound
	}

	courses, err := api.deps.CatalogSvc.ListPublished(
		rctx,
		catalog.CourseQuery{InstructorID: acc.User.ID},
		bindPage(ctx),
	)
	if err != nil {
		return errors.Wrap(err, "listing instructor courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, InstructorResponse{Account: acc, Courses: courses})
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SetPhotoRequest struct {
		PhotoKey string `json:"photo_key" validate:"max=255"`
	}

	SetPasswordRequest struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required"`
	}

	SetActiveRequest struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}

	InstructorResponse struct {
		user.Account
		Courses []catalog.Course `json:"courses"`
	}
)
