package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/core/verification"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Translator ut.Translator
		Validate   *validator.Validate
		Blobs      core.BlobStore

		UserSvc         *user.Service
		CatalogSvc      *catalog.Service
		CurriculumSvc   *curriculum.Service
		EnrollmentSvc   *enrollment.Service
		ReviewSvc       *review.Service
		VerificationSvc *verification.Service
		DashboardSvc    *dashboard.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		address string
		app     *echo.Echo
	}
)

var _ Server = (*server)(nil)

// NewServer sets up the API. shutdown is signaled when a handler reports a core.shutdown error.
func NewServer(address string, shutdown chan<- struct{}, deps *Deps) Server {
	s := &server{
		address: address,
		app:     echo.New(),
	}
	s.setup(shutdown, deps)
	return s
}

func (s *server) setup(shutdown chan<- struct{}, deps *Deps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	var signalShutdown func()
	if shutdown != nil {
		signalShutdown = func() {
			select {
			case shutdown <- struct{}{}:
			default:
			}
		}
	}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))

	registerUserAPI(v1, jwt, deps)
	registerCatalogAPI(v1, jwt, deps)
	registerLessonAPI(v1, jwt, deps)
	registerEnrollmentAPI(v1, jwt, deps)
	registerReviewAPI(v1, jwt, deps)
	registerVerificationAPI(v1, jwt, deps)
	registerDashboardAPI(v1, jwt, deps)
}

func (s *server) Start() error {
	return s.app.Start(s.address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to LearnHub API!")
}
