// Package testutil wires the application services on top of the in-memory store and
// provides the fixtures shared by the test suites.
package testutil

import (
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/core/verification"
	"github.com/trezcool/learnhub/services/blob"
	"github.com/trezcool/learnhub/services/email"
	"github.com/trezcool/learnhub/services/logger"
	"github.com/trezcool/learnhub/storage/database"
	"github.com/trezcool/learnhub/storage/database/dummy"
	"github.com/trezcool/learnhub/storage/database/postgres"
)

// Env holds a complete set of services sharing one store.
type Env struct {
	Conf       *core.Config
	Now        time.Time
	Clock      core.Clock
	Logger     core.Logger
	Translator ut.Translator
	Validate   *validator.Validate
	Blobs      *blobsvc.LocalStore
	BlobDir    string
	Mail       core.EmailService

	DB *dummydb.DB // nil on PostgreSQL
	Tx core.Transactor

	UserRepo       user.Repository
	CatalogRepo    catalog.Repository
	LessonRepo     curriculum.Repository
	EnrollmentRepo enrollment.Repository
	ReviewRepo     review.Repository

	UserSvc         *user.Service
	CatalogSvc      *catalog.Service
	CurriculumSvc   *curriculum.Service
	EnrollmentSvc   *enrollment.Service
	ReviewSvc       *review.Service
	VerificationSvc *verification.Service
	DashboardSvc    *dashboard.Service
}

// NewValidator returns a validator with every payload validation registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate
}

// NewEnv builds the services on a fresh in-memory store; their clock stays at now until
// SetNow moves it. The console outbox is emptied.
func NewEnv(t *testing.T, now time.Time) *Env {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}

	env := newEnv(t, now)
	env.DB = db
	env.Tx = dummydb.NewTransactor(db)
	env.UserRepo = dummydb.NewUserRepository(db)
	env.CatalogRepo = dummydb.NewCatalogRepository(db)
	env.LessonRepo = dummydb.NewLessonRepository(db)
	env.EnrollmentRepo = dummydb.NewEnrollmentRepository(db)
	env.ReviewRepo = dummydb.NewReviewRepository(db)
	env.wire(dummydb.NewVerificationRepository(db), dummydb.NewDashboardRepository(db))
	return env
}

// NewPostgresEnv is NewEnv on the PostgreSQL database named by TEST_DATABASE_URL, emptied
// first. Tests are skipped when the variable is not set.
func NewPostgresEnv(t *testing.T, now time.Time) *Env {
	t.Helper()

	db := PrepareDB(t)
	env := newEnv(t, now)
	env.Tx = database.NewTransactor(db)
	env.UserRepo = postgres.NewUserRepository(db)
	env.CatalogRepo = postgres.NewCatalogRepository(db)
	env.LessonRepo = postgres.NewLessonRepository(db)
	env.EnrollmentRepo = postgres.NewEnrollmentRepository(db)
	env.ReviewRepo = postgres.NewReviewRepository(db)
	env.wire(postgres.NewVerificationRepository(db), postgres.NewDashboardRepository(db))
	return env
}

func newEnv(t *testing.T, now time.Time) *Env {
	conf := core.NewTestConfig()
	conf.Blob.LocalRoot = t.TempDir()
	translator := core.NewTranslator()
	env := &Env{
		Conf:       conf,
		Now:        now.UTC(),
		Logger:     logsvc.NewRollbarLogger(log.New(ioutil.Discard, "TEST : ", 0), conf),
		Translator: translator,
		Validate:   NewValidator(translator),
		Blobs:      blobsvc.NewLocalStore(conf.Blob.LocalRoot),
		BlobDir:    conf.Blob.LocalRoot,
		Mail:       emailsvc.NewConsoleService(conf, nil),
	}
	env.Clock = func() time.Time { return env.Now }
	emailsvc.ClearSentMessages()
	return env
}

// wire builds the services on top of the repositories set on env.
func (env *Env) wire(verifications verification.Repository, dashboards dashboard.Repository) {
	env.UserSvc = user.NewService(env.Tx, env.UserRepo, env.Validate, env.Clock)
	env.CatalogSvc = catalog.NewService(env.Tx, env.CatalogRepo, env.Blobs, env.Logger, env.Validate, env.Clock)
	env.CurriculumSvc = curriculum.NewService(
		env.Tx, env.LessonRepo, env.CatalogSvc, env.Blobs, env.Logger, env.Validate, env.Clock,
	)
	env.EnrollmentSvc = enrollment.NewService(
		env.Tx, env.EnrollmentRepo, env.CatalogSvc, env.CurriculumSvc, env.Mail, env.Validate, env.Clock,
	)
	env.ReviewSvc = review.NewService(
		env.Tx, env.ReviewRepo, env.CatalogSvc, env.EnrollmentSvc, env.UserSvc, env.Mail, env.Validate, env.Clock,
	)
	env.VerificationSvc = verification.NewService(
		env.Tx, verifications, env.UserSvc, env.Blobs, env.Logger, env.Mail, env.Validate, env.Clock,
	)
	env.DashboardSvc = dashboard.NewService(env.Tx, dashboards, env.EnrollmentSvc, env.Clock)
}

// SetNow moves the clock of every service to now.
func (env *Env) SetNow(now time.Time) {
	env.Now = now.UTC()
}
