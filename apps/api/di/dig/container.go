package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/learnhub/apps/api/echo"
	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/core/verification"
	blobsvc "github.com/trezcool/learnhub/services/blob"
	emailsvc "github.com/trezcool/learnhub/services/email"
	logsvc "github.com/trezcool/learnhub/services/logger"
	"github.com/trezcool/learnhub/storage/database"
	dummydb "github.com/trezcool/learnhub/storage/database/dummy"
	"github.com/trezcool/learnhub/storage/database/postgres"
)

// EngineMemory runs the API on the in-memory store; nothing survives a restart.
const EngineMemory = "memory"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Closer releases the database connection, if any.
	Closer func() error

	Stores struct {
		dig.Out
		Close         Closer
		Tx            core.Transactor
		Users         user.Repository
		Catalog       catalog.Repository
		Lessons       curriculum.Repository
		Enrollments   enrollment.Repository
		Reviews       review.Repository
		Verifications verification.Repository
		Dashboard     dashboard.Repository
	}

	ServicesIn struct {
		dig.In
		Logger   core.Logger
		Validate *validator.Validate
		Blobs    core.BlobStore
		Mail     core.EmailService
		Stores   StoresIn
	}

	StoresIn struct {
		dig.In
		Tx            core.Transactor
		Users         user.Repository
		Catalog       catalog.Repository
		Lessons       curriculum.Repository
		Enrollments   enrollment.Repository
		Reviews       review.Repository
		Verifications verification.Repository
		Dashboard     dashboard.Repository
	}

	Services struct {
		dig.Out
		User         *user.Service
		Catalog      *catalog.Service
		Curriculum   *curriculum.Service
		Enrollment   *enrollment.Service
		Review       *review.Service
		Verification *verification.Service
		Dashboard    *dashboard.Service
	}

	DepsIn struct {
		dig.In
		Conf         *core.Config
		Logger       core.Logger
		Translator   ut.Translator
		Validate     *validator.Validate
		Blobs        core.BlobStore
		User         *user.Service
		Catalog      *catalog.Service
		Curriculum   *curriculum.Service
		Enrollment   *enrollment.Service
		Review       *review.Service
		Verification *verification.Service
		Dashboard    *dashboard.Service
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newPostgresStores(conf *core.Config) (Stores, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return Stores{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return Stores{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return Stores{}, err
	}

	return Stores{
		Close:         db.Close,
		Tx:            database.NewTransactor(db),
		Users:         postgres.NewUserRepository(db),
		Catalog:       postgres.NewCatalogRepository(db),
		Lessons:       postgres.NewLessonRepository(db),
		Enrollments:   postgres.NewEnrollmentRepository(db),
		Reviews:       postgres.NewReviewRepository(db),
		Verifications: postgres.NewVerificationRepository(db),
		Dashboard:     postgres.NewDashboardRepository(db),
	}, nil
}

func newMemoryStores() (Stores, error) {
	db, err := dummydb.Open()
	if err != nil {
		return Stores{}, err
	}
	return Stores{
		Close:         func() error { return nil },
		Tx:            dummydb.NewTransactor(db),
		Users:         dummydb.NewUserRepository(db),
		Catalog:       dummydb.NewCatalogRepository(db),
		Lessons:       dummydb.NewLessonRepository(db),
		Enrollments:   dummydb.NewEnrollmentRepository(db),
		Reviews:       dummydb.NewReviewRepository(db),
		Verifications: dummydb.NewVerificationRepository(db),
		Dashboard:     dummydb.NewDashboardRepository(db),
	}, nil
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) Stores {
	var (
		stores Stores
		err    error
	)
	if conf.Database.Engine == EngineMemory {
		loggerParam.Logger.Warn("using the in-memory store, data will be lost on shutdown")
		stores, err = newMemoryStores()
	} else {
		stores, err = newPostgresStores(conf)
	}
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return stores
}

func newBlobStore(conf *core.Config, logger core.Logger) core.BlobStore {
	blobs, err := blobsvc.New(context.Background(), conf.Blob)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up blob storage: %v", err), err)
	}
	return blobs
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	return emailsvc.NewService(conf, logger, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	enrollment.InitValidators(validate, translator)
	return validate
}

func newServices(in ServicesIn) Services {
	st := in.Stores
	userSvc := user.NewService(st.Tx, st.Users, in.Validate, nil)
	catalogSvc := catalog.NewService(st.Tx, st.Catalog, in.Blobs, in.Logger, in.Validate, nil)
	curriculumSvc := curriculum.NewService(st.Tx, st.Lessons, catalogSvc, in.Blobs, in.Logger, in.Validate, nil)
	enrollmentSvc := enrollment.NewService(st.Tx, st.Enrollments, catalogSvc, curriculumSvc, in.Mail, in.Validate, nil)

	return Services{
		User:       userSvc,
		Catalog:    catalogSvc,
		Curriculum: curriculumSvc,
		Enrollment: enrollmentSvc,
		Review: review.NewService(
			st.Tx, st.Reviews, catalogSvc, enrollmentSvc, userSvc, in.Mail, in.Validate, nil,
		),
		Verification: verification.NewService(
			st.Tx, st.Verifications, userSvc, in.Blobs, in.Logger, in.Mail, in.Validate, nil,
		),
		Dashboard: dashboard.NewService(st.Tx, st.Dashboard, enrollmentSvc, nil),
	}
}

func newDeps(in DepsIn) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:            in.Conf,
		Logger:          in.Logger,
		Translator:      in.Translator,
		Validate:        in.Validate,
		Blobs:           in.Blobs,
		UserSvc:         in.User,
		CatalogSvc:      in.Catalog,
		CurriculumSvc:   in.Curriculum,
		EnrollmentSvc:   in.Enrollment,
		ReviewSvc:       in.Review,
		VerificationSvc: in.Verification,
		DashboardSvc:    in.Dashboard,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newBlobStore))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServices))
	must(c.Provide(newDeps))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
