package review

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("review")
	ErrAlreadyReviewed = core.NewConflictError("you have already reviewed this course")
	ErrNotEnrolled     = core.NewValidationError(
		errors.New("you must be enrolled in this course to review it"),
		core.FieldError{Field: "course", Error: "you must be enrolled in this course to review it"},
	)
)

type (
	Repository interface {
		// CreateReview returns ErrAlreadyReviewed when the student already reviewed the course.
		CreateReview(ctx context.Context, r Review) (Review, error)
		GetReview(ctx context.Context, id string) (Review, error)
		FindReview(ctx context.Context, courseID, studentID string) (Review, error)
		// QueryReviews returns matching reviews, most recent first.
		QueryReviews(ctx context.Context, query Query, page core.Page) ([]Review, error)
		UpdateReview(ctx context.Context, r Review) (Review, error)
		DeleteReview(ctx context.Context, id string) error
	}

	CourseFinder interface {
		GetCourse(ctx context.Context, slug string) (catalog.Course, error)
		GetCourseByID(ctx context.Context, id string) (catalog.Course, error)
	}

	EnrollmentFinder interface {
		FindForStudent(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		tx          core.Transactor
		repo        Repository
		courses     CourseFinder
		enrollments EnrollmentFinder
		users       UserFinder
		mailSvc     core.EmailService
		validate    *validator.Validate
		now         core.Clock
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	courses CourseFinder,
	enrollments EnrollmentFinder,
	users UserFinder,
	mailSvc core.EmailService,
	validate *validator.Validate,
	clock core.Clock,
) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{
		tx:          tx,
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		users:       users,
		mailSvc:     mailSvc,
		validate:    validate,
		now:         clock,
	}
}

// canReview reports whether the enrollment still entitles its student to review the course.
// Graduates keep that right along with active students; dropped and suspended ones lose it.
func canReview(e enrollment.Enrollment) bool {
	return e.Status == enrollment.StatusActive || e.Status == enrollment.StatusCompleted
}

// Create stores a pending review of a course by an enrolled student.
func (svc *Service) Create(ctx context.Context, student user.User, courseSlug string, nr NewReview) (Review, error) {
	nr.Comment = core.CleanString(nr.Comment)
	if err := svc.validate.Struct(nr); err != nil {
		return Review{}, err
	}

	var r Review
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := svc.courses.GetCourse(ctx, courseSlug)
		if err != nil {
			return err
		}
		if !student.IsStudent() {
			return ErrNotEnrolled
		}

		e, err := svc.enrollments.FindForStudent(ctx, student.ID, course.ID)
		switch err {
		case nil:
			if !canReview(e) {
				return ErrNotEnrolled
			}
		case enrollment.ErrNotFound:
			return ErrNotEnrolled
		default:
			return errors.Wrap(err, "finding enrollment")
		}

		switch _, err = svc.repo.FindReview(ctx, course.ID, student.ID); err {
		case nil:
			return ErrAlreadyReviewed
		case ErrNotFound:
		default:
			return errors.Wrap(err, "finding review")
		}

		now := svc.now()
		r, err = svc.repo.CreateReview(ctx, Review{
			ID:        uuid.NewString(),
			CourseID:  course.ID,
			StudentID: student.ID,
			Rating:    nr.Rating,
			Comment:   nr.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	return r, err
}

// Approve publishes a review. Employees only.
func (svc *Service) Approve(ctx context.Context, actor user.User, id string) (Review, error) {
	if !actor.IsEmployee() {
		return Review{}, core.ErrForbidden
	}

	var (
		r       Review
		course  catalog.Course
		student user.User
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = svc.repo.GetReview(ctx, id); err != nil {
			return err
		}
		if r.IsApproved {
			return nil
		}
		r.IsApproved = true
		r.UpdatedAt = svc.now()
		if r, err = svc.repo.UpdateReview(ctx, r); err != nil {
			return errors.Wrap(err, "updating review")
		}
		if course, err = svc.courses.GetCourseByID(ctx, r.CourseID); err != nil {
			return errors.Wrap(err, "getting course")
		}
		student, err = svc.users.GetByID(ctx, r.StudentID)
		return errors.Wrap(err, "getting student")
	})
	if err != nil {
		return Review{}, err
	}

	if svc.mailSvc != nil && student.Email != "" {
		svc.mailSvc.SendMessages(approvalMessage(student, course))
	}
	return r, nil
}

// Reject deletes a review. Employees only.
func (svc *Service) Reject(ctx context.Context, actor user.User, id string) error {
	if !actor.IsEmployee() {
		return core.ErrForbidden
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetReview(ctx, id); err != nil {
			return err
		}
		return svc.repo.DeleteReview(ctx, id)
	})
}

// ListPending returns reviews awaiting moderation. Employees only.
func (svc *Service) ListPending(ctx context.Context, actor user.User, page core.Page) ([]Review, error) {
	if !actor.IsEmployee() {
		return nil, core.ErrForbidden
	}
	approved := false
	return svc.repo.QueryReviews(ctx, Query{Approved: &approved}, page)
}

// ListApproved returns the publicly visible reviews of a course.
func (svc *Service) ListApproved(ctx context.Context, courseID string, page core.Page) ([]Review, error) {
	approved := true
	return svc.repo.QueryReviews(ctx, Query{CourseID: courseID, Approved: &approved}, page)
}

func approvalMessage(student user.User, course catalog.Course) *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: student.FullName(), Address: student.Email}},
		Subject: "Your review was published",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour review of %q has been approved and is now visible to everyone.\n",
			student.FullName(), course.Title,
		),
	}
}
