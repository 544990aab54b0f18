package enrollment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("enrollment")
	ErrProgressNotFound = core.NewNotFoundError("progress")
	ErrAlreadyEnrolled  = core.NewConflictError("you are already enrolled in this course")
	ErrProgressExists   = core.NewConflictError("progress for this lesson already exists")
)

type (
	Repository interface {
		// CreateEnrollment returns ErrAlreadyEnrolled when the student is already enrolled
		// in the course.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		FindEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
		// QueryEnrollments returns matching enrollments, most recent first.
		QueryEnrollments(ctx context.Context, query Query, page core.Page) ([]Enrollment, error)
		CountEnrollments(ctx context.Context, courseID string) (int, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// DeleteEnrollment cascades to progress and activity records.
		DeleteEnrollment(ctx context.Context, id string) error

		GetProgress(ctx context.Context, enrollmentID, lessonID string) (Progress, error)
		// CreateProgress returns ErrProgressExists when a record exists for the pair.
		CreateProgress(ctx context.Context, p Progress) (Progress, error)
		UpdateProgress(ctx context.Context, p Progress) (Progress, error)
		// ListProgress returns the progress records of an enrollment by lesson order.
		ListProgress(ctx context.Context, enrollmentID string) ([]Progress, error)
		// TouchProgress sets last_accessed on every progress record of an enrollment.
		TouchProgress(ctx context.Context, enrollmentID string, at time.Time) error
		CountCompletedProgress(ctx context.Context, enrollmentID string) (int, error)

		CreateActivity(ctx context.Context, a Activity) error
		// QueryActivities returns matching activity records, most recent first.
		QueryActivities(ctx context.Context, query ActivityQuery) ([]Activity, error)
	}

	CourseFinder interface {
		GetCourse(ctx context.Context, slug string) (catalog.Course, error)
		GetCourseByID(ctx context.Context, id string) (catalog.Course, error)
	}

	LessonFinder interface {
		GetLesson(ctx context.Context, courseID, lessonID string) (curriculum.Lesson, error)
		CountLessons(ctx context.Context, courseID string) (int, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		courses  CourseFinder
		lessons  LessonFinder
		mailSvc  core.EmailService
		validate *validator.Validate
		now      core.Clock
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	courses CourseFinder,
	lessons LessonFinder,
	mailSvc core.EmailService,
	validate *validator.Validate,
	clock core.Clock,
) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		courses:  courses,
		lessons:  lessons,
		mailSvc:  mailSvc,
		validate: validate,
		now:      clock,
	}
}

func (svc *Service) record(ctx context.Context, e Enrollment, typ ActivityType, details map[string]interface{}) error {
	err := svc.repo.CreateActivity(ctx, Activity{
		ID:           uuid.NewString(),
		EnrollmentID: e.ID,
		CourseID:     e.CourseID,
		Type:         typ,
		Timestamp:    svc.now(),
		Details:      newDetails(details),
	})
	return errors.Wrap(err, "recording activity")
}

// Enroll enrolls a student in a published course.
func (svc *Service) Enroll(ctx context.Context, student user.User, courseID string) (Enrollment, error) {
	if !student.IsStudent() {
		return Enrollment{}, core.ErrForbidden
	}

	var (
		e      Enrollment
		course catalog.Course
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if course, err = svc.courses.GetCourseByID(ctx, courseID); err != nil {
			return err
		}
		if !course.IsPublished() {
			return catalog.ErrCourseNotFound
		}

		switch _, err = svc.repo.FindEnrollment(ctx, student.ID, course.ID); err {
		case nil:
			return ErrAlreadyEnrolled
		case ErrNotFound:
		default:
			return errors.Wrap(err, "finding enrollment")
		}

		e, err = svc.repo.CreateEnrollment(ctx, Enrollment{
			ID:         uuid.NewString(),
			StudentID:  student.ID,
			CourseID:   course.ID,
			Status:     StatusActive,
			EnrolledAt: svc.now(),
		})
		if err != nil {
			return err
		}
		return svc.record(ctx, e, ActivityEnrollment, map[string]interface{}{"course_title": course.Title})
	})
	if err != nil {
		return Enrollment{}, err
	}

	if svc.mailSvc != nil {
		svc.mailSvc.SendMessages(enrollmentMessage(student, course))
	}
	return e, nil
}

// Get returns an enrollment visible to actor: its student, the course instructor or an employee.
func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Enrollment, error) {
	e, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if e.StudentID == actor.ID || actor.IsEmployee() {
		return e, nil
	}
	if actor.IsInstructor() {
		course, err := svc.courses.GetCourseByID(ctx, e.CourseID)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "getting course")
		}
		if course.InstructorID == actor.ID {
			return e, nil
		}
	}
	return Enrollment{}, ErrNotFound
}

// FindForStudent returns the enrollment of a student in a course.
func (svc *Service) FindForStudent(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	return svc.repo.FindEnrollment(ctx, studentID, courseID)
}

func (svc *Service) CountForCourse(ctx context.Context, courseID string) (int, error) {
	return svc.repo.CountEnrollments(ctx, courseID)
}

// List returns the enrollments actor may see: its own for students, those of its courses
// for instructors and all of them for employees.
func (svc *Service) List(ctx context.Context, actor user.User, query Query, page core.Page) ([]Enrollment, error) {
	switch actor.Role {
	case user.RoleStudent:
		query.StudentID, query.InstructorID = actor.ID, ""
	case user.RoleInstructor:
		query.StudentID, query.InstructorID = "", actor.ID
	case user.RoleEmployee:
	default:
		return nil, core.ErrForbidden
	}
	return svc.repo.QueryEnrollments(ctx, query, page)
}

// authorizeManager checks that actor may manage e: the course instructor or an employee.
func (svc *Service) authorizeManager(ctx context.Context, actor user.User, e Enrollment) error {
	if actor.IsEmployee() {
		return nil
	}
	if actor.IsInstructor() {
		course, err := svc.courses.GetCourseByID(ctx, e.CourseID)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		if course.InstructorID == actor.ID {
			return nil
		}
	}
	return core.ErrForbidden
}

// Complete marks an enrollment completed now, setting the grade when one is given.
// Completing again refreshes the completion date.
func (svc *Service) Complete(ctx context.Context, actor user.User, id string, sg SetGrade) (Enrollment, error) {
	if err := svc.validate.Struct(sg); err != nil {
		return Enrollment{}, err
	}

	var e Enrollment
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if e, err = svc.repo.GetEnrollment(ctx, id); err != nil {
			return err
		}
		if err := svc.authorizeManager(ctx, actor, e); err != nil {
			return err
		}
		e, err = svc.complete(ctx, e, sg.Grade)
		return err
	})
	return e, err
}

func (svc *Service) complete(ctx context.Context, e Enrollment, grade *float64) (Enrollment, error) {
	e.Status = StatusCompleted
	e.CompletedAt = null.TimeFrom(svc.now())
	details := map[string]interface{}{}
	if grade != nil {
		e.Grade = null.Float64From(*grade)
		details["grade"] = *grade
	}
	e, err := svc.repo.UpdateEnrollment(ctx, e)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	return e, svc.record(ctx, e, ActivityCompletion, details)
}

// SetStatus changes the status of an enrollment. Setting it to completed behaves like Complete
// without a grade.
func (svc *Service) SetStatus(ctx context.Context, actor user.User, id string, ss SetStatus) (Enrollment, error) {
	if err := svc.validate.Struct(ss); err != nil {
		return Enrollment{}, err
	}

	var e Enrollment
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if e, err = svc.repo.GetEnrollment(ctx, id); err != nil {
			return err
		}
		if err := svc.authorizeManager(ctx, actor, e); err != nil {
			return err
		}
		if ss.Status == StatusCompleted {
			e, err = svc.complete(ctx, e, nil)
			return err
		}
		e.Status = ss.Status
		e, err = svc.repo.UpdateEnrollment(ctx, e)
		return err
	})
	return e, err
}

// Delete removes an enrollment with its progress and activity records. Employees only.
func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if !actor.IsEmployee() {
		return core.ErrForbidden
	}
	return svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetEnrollment(ctx, id); err != nil {
			return err
		}
		return svc.repo.DeleteEnrollment(ctx, id)
	})
}

// ProgressPercentage returns floor(100 * completed lessons / lessons of the course), or 0
// for a course without lessons. It uses the current lesson count.
func (svc *Service) ProgressPercentage(ctx context.Context, e Enrollment) (int, error) {
	total, err := svc.lessons.CountLessons(ctx, e.CourseID)
	if err != nil {
		return 0, errors.Wrap(err, "counting lessons")
	}
	completed, err := svc.repo.CountCompletedProgress(ctx, e.ID)
	if err != nil {
		return 0, errors.Wrap(err, "counting completed progress")
	}
	return Percentage(completed, total), nil
}

// Percentage computes floor(100 * completed / total), bounded to [0, 100].
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return completed * 100 / total
}

// ToggleOrCreate flips the completion of a lesson for an enrollment. Without a record, one is
// created completed. The completion date is stamped the first time the lesson is completed
// and kept afterwards, even when completion is toggled off.
func (svc *Service) ToggleOrCreate(ctx context.Context, e Enrollment, lessonID string) (Progress, error) {
	var p Progress
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := svc.now()
		existing, err := svc.repo.GetProgress(ctx, e.ID, lessonID)
		switch err {
		case nil:
			existing.IsCompleted = !existing.IsCompleted
			if existing.IsCompleted && !existing.CompletedAt.Valid {
				existing.CompletedAt = null.TimeFrom(now)
			}
			existing.LastAccessed = now
			if p, err = svc.repo.UpdateProgress(ctx, existing); err != nil {
				return errors.Wrap(err, "updating progress")
			}
		case ErrProgressNotFound:
			p, err = svc.repo.CreateProgress(ctx, Progress{
				ID:           uuid.NewString(),
				EnrollmentID: e.ID,
				LessonID:     lessonID,
				IsCompleted:  true,
				CompletedAt:  null.TimeFrom(now),
				LastAccessed: now,
			})
			if err != nil {
				return err
			}
		default:
			return errors.Wrap(err, "getting progress")
		}
		return svc.record(ctx, e, ActivityProgress, map[string]interface{}{
			"lesson_id": lessonID,
			"completed": p.IsCompleted,
		})
	})
	return p, err
}

// studentEnrollment resolves the lesson of a course and the enrollment of student in it.
// Any missing link, including a non student actor, is reported as not found.
func (svc *Service) studentEnrollment(
	ctx context.Context,
	student user.User,
	courseSlug, lessonID string,
) (Enrollment, curriculum.Lesson, error) {
	if !student.IsStudent() {
		return Enrollment{}, curriculum.Lesson{}, ErrNotFound
	}
	course, err := svc.courses.GetCourse(ctx, courseSlug)
	if err != nil {
		return Enrollment{}, curriculum.Lesson{}, err
	}
	lesson, err := svc.lessons.GetLesson(ctx, course.ID, lessonID)
	if err != nil {
		return Enrollment{}, curriculum.Lesson{}, err
	}
	e, err := svc.repo.FindEnrollment(ctx, student.ID, course.ID)
	if err != nil {
		return Enrollment{}, curriculum.Lesson{}, err
	}
	return e, lesson, nil
}

// ToggleLessonCompletion toggles the completion of a course lesson for the student's enrollment.
func (svc *Service) ToggleLessonCompletion(
	ctx context.Context,
	student user.User,
	courseSlug, lessonID string,
) (Progress, error) {
	var p Progress
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, lesson, err := svc.studentEnrollment(ctx, student, courseSlug, lessonID)
		if err != nil {
			return err
		}
		p, err = svc.ToggleOrCreate(ctx, e, lesson.ID)
		return err
	})
	return p, err
}

// VisitLesson records that a student opened a lesson: the progress record is created
// incomplete when missing, and its last access date is refreshed.
func (svc *Service) VisitLesson(ctx context.Context, student user.User, courseSlug, lessonID string) (Progress, error) {
	var p Progress
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, lesson, err := svc.studentEnrollment(ctx, student, courseSlug, lessonID)
		if err != nil {
			return err
		}
		now := svc.now()
		existing, err := svc.repo.GetProgress(ctx, e.ID, lesson.ID)
		switch err {
		case nil:
			existing.LastAccessed = now
			p, err = svc.repo.UpdateProgress(ctx, existing)
			return err
		case ErrProgressNotFound:
			p, err = svc.repo.CreateProgress(ctx, Progress{
				ID:           uuid.NewString(),
				EnrollmentID: e.ID,
				LessonID:     lesson.ID,
				LastAccessed: now,
			})
			return err
		default:
			return errors.Wrap(err, "getting progress")
		}
	})
	return p, err
}

// ListProgress returns the progress of an enrollment by lesson order, for its student only.
// Reading the records refreshes their last access date.
func (svc *Service) ListProgress(ctx context.Context, student user.User, enrollmentID string) ([]Progress, error) {
	var progress []Progress
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := svc.repo.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if e.StudentID != student.ID {
			return core.ErrForbidden
		}
		if err := svc.repo.TouchProgress(ctx, e.ID, svc.now()); err != nil {
			return errors.Wrap(err, "touching progress")
		}
		progress, err = svc.repo.ListProgress(ctx, e.ID)
		return err
	})
	return progress, err
}

// Activities returns recent activity records; a zero limit defaults to 10.
func (svc *Service) Activities(ctx context.Context, query ActivityQuery) ([]Activity, error) {
	if query.Limit <= 0 {
		query.Limit = 10
	}
	return svc.repo.QueryActivities(ctx, query)
}

func enrollmentMessage(student user.User, course catalog.Course) *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: student.FullName(), Address: student.Email}},
		Subject: "Enrollment confirmed: " + course.Title,
		Body: fmt.Sprintf(
			"Hi %s,\n\nYou are now enrolled in %q. Happy learning!\n",
			student.FullName(), course.Title,
		),
	}
}
