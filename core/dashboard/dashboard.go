// Package dashboard builds the read-only projections shown to each role.
package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/user"
)

const (
	recentCoursesLimit  = 10
	recentActivityLimit = 10
	newUsersWindow      = 7  // days
	newCoursesWindow    = 30 // days
)

// StudentEnrollment is an enrollment with the progress figures of its student.
type StudentEnrollment struct {
	EnrollmentID   string                `json:"enrollment_id" boil:"enrollment_id"`
	CourseID       string                `json:"course_id" boil:"course_id"`
	CourseTitle    string                `json:"course_title" boil:"course_title"`
	CourseSlug     string                `json:"course_slug" boil:"course_slug"`
	Status         enrollment.Status     `json:"status" boil:"status"`
	EnrolledAt     time.Time             `json:"enrolled_at" boil:"enrolled_at"`
	CompletionDate null.Time             `json:"completion_date" boil:"completion_date"`
	Grade          null.Float64          `json:"grade" boil:"grade"`
	LessonCount    int                   `json:"lesson_count" boil:"lesson_count"`
	CompletedCount int                   `json:"completed_count" boil:"completed_count"`
	Percentage     int                   `json:"progress_percentage" boil:"-"`
	// LastAccessed is the most recent access over the enrollment progress records, if any.
	LastAccessed null.Time `json:"last_accessed" boil:"last_accessed"`
}

type Student struct {
	Enrollments       []StudentEnrollment `json:"enrollments"`
	CompletedCourses  int                 `json:"completed_courses"`
	InProgressCourses int                 `json:"in_progress_courses"`
}

// InstructorCourse is an owned course with its audience figures.
type InstructorCourse struct {
	ID           string               `json:"id" boil:"id"`
	Title        string               `json:"title" boil:"title"`
	Slug         string               `json:"slug" boil:"slug"`
	Status       catalog.CourseStatus `json:"status" boil:"status"`
	CreatedAt    time.Time            `json:"created_at" boil:"created_at"`
	StudentCount int                  `json:"student_count" boil:"student_count"`
	AvgRating    null.Float64         `json:"avg_rating" boil:"avg_rating"`
}

type Instructor struct {
	Courses        []InstructorCourse    `json:"courses"`
	TotalStudents  int                   `json:"total_students"`
	AverageRating  null.Float64          `json:"average_rating"`
	RecentActivity []enrollment.Activity `json:"recent_activity"`
}

// Counts holds the platform wide figures of the employee dashboard.
type Counts struct {
	TotalUsers        int                          `json:"total_users" boil:"total_users"`
	NewUsersWeek      int                          `json:"new_users_week" boil:"new_users_week"`
	TotalCourses      int                          `json:"total_courses" boil:"total_courses"`
	CoursesByStatus   map[catalog.CourseStatus]int `json:"courses_by_status" boil:"-"`
	NewCoursesMonth   int                          `json:"new_courses_month" boil:"new_courses_month"`
	TotalEnrollments  int                          `json:"total_enrollments" boil:"total_enrollments"`
	ActiveEnrollments int                          `json:"active_enrollments" boil:"active_enrollments"`
}

type Employee struct {
	Counts
	PublishedCourses int                   `json:"published_courses"`
	RecentActivity   []enrollment.Activity `json:"recent_activities"`
}

type (
	Repository interface {
		// StudentEnrollments returns the enrollments of a student, most recent first.
		StudentEnrollments(ctx context.Context, studentID string) ([]StudentEnrollment, error)
		// InstructorCourses returns the most recently created courses of an instructor.
		InstructorCourses(ctx context.Context, instructorID string, limit int) ([]InstructorCourse, error)
		// AverageRating averages every review rating of the given courses.
		AverageRating(ctx context.Context, courseIDs ...string) (null.Float64, error)
		// Counts computes the platform figures; new users joined since usersSince, new courses
		// and active enrollments date from since coursesSince.
		Counts(ctx context.Context, usersSince, coursesSince time.Time) (Counts, error)
	}

	ActivitySource interface {
		Activities(ctx context.Context, query enrollment.ActivityQuery) ([]enrollment.Activity, error)
	}

	Service struct {
		tx         core.Transactor
		repo       Repository
		activities ActivitySource
		now        core.Clock
	}
)

func NewService(tx core.Transactor, repo Repository, activities ActivitySource, clock core.Clock) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{tx: tx, repo: repo, activities: activities, now: clock}
}

// Student returns the dashboard of a student.
func (svc *Service) Student(ctx context.Context, actor user.User) (Student, error) {
	if !actor.IsStudent() {
		return Student{}, core.ErrForbidden
	}

	var dash Student
	err := svc.tx.WithinReadTx(ctx, func(ctx context.Context) error {
		rows, err := svc.repo.StudentEnrollments(ctx, actor.ID)
		if err != nil {
			return errors.Wrap(err, "querying student enrollments")
		}
		for i := range rows {
			row := &rows[i]
			row.Percentage = enrollment.Percentage(row.CompletedCount, row.LessonCount)
			switch {
			case row.Percentage == 100:
				dash.CompletedCourses++
			case row.Percentage > 0:
				dash.InProgressCourses++
			}
		}
		dash.Enrollments = rows
		return nil
	})
	return dash, err
}

// Instructor returns the dashboard of an instructor.
func (svc *Service) Instructor(ctx context.Context, actor user.User) (Instructor, error) {
	if !actor.IsInstructor() {
		return Instructor{}, core.ErrForbidden
	}

	var dash Instructor
	err := svc.tx.WithinReadTx(ctx, func(ctx context.Context) error {
		courses, err := svc.repo.InstructorCourses(ctx, actor.ID, recentCoursesLimit)
		if err != nil {
			return errors.Wrap(err, "querying instructor courses")
		}
		ids := make([]string, 0, len(courses))
		for _, c := range courses {
			dash.TotalStudents += c.StudentCount
			ids = append(ids, c.ID)
		}
		dash.Courses = courses

		if len(ids) > 0 {
			avg, err := svc.repo.AverageRating(ctx, ids...)
			if err != nil {
				return errors.Wrap(err, "averaging ratings")
			}
			if avg.Valid {
				dash.AverageRating = null.Float64From(math.Round(avg.Float64*10) / 10)
			}
		}

		dash.RecentActivity, err = svc.activities.Activities(ctx, enrollment.ActivityQuery{
			InstructorID: actor.ID,
			Limit:        recentActivityLimit,
		})
		return errors.Wrap(err, "querying recent activity")
	})
	return dash, err
}

// Employee returns the platform dashboard. Time windows start at midnight (UTC), 7 days
// back for new users and 30 days back for new courses and active enrollments.
func (svc *Service) Employee(ctx context.Context, actor user.User) (Employee, error) {
	if !actor.IsEmployee() {
		return Employee{}, core.ErrForbidden
	}

	now := svc.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	lastWeek := today.AddDate(0, 0, -newUsersWindow)
	lastMonth := today.AddDate(0, 0, -newCoursesWindow)

	var dash Employee
	err := svc.tx.WithinReadTx(ctx, func(ctx context.Context) error {
		counts, err := svc.repo.Counts(ctx, lastWeek, lastMonth)
		if err != nil {
			return errors.Wrap(err, "counting")
		}
		dash.Counts = counts
		dash.PublishedCourses = counts.CoursesByStatus[catalog.StatusPublished]

		dash.RecentActivity, err = svc.activities.Activities(ctx, enrollment.ActivityQuery{Limit: recentActivityLimit})
		return errors.Wrap(err, "querying recent activity")
	})
	return dash, err
}
