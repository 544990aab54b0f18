package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/core/enrollment"
)

type dashboardRepository struct {
	db *DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *DB) *dashboardRepository {
	return &dashboardRepository{db: db}
}

func (repo *dashboardRepository) StudentEnrollments(ctx context.Context, studentID string) ([]dashboard.StudentEnrollment, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	var enrollments []enrollment.Enrollment
	for _, e := range t.enrollments {
		if e.StudentID == studentID {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		return t.newer(a.ID, a.EnrolledAt, b.ID, b.EnrolledAt)
	})

	rows := make([]dashboard.StudentEnrollment, 0, len(enrollments))
	for _, e := range enrollments {
		course := t.courses[e.CourseID]
		row := dashboard.StudentEnrollment{
			EnrollmentID:   e.ID,
			CourseID:       course.ID,
			CourseTitle:    course.Title,
			CourseSlug:     course.Slug,
			Status:         e.Status,
			EnrolledAt:     e.EnrolledAt,
			CompletionDate: e.CompletedAt,
			Grade:          e.Grade,
			LessonCount:    t.countLessons(course.ID),
			CompletedCount: t.countCompleted(e.ID),
		}
		for _, p := range t.progress {
			if p.EnrollmentID == e.ID && (!row.LastAccessed.Valid || p.LastAccessed.After(row.LastAccessed.Time)) {
				row.LastAccessed = null.TimeFrom(p.LastAccessed)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (repo *dashboardRepository) InstructorCourses(
	ctx context.Context,
	instructorID string,
	limit int,
) ([]dashboard.InstructorCourse, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	var courses []catalog.Course
	for _, c := range t.courses {
		if c.InstructorID == instructorID {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool {
		a, b := courses[i], courses[j]
		return t.newer(a.ID, a.CreatedAt, b.ID, b.CreatedAt)
	})
	if len(courses) > limit {
		courses = courses[:limit]
	}

	rows := make([]dashboard.InstructorCourse, 0, len(courses))
	for _, c := range courses {
		students := make(map[string]bool)
		for _, e := range t.enrollments {
			if e.CourseID == c.ID {
				students[e.StudentID] = true
			}
		}
		rows = append(rows, dashboard.InstructorCourse{
			ID:           c.ID,
			Title:        c.Title,
			Slug:         c.Slug,
			Status:       c.Status,
			CreatedAt:    c.CreatedAt,
			StudentCount: len(students),
			AvgRating:    t.averageRating(c.ID),
		})
	}
	return rows, nil
}

func (repo *dashboardRepository) AverageRating(ctx context.Context, courseIDs ...string) (null.Float64, error) {
	defer repo.db.lock(ctx)()
	return repo.db.t.averageRating(courseIDs...), nil
}

func (t *tables) averageRating(courseIDs ...string) null.Float64 {
	var sum, n int
	for _, r := range t.reviews {
		for _, id := range courseIDs {
			if r.CourseID == id {
				sum += r.Rating
				n++
				break
			}
		}
	}
	if n == 0 {
		return null.Float64{}
	}
	return null.Float64From(float64(sum) / float64(n))
}

func (repo *dashboardRepository) Counts(ctx context.Context, usersSince, coursesSince time.Time) (dashboard.Counts, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	counts := dashboard.Counts{
		TotalUsers:       len(t.users),
		TotalCourses:     len(t.courses),
		TotalEnrollments: len(t.enrollments),
		CoursesByStatus:  make(map[catalog.CourseStatus]int, len(catalog.CourseStatuses)),
	}
	for _, s := range catalog.CourseStatuses {
		counts.CoursesByStatus[s] = 0
	}
	for _, u := range t.users {
		if !u.DateJoined.Before(usersSince) {
			counts.NewUsersWeek++
		}
	}
	for _, c := range t.courses {
		counts.CoursesByStatus[c.Status]++
		if !c.CreatedAt.Before(coursesSince) {
			counts.NewCoursesMonth++
		}
	}
	for _, e := range t.enrollments {
		if !e.IsCompleted() && !e.EnrolledAt.Before(coursesSince) {
			counts.ActiveEnrollments++
		}
	}
	return counts, nil
}
