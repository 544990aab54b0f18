package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/storage/database"
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *sqlx.DB) *dashboardRepository {
	return &dashboardRepository{db: db}
}

func (repo dashboardRepository) StudentEnrollments(ctx context.Context, studentID string) ([]dashboard.StudentEnrollment, error) {
	rows := make([]dashboard.StudentEnrollment, 0)
	err := queries.Raw(`
		SELECT e.id AS enrollment_id, c.id AS course_id, c.title AS course_title, c.slug AS course_slug,
			e.status, e.enrolled_at, e.completion_date, e.grade,
			(SELECT count(*) FROM lessons l WHERE l.course_id = c.id) AS lesson_count,
			(SELECT count(*) FROM progress p WHERE p.enrollment_id = e.id AND p.is_completed) AS completed_count,
			(SELECT max(p.last_accessed) FROM progress p WHERE p.enrollment_id = e.id) AS last_accessed
		FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE e.student_id = $1
		ORDER BY e.enrolled_at DESC`,
		studentID,
	).Bind(ctx, database.BoilExec(ctx, repo.db), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying student enrollments")
	}
	return rows, nil
}

func (repo dashboardRepository) InstructorCourses(
	ctx context.Context,
	instructorID string,
	limit int,
) ([]dashboard.InstructorCourse, error) {
	rows := make([]dashboard.InstructorCourse, 0)
	err := queries.Raw(`
		SELECT c.id, c.title, c.slug, c.status, c.created_at,
			(SELECT count(DISTINCT e.student_id) FROM enrollments e WHERE e.course_id = c.id) AS student_count,
			(SELECT avg(r.rating)::float8 FROM reviews r WHERE r.course_id = c.id) AS avg_rating
		FROM courses c
		WHERE c.instructor_id = $1
		ORDER BY c.created_at DESC
		LIMIT $2`,
		instructorID, limit,
	).Bind(ctx, database.BoilExec(ctx, repo.db), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying instructor courses")
	}
	return rows, nil
}

func (repo dashboardRepository) AverageRating(ctx context.Context, courseIDs ...string) (null.Float64, error) {
	var row struct {
		Avg null.Float64 `boil:"avg"`
	}
	err := queries.Raw(
		`SELECT avg(rating)::float8 AS avg FROM reviews WHERE course_id::text = ANY($1)`,
		pq.Array(courseIDs),
	).Bind(ctx, database.BoilExec(ctx, repo.db), &row)
	if err != nil {
		return null.Float64{}, errors.Wrap(err, "averaging ratings")
	}
	return row.Avg, nil
}

func (repo dashboardRepository) Counts(ctx context.Context, usersSince, coursesSince time.Time) (dashboard.Counts, error) {
	exec := database.BoilExec(ctx, repo.db)

	var counts dashboard.Counts
	err := queries.Raw(`
		SELECT
			(SELECT count(*) FROM users) AS total_users,
			(SELECT count(*) FROM users WHERE date_joined >= $1) AS new_users_week,
			(SELECT count(*) FROM courses) AS total_courses,
			(SELECT count(*) FROM courses WHERE created_at >= $2) AS new_courses_month,
			(SELECT count(*) FROM enrollments) AS total_enrollments,
			(SELECT count(*) FROM enrollments WHERE completion_date IS NULL AND enrolled_at >= $2) AS active_enrollments`,
		usersSince, coursesSince,
	).Bind(ctx, exec, &counts)
	if err != nil {
		return dashboard.Counts{}, errors.Wrap(err, "counting")
	}

	var byStatus []struct {
		Status catalog.CourseStatus `boil:"status"`
		N      int                  `boil:"n"`
	}
	err = queries.Raw(`SELECT status, count(*) AS n FROM courses GROUP BY status`).Bind(ctx, exec, &byStatus)
	if err != nil {
		return dashboard.Counts{}, errors.Wrap(err, "counting courses by status")
	}
	counts.CoursesByStatus = make(map[catalog.CourseStatus]int, len(catalog.CourseStatuses))
	for _, s := range catalog.CourseStatuses {
		counts.CoursesByStatus[s] = 0
	}
	for _, row := range byStatus {
		counts.CoursesByStatus[row.Status] = row.N
	}
	return counts, nil
}
