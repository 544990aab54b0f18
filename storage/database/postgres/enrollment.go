package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/storage/database"
)

var enrollmentConstraints = database.Constraints{
	"enrollments_student_id_course_id_key":  enrollment.ErrAlreadyEnrolled,
	"progress_enrollment_id_lesson_id_key": enrollment.ErrProgressExists,
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, course_id, status, enrolled_at, completion_date, grade)
		VALUES (:id, :student_id, :course_id, :status, :enrolled_at, :completion_date, :grade)`,
		e,
	)
	if err != nil {
		return enrollment.Enrollment{}, enrollmentConstraints.Map(err, nil, "inserting enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := database.Exec(ctx, repo.db).GetContext(ctx, &e, `SELECT * FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return enrollment.Enrollment{}, enrollmentConstraints.Map(err, enrollment.ErrNotFound, "getting enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) FindEnrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	err := database.Exec(ctx, repo.db).GetContext(ctx, &e,
		`SELECT * FROM enrollments WHERE student_id = $1 AND course_id = $2`, studentID, courseID,
	)
	if err != nil {
		return enrollment.Enrollment{}, enrollmentConstraints.Map(err, enrollment.ErrNotFound, "finding enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) QueryEnrollments(
	ctx context.Context,
	query enrollment.Query,
	page core.Page,
) ([]enrollment.Enrollment, error) {
	var (
		conds = []string{"true"}
		a     args
	)
	if query.StudentID != "" {
		conds = append(conds, "e.student_id::text = "+a.add(query.StudentID))
	}
	if query.InstructorID != "" {
		conds = append(conds, "c.instructor_id::text = "+a.add(query.InstructorID))
	}
	if query.CourseID != "" {
		conds = append(conds, "e.course_id::text = "+a.add(query.CourseID))
	}
	if query.Status != "" {
		conds = append(conds, "e.status = "+a.add(query.Status))
	}
	q := `SELECT e.* FROM enrollments e JOIN courses c ON c.id = e.course_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY e.enrolled_at DESC LIMIT ` + a.add(page.Limit()) + ` OFFSET ` + a.add(page.Offset())

	enrollments := make([]enrollment.Enrollment, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &enrollments, q, a...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollments, nil
}

func (repo enrollmentRepository) CountEnrollments(ctx context.Context, courseID string) (int, error) {
	var n int
	err := database.Exec(ctx, repo.db).GetContext(ctx, &n, `SELECT count(*) FROM enrollments WHERE course_id = $1`, courseID)
	return n, errors.Wrap(err, "counting enrollments")
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE enrollments SET status = :status, completion_date = :completion_date, grade = :grade
		WHERE id = :id`,
		e,
	)
	if err != nil {
		return enrollment.Enrollment{}, enrollmentConstraints.Map(err, nil, "updating enrollment")
	}
	if err = checkAffected(res, enrollment.ErrNotFound); err != nil {
		return enrollment.Enrollment{}, err
	}
	return e, nil
}

func (repo enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	res, err := database.Exec(ctx, repo.db).ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return enrollmentConstraints.Map(err, enrollment.ErrNotFound, "deleting enrollment")
	}
	return checkAffected(res, enrollment.ErrNotFound)
}

const progressColumns = `id, enrollment_id, lesson_id, is_completed, completed_at, last_accessed`

func (repo enrollmentRepository) GetProgress(ctx context.Context, enrollmentID, lessonID string) (enrollment.Progress, error) {
	var p enrollment.Progress
	err := database.Exec(ctx, repo.db).GetContext(ctx, &p,
		`SELECT `+progressColumns+` FROM progress WHERE enrollment_id = $1 AND lesson_id = $2`,
		enrollmentID, lessonID,
	)
	if err != nil {
		return enrollment.Progress{}, enrollmentConstraints.Map(err, enrollment.ErrProgressNotFound, "getting progress")
	}
	return p, nil
}

func (repo enrollmentRepository) CreateProgress(ctx context.Context, p enrollment.Progress) (enrollment.Progress, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO progress (`+progressColumns+`)
		VALUES (:id, :enrollment_id, :lesson_id, :is_completed, :completed_at, :last_accessed)`,
		p,
	)
	if err != nil {
		return enrollment.Progress{}, enrollmentConstraints.Map(err, nil, "inserting progress")
	}
	return p, nil
}

func (repo enrollmentRepository) UpdateProgress(ctx context.Context, p enrollment.Progress) (enrollment.Progress, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE progress SET is_completed = :is_completed, completed_at = :completed_at,
			last_accessed = :last_accessed
		WHERE id = :id`,
		p,
	)
	if err != nil {
		return enrollment.Progress{}, errors.Wrap(err, "updating progress")
	}
	if err = checkAffected(res, enrollment.ErrProgressNotFound); err != nil {
		return enrollment.Progress{}, err
	}
	return p, nil
}

func (repo enrollmentRepository) ListProgress(ctx context.Context, enrollmentID string) ([]enrollment.Progress, error) {
	progress := make([]enrollment.Progress, 0)
	err := database.Exec(ctx, repo.db).SelectContext(ctx, &progress, `
		SELECT p.id, p.enrollment_id, p.lesson_id, p.is_completed, p.completed_at, p.last_accessed,
			l.title AS lesson_title, l.position AS lesson_order
		FROM progress p JOIN lessons l ON l.id = p.lesson_id
		WHERE p.enrollment_id = $1
		ORDER BY l.position`,
		enrollmentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing progress")
	}
	return progress, nil
}

func (repo enrollmentRepository) TouchProgress(ctx context.Context, enrollmentID string, at time.Time) error {
	_, err := database.Exec(ctx, repo.db).ExecContext(ctx,
		`UPDATE progress SET last_accessed = $1 WHERE enrollment_id = $2`, at, enrollmentID,
	)
	return errors.Wrap(err, "touching progress")
}

func (repo enrollmentRepository) CountCompletedProgress(ctx context.Context, enrollmentID string) (int, error) {
	var n int
	err := database.Exec(ctx, repo.db).GetContext(ctx, &n,
		`SELECT count(*) FROM progress WHERE enrollment_id = $1 AND is_completed`, enrollmentID,
	)
	return n, errors.Wrap(err, "counting completed progress")
}

func (repo enrollmentRepository) CreateActivity(ctx context.Context, a enrollment.Activity) error {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO course_activities (id, enrollment_id, course_id, activity_type, "timestamp", details)
		VALUES (:id, :enrollment_id, :course_id, :activity_type, :timestamp, :details)`,
		a,
	)
	return errors.Wrap(err, "inserting activity")
}

func (repo enrollmentRepository) QueryActivities(ctx context.Context, query enrollment.ActivityQuery) ([]enrollment.Activity, error) {
	var (
		conds = []string{"true"}
		a     args
	)
	if query.CourseID != "" {
		conds = append(conds, "ca.course_id::text = "+a.add(query.CourseID))
	}
	if query.EnrollmentID != "" {
		conds = append(conds, "ca.enrollment_id::text = "+a.add(query.EnrollmentID))
	}
	if query.InstructorID != "" {
		conds = append(conds, "c.instructor_id::text = "+a.add(query.InstructorID))
	}
	q := `SELECT ca.id, ca.enrollment_id, ca.course_id, ca.activity_type, ca."timestamp", ca.details
		FROM course_activities ca JOIN courses c ON c.id = ca.course_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY ca."timestamp" DESC LIMIT ` + a.add(query.Limit)

	activities := make([]enrollment.Activity, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &activities, q, a...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	return activities, nil
}
