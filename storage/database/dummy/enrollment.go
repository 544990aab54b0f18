package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	for _, other := range repo.db.t.enrollments {
		if other.StudentID == e.StudentID && other.CourseID == e.CourseID {
			return enrollment.Enrollment{}, enrollment.ErrAlreadyEnrolled
		}
	}
	repo.db.t.enrollments[e.ID] = e
	repo.db.t.track(e.ID)
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, id string) (enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	if e, ok := repo.db.t.enrollments[id]; ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) FindEnrollment(ctx context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	for _, e := range repo.db.t.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, nil
		}
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(
	ctx context.Context,
	query enrollment.Query,
	page core.Page,
) ([]enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	enrollments := make([]enrollment.Enrollment, 0)
	for _, e := range t.enrollments {
		if query.StudentID != "" && e.StudentID != query.StudentID {
			continue
		}
		if query.InstructorID != "" && t.courses[e.CourseID].InstructorID != query.InstructorID {
			continue
		}
		if query.CourseID != "" && e.CourseID != query.CourseID {
			continue
		}
		if query.Status != "" && e.Status != query.Status {
			continue
		}
		enrollments = append(enrollments, e)
	}
	sort.Slice(enrollments, func(i, j int) bool {
		a, b := enrollments[i], enrollments[j]
		return t.newer(a.ID, a.EnrolledAt, b.ID, b.EnrolledAt)
	})
	lo, hi := window(len(enrollments), page)
	return enrollments[lo:hi], nil
}

func (repo *enrollmentRepository) CountEnrollments(ctx context.Context, courseID string) (int, error) {
	defer repo.db.lock(ctx)()

	var n int
	for _, e := range repo.db.t.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	defer repo.db.lock(ctx)()

	old, ok := repo.db.t.enrollments[e.ID]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	e.StudentID, e.CourseID, e.EnrolledAt = old.StudentID, old.CourseID, old.EnrolledAt
	repo.db.t.enrollments[e.ID] = e
	return e, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.enrollments[id]; !ok {
		return enrollment.ErrNotFound
	}
	repo.db.t.deleteEnrollment(id)
	return nil
}

func (repo *enrollmentRepository) GetProgress(ctx context.Context, enrollmentID, lessonID string) (enrollment.Progress, error) {
	defer repo.db.lock(ctx)()

	for _, p := range repo.db.t.progress {
		if p.EnrollmentID == enrollmentID && p.LessonID == lessonID {
			return p, nil
		}
	}
	return enrollment.Progress{}, enrollment.ErrProgressNotFound
}

func (repo *enrollmentRepository) CreateProgress(ctx context.Context, p enrollment.Progress) (enrollment.Progress, error) {
	defer repo.db.lock(ctx)()

	for _, other := range repo.db.t.progress {
		if other.EnrollmentID == p.EnrollmentID && other.LessonID == p.LessonID {
			return enrollment.Progress{}, enrollment.ErrProgressExists
		}
	}
	p.LessonTitle, p.LessonOrder = "", 0
	repo.db.t.progress[p.ID] = p
	repo.db.t.track(p.ID)
	return p, nil
}

func (repo *enrollmentRepository) UpdateProgress(ctx context.Context, p enrollment.Progress) (enrollment.Progress, error) {
	defer repo.db.lock(ctx)()

	old, ok := repo.db.t.progress[p.ID]
	if !ok {
		return enrollment.Progress{}, enrollment.ErrProgressNotFound
	}
	old.IsCompleted, old.CompletedAt, old.LastAccessed = p.IsCompleted, p.CompletedAt, p.LastAccessed
	repo.db.t.progress[p.ID] = old
	return p, nil
}

func (repo *enrollmentRepository) ListProgress(ctx context.Context, enrollmentID string) ([]enrollment.Progress, error) {
	defer repo.db.lock(ctx)()

	progress := make([]enrollment.Progress, 0)
	for _, p := range repo.db.t.progress {
		if p.EnrollmentID != enrollmentID {
			continue
		}
		lesson := repo.db.t.lessons[p.LessonID]
		p.LessonTitle, p.LessonOrder = lesson.Title, lesson.Order
		progress = append(progress, p)
	}
	sort.Slice(progress, func(i, j int) bool { return progress[i].LessonOrder < progress[j].LessonOrder })
	return progress, nil
}

func (repo *enrollmentRepository) TouchProgress(ctx context.Context, enrollmentID string, at time.Time) error {
	defer repo.db.lock(ctx)()

	for id, p := range repo.db.t.progress {
		if p.EnrollmentID == enrollmentID {
			p.LastAccessed = at
			repo.db.t.progress[id] = p
		}
	}
	return nil
}

func (repo *enrollmentRepository) CountCompletedProgress(ctx context.Context, enrollmentID string) (int, error) {
	defer repo.db.lock(ctx)()
	return repo.db.t.countCompleted(enrollmentID), nil
}

func (repo *enrollmentRepository) CreateActivity(ctx context.Context, a enrollment.Activity) error {
	defer repo.db.lock(ctx)()

	repo.db.t.activities[a.ID] = a
	repo.db.t.track(a.ID)
	return nil
}

func (repo *enrollmentRepository) QueryActivities(ctx context.Context, query enrollment.ActivityQuery) ([]enrollment.Activity, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	activities := make([]enrollment.Activity, 0)
	for _, a := range t.activities {
		if query.CourseID != "" && a.CourseID != query.CourseID {
			continue
		}
		if query.EnrollmentID != "" && a.EnrollmentID != query.EnrollmentID {
			continue
		}
		if query.InstructorID != "" && t.courses[a.CourseID].InstructorID != query.InstructorID {
			continue
		}
		activities = append(activities, a)
	}
	sort.Slice(activities, func(i, j int) bool {
		a, b := activities[i], activities[j]
		return t.newer(a.ID, a.Timestamp, b.ID, b.Timestamp)
	})
	if query.Limit > 0 && len(activities) > query.Limit {
		activities = activities[:query.Limit]
	}
	return activities, nil
}

func (t *tables) countCompleted(enrollmentID string) int {
	var n int
	for _, p := range t.progress {
		if p.EnrollmentID == enrollmentID && p.IsCompleted {
			n++
		}
	}
	return n
}

// deleteEnrollment removes an enrollment with its progress and activity records.
func (t *tables) deleteEnrollment(id string) {
	delete(t.enrollments, id)
	for pid, p := range t.progress {
		if p.EnrollmentID == id {
			delete(t.progress, pid)
		}
	}
	for aid, a := range t.activities {
		if a.EnrollmentID == id {
			delete(t.activities, aid)
		}
	}
}
