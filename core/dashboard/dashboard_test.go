package dashboard_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/tests"
)

var now = time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

func TestService_Student(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	hero := testutil.CreateStudent(t, env, "hero")
	cat := testutil.CreateCategory(t, env, admin, "Programming")

	done := testutil.CreateCourse(t, env, prof, cat, "Done", catalog.StatusPublished)
	doing := testutil.CreateCourse(t, env, prof, cat, "Doing", catalog.StatusPublished)
	idle := testutil.CreateCourse(t, env, prof, cat, "Idle", catalog.StatusPublished)

	toggle := func(e enrollment.Enrollment, lessonIDs ...string) {
		for _, id := range lessonIDs {
			_, err := env.EnrollmentSvc.ToggleOrCreate(ctx, e, id)
			require.NoError(t, err)
		}
	}

	d1 := testutil.CreateLesson(t, env, prof, done, "One", 1)
	d2 := testutil.CreateLesson(t, env, prof, done, "Two", 2)
	g1 := testutil.CreateLesson(t, env, prof, doing, "One", 1)
	testutil.CreateLesson(t, env, prof, doing, "Two", 2)
	testutil.CreateLesson(t, env, prof, doing, "Three", 3)

	toggle(testutil.Enroll(t, env, hero, done), d1.ID, d2.ID)
	env.SetNow(now.Add(time.Hour))
	toggle(testutil.Enroll(t, env, hero, doing), g1.ID)
	env.SetNow(now.Add(2 * time.Hour))
	testutil.Enroll(t, env, hero, idle)

	_, err := env.DashboardSvc.Student(ctx, prof)
	assert.Equal(t, core.ErrForbidden, err)

	dash, err := env.DashboardSvc.Student(ctx, hero)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.CompletedCourses)
	assert.Equal(t, 1, dash.InProgressCourses)

	require.Len(t, dash.Enrollments, 3)
	got := make([]string, 0, 3)
	for _, row := range dash.Enrollments {
		got = append(got, fmt.Sprintf("%s:%d/%d:%d%%", row.CourseTitle, row.CompletedCount, row.LessonCount, row.Percentage))
	}
	assert.Equal(t, []string{"Idle:0/0:0%", "Doing:1/3:33%", "Done:2/2:100%"}, got)

	assert.False(t, dash.Enrollments[0].LastAccessed.Valid)
	assert.Equal(t, now.Add(time.Hour), dash.Enrollments[1].LastAccessed.Time)
	assert.Equal(t, now, dash.Enrollments[2].LastAccessed.Time)
	// a 100% progress does not complete the enrollment itself
	assert.Equal(t, enrollment.StatusActive, dash.Enrollments[2].Status)
}

func TestService_Instructor(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	hero := testutil.CreateStudent(t, env, "hero")
	testutil.CreateStudent(t, env, "sidekick")
	cat := testutil.CreateCategory(t, env, admin, "Programming")

	rate := func(student string, course catalog.Course, rating int) {
		usr, err := env.UserSvc.GetByUsernameOrEmail(ctx, student)
		require.NoError(t, err)
		testutil.Enroll(t, env, usr, course)
		_, err = env.ReviewSvc.Create(ctx, usr, course.Slug, review.NewReview{Rating: rating})
		require.NoError(t, err)
	}

	// the oldest course falls out of the 10 most recent ones
	env.SetNow(now.AddDate(0, -1, 0))
	oldest := testutil.CreateCourse(t, env, prof, cat, "Oldest", catalog.StatusPublished)
	rate("hero", oldest, 1)

	env.SetNow(now)
	var courses []catalog.Course
	for i := 1; i <= 10; i++ {
		courses = append(courses, testutil.CreateCourse(t, env, prof, cat, fmt.Sprintf("Course %d", i), catalog.StatusPublished))
	}
	rate("hero", courses[9], 5)
	rate("sidekick", courses[9], 4)
	rate("hero", courses[8], 4)

	_, err := env.DashboardSvc.Instructor(ctx, hero)
	assert.Equal(t, core.ErrForbidden, err)

	dash, err := env.DashboardSvc.Instructor(ctx, prof)
	require.NoError(t, err)
	require.Len(t, dash.Courses, 10)
	assert.Equal(t, "Course 10", dash.Courses[0].Title)
	assert.Equal(t, 2, dash.Courses[0].StudentCount)
	assert.Equal(t, 4.5, dash.Courses[0].AvgRating.Float64)
	assert.False(t, dash.Courses[2].AvgRating.Valid)
	assert.Equal(t, 3, dash.TotalStudents)
	assert.True(t, dash.AverageRating.Valid)
	assert.Equal(t, 4.3, dash.AverageRating.Float64)

	require.Len(t, dash.RecentActivity, 4)
	assert.Equal(t, courses[8].ID, dash.RecentActivity[0].CourseID)
	assert.Equal(t, enrollment.ActivityEnrollment, dash.RecentActivity[0].Type)

	t.Run("no courses", func(t *testing.T) {
		other := testutil.CreateInstructor(t, env, "other")
		dash, err := env.DashboardSvc.Instructor(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, dash.Courses)
		assert.False(t, dash.AverageRating.Valid)
		assert.Empty(t, dash.RecentActivity)
	})
}

func TestService_Employee_windows(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	today := time.Date(2021, time.June, 15, 0, 0, 0, 0, time.UTC)
	weekStart, monthStart := today.AddDate(0, 0, -7), today.AddDate(0, 0, -30)

	env.SetNow(weekStart.Add(-time.Minute))
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	env.SetNow(weekStart)
	hero := testutil.CreateStudent(t, env, "hero")
	cat := testutil.CreateCategory(t, env, admin, "Programming")

	env.SetNow(monthStart.Add(-time.Minute))
	outside := testutil.CreateCourse(t, env, prof, cat, "Outside", catalog.StatusPublished)
	testutil.Enroll(t, env, hero, outside)
	env.SetNow(monthStart)
	inside := testutil.CreateCourse(t, env, prof, cat, "Inside", catalog.StatusPublished)
	e := testutil.Enroll(t, env, hero, inside)
	env.SetNow(now)
	testutil.CreateCourse(t, env, prof, cat, "Draft", catalog.StatusDraft)
	testutil.CreateCourse(t, env, prof, cat, "Archived", catalog.StatusArchived)

	_, err := env.DashboardSvc.Employee(ctx, prof)
	assert.Equal(t, core.ErrForbidden, err)

	dash, err := env.DashboardSvc.Employee(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.TotalUsers)
	assert.Equal(t, 1, dash.NewUsersWeek)
	assert.Equal(t, 4, dash.TotalCourses)
	assert.Equal(t, 3, dash.NewCoursesMonth)
	assert.Equal(t, 2, dash.PublishedCourses)
	assert.Equal(t, map[catalog.CourseStatus]int{
		catalog.StatusDraft:     1,
		catalog.StatusPublished: 2,
		catalog.StatusArchived:  1,
	}, dash.CoursesByStatus)
	assert.Equal(t, 2, dash.TotalEnrollments)
	assert.Equal(t, 1, dash.ActiveEnrollments)
	assert.Len(t, dash.RecentActivity, 2)

	// completed enrollments are no longer active
	_, err = env.EnrollmentSvc.Complete(ctx, admin, e.ID, enrollment.SetGrade{})
	require.NoError(t, err)
	dash, err = env.DashboardSvc.Employee(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 0, dash.ActiveEnrollments)
	require.Len(t, dash.RecentActivity, 3)
	assert.Equal(t, enrollment.ActivityCompletion, dash.RecentActivity[0].Type)

	// a completion date outlives later status changes
	for _, status := range []enrollment.Status{enrollment.StatusDropped, enrollment.StatusActive} {
		e, err = env.EnrollmentSvc.SetStatus(ctx, admin, e.ID, enrollment.SetStatus{Status: status})
		require.NoError(t, err)
		require.True(t, e.IsCompleted())

		dash, err = env.DashboardSvc.Employee(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, 0, dash.ActiveEnrollments, status)
	}
}
