package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/dashboard"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/tests"
)

func Test_dashboardApi(t *testing.T) {
	env, app := setup(t)
	ctx := context.Background()

	// created before the reporting windows
	env.SetNow(now.AddDate(0, -2, 0))
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	old := testutil.CreateCourse(t, env, prof, cat, "Old course", catalog.StatusPublished)
	env.SetNow(now)

	hero := testutil.CreateStudent(t, env, "hero")
	sidekick := testutil.CreateStudent(t, env, "sidekick")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusPublished)
	testutil.CreateCourse(t, env, prof, cat, "Draft", catalog.StatusDraft)
	first := testutil.CreateLesson(t, env, prof, course, "One", 1)
	testutil.CreateLesson(t, env, prof, course, "Two", 2)

	e := testutil.Enroll(t, env, hero, course)
	testutil.Enroll(t, env, hero, old)
	finished := testutil.Enroll(t, env, sidekick, old)
	_, err := env.EnrollmentSvc.Complete(ctx, prof, finished.ID, enrollment.SetGrade{})
	require.NoError(t, err)
	_, err = env.EnrollmentSvc.ToggleOrCreate(ctx, e, first.ID)
	require.NoError(t, err)

	for _, r := range []struct {
		student user.User
		course  catalog.Course
		rating  int
	}{
		{hero, course, 5},
		{hero, old, 4},
		{sidekick, old, 4},
	} {
		_, err := env.ReviewSvc.Create(ctx, r.student, r.course.Slug, review.NewReview{Rating: r.rating})
		require.NoError(t, err)
	}

	get := func(t *testing.T, usr user.User, dst interface{}) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", getToken(t, env, usr))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, dst)
	}

	t.Run("student", func(t *testing.T) {
		var dash dashboard.Student
		get(t, hero, &dash)

		require.Len(t, dash.Enrollments, 2)
		assert.Equal(t, 1, dash.InProgressCourses)
		assert.Equal(t, 0, dash.CompletedCourses)

		var goBasics dashboard.StudentEnrollment
		for _, se := range dash.Enrollments {
			if se.CourseID == course.ID {
				goBasics = se
			}
		}
		assert.Equal(t, course.Slug, goBasics.CourseSlug)
		assert.Equal(t, 2, goBasics.LessonCount)
		assert.Equal(t, 1, goBasics.CompletedCount)
		assert.Equal(t, 50, goBasics.Percentage)
		assert.True(t, goBasics.LastAccessed.Valid)
	})

	t.Run("instructor", func(t *testing.T) {
		var dash dashboard.Instructor
		get(t, prof, &dash)

		assert.Len(t, dash.Courses, 3)
		assert.Equal(t, 3, dash.TotalStudents)
		// (5 + 4 + 4) / 3
		assert.Equal(t, 4.3, dash.AverageRating.Float64)
		require.NotEmpty(t, dash.RecentActivity)
		assert.Equal(t, enrollment.ActivityProgress, dash.RecentActivity[0].Type)
	})

	t.Run("employee", func(t *testing.T) {
		var dash dashboard.Employee
		get(t, admin, &dash)

		assert.Equal(t, 4, dash.TotalUsers)
		assert.Equal(t, 2, dash.NewUsersWeek)
		assert.Equal(t, 3, dash.TotalCourses)
		assert.Equal(t, 2, dash.NewCoursesMonth)
		assert.Equal(t, 2, dash.PublishedCourses)
		assert.Equal(t, 1, dash.CoursesByStatus[catalog.StatusDraft])
		assert.Equal(t, 0, dash.CoursesByStatus[catalog.StatusArchived])
		assert.Equal(t, 3, dash.TotalEnrollments)
		assert.Equal(t, 2, dash.ActiveEnrollments)
		assert.Len(t, dash.RecentActivity, 5)
	})

	runTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/dashboard", wantCode: http.StatusUnauthorized},
	})
}
