package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/apps/api/echo"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/tests"
)

func Test_catalogApi_categories(t *testing.T) {
	env, app := setup(t)
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	adminToken := getToken(t, env, admin)

	used := testutil.CreateCategory(t, env, admin, "Programming")
	testutil.CreateCourse(t, env, prof, used, "Go in practice", catalog.StatusDraft)
	unused := testutil.CreateCategory(t, env, admin, "Cooking")

	runTests(t, app, []httpTest{
		{
			name: "employee required", method: http.MethodPost, path: "/v1/categories", token: getToken(t, env, prof),
			body: marchallObj(t, catalog.NewCategory{Name: "Music"}), wantCode: http.StatusForbidden,
		},
		{
			name: "blank name", method: http.MethodPost, path: "/v1/categories", token: adminToken,
			body: marchallObj(t, catalog.NewCategory{Name: "  "}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field cannot be blank"}),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/v1/categories", token: adminToken,
			body: marchallObj(t, catalog.NewCategory{Name: "Programming"}), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: catalog.ErrCategoryNameExists.Error()}),
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/categories", token: adminToken,
			body: marchallObj(t, catalog.NewCategory{Name: "Music & Arts"}), wantCode: http.StatusCreated,
		},
		{
			name: "in use", method: http.MethodDelete, path: "/v1/categories/" + used.Slug, token: adminToken,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: catalog.ErrCategoryInUse.Error()}),
		},
		{name: "deleted", method: http.MethodDelete, path: "/v1/categories/" + unused.Slug, token: adminToken, wantCode: http.StatusNoContent},
		{name: "unknown", method: http.MethodGet, path: "/v1/categories/" + unused.Slug, wantCode: http.StatusNotFound},
	})

	cat, err := env.CatalogSvc.GetCategory(context.Background(), "music-arts")
	require.NoError(t, err)
	assert.Equal(t, "Music & Arts", cat.Name)
	assert.True(t, cat.IsActive)
}

func Test_catalogApi_createCourse(t *testing.T) {
	env, app := setup(t)
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	student := testutil.CreateStudent(t, env, "hero")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	token := getToken(t, env, prof)

	course := func(title, slug string) []byte {
		return marchallObj(t, catalog.NewCourse{
			Title:       title,
			Slug:        slug,
			Description: "A course",
			CategoryID:  cat.ID,
		})
	}
	unknownCategory := catalog.NewCourse{Title: "Lost", Description: "A course", CategoryID: uuid.NewString()}

	tests := []httpTest{
		{name: "instructor required", token: getToken(t, env, student), body: course("Intro to X", ""), wantCode: http.StatusForbidden},
		{name: "unknown category", token: token, body: marchallObj(t, unknownCategory), wantCode: http.StatusBadRequest},
		{name: "first", token: token, body: course("Intro to X", ""), wantCode: http.StatusCreated, extra: "intro-to-x"},
		{name: "same title", token: token, body: course("Intro to X", ""), wantCode: http.StatusCreated, extra: "intro-to-x-1"},
		{name: "folded title", token: token, body: course("Intro  to X!", ""), wantCode: http.StatusCreated, extra: "intro-to-x-2"},
		{
			name: "explicit slug taken", token: token, body: course("Another", "intro-to-x"), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: catalog.ErrCourseSlugTaken.Error()}),
		},
		{name: "explicit slug", token: token, body: course("Another", "my-course"), wantCode: http.StatusCreated, extra: "my-course"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/courses", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if slug, ok := tt.extra.(string); ok {
				var created catalog.Course
				unmarshal(t, rec, &created)
				assert.Equal(t, slug, created.Slug)
				assert.Equal(t, catalog.StatusDraft, created.Status)
				assert.Equal(t, prof.ID, created.InstructorID)
			}
		})
	}
}

func Test_catalogApi_listCourses(t *testing.T) {
	env, app := setup(t)
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	other := testutil.CreateInstructor(t, env, "other")
	prog := testutil.CreateCategory(t, env, admin, "Programming")
	cooking := testutil.CreateCategory(t, env, admin, "Cooking")

	testutil.CreateCourse(t, env, prof, prog, "Draft", catalog.StatusDraft)
	goCourse := testutil.CreateCourse(t, env, prof, prog, "Go basics", catalog.StatusPublished)
	rust := testutil.CreateCourse(t, env, other, prog, "Rust basics", catalog.StatusPublished)
	pasta := testutil.CreateCourse(t, env, other, cooking, "Pasta", catalog.StatusPublished, 49.99)
	archived := testutil.CreateCourse(t, env, prof, cooking, "Old course", catalog.StatusArchived)

	// listings never carry tag ids
	for _, c := range []*catalog.Course{&goCourse, &rust, &pasta, &archived} {
		c.TagIDs = nil
	}

	runTests(t, app, []httpTest{
		{name: "published, newest first", method: http.MethodGet, path: "/v1/courses", wantData: marchallList(t, pasta, rust, goCourse)},
		{name: "by category", method: http.MethodGet, path: "/v1/courses?category=cooking", wantData: marchallList(t, pasta)},
		{name: "unknown category", method: http.MethodGet, path: "/v1/courses?category=lol", wantData: marchallList(t)},
		{name: "by instructor", method: http.MethodGet, path: "/v1/courses?instructor=" + prof.ID, wantData: marchallList(t, goCourse)},
		{name: "search", method: http.MethodGet, path: "/v1/courses?search=BASICS", wantData: marchallList(t, rust, goCourse)},
		{name: "second page", method: http.MethodGet, path: "/v1/courses?page=2", wantData: marchallList(t)},
	})

	t.Run("owned courses whatever their status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/mine", getToken(t, env, prof))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var courses []catalog.Course
		unmarshal(t, rec, &courses)
		require.Len(t, courses, 3)
		assert.Equal(t, archived.ID, courses[0].ID)
		assert.Equal(t, goCourse.ID, courses[1].ID)
	})
}

func Test_catalogApi_retrieveCourse(t *testing.T) {
	env, app := setup(t)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	hero := testutil.CreateStudent(t, env, "hero")
	visitor := testutil.CreateStudent(t, env, "visitor")
	cat := testutil.CreateCategory(t, env, admin, "Programming")

	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusPublished)
	draft := testutil.CreateCourse(t, env, prof, cat, "Draft", catalog.StatusDraft)
	testutil.CreateLesson(t, env, prof, course, "Second", 2)
	testutil.CreateLesson(t, env, prof, course, "First", 1)
	testutil.Enroll(t, env, hero, course)

	approved, err := env.ReviewSvc.Create(ctx, hero, course.Slug, review.NewReview{Rating: 5, Comment: "Great"})
	require.NoError(t, err)
	_, err = env.ReviewSvc.Approve(ctx, admin, approved.ID)
	require.NoError(t, err)

	get := func(t *testing.T, slug, token string) echoapi.CourseDetail {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+slug, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var detail echoapi.CourseDetail
		unmarshal(t, rec, &detail)
		return detail
	}

	t.Run("anonymous", func(t *testing.T) {
		detail := get(t, course.Slug, "")
		assert.Equal(t, course.ID, detail.ID)
		assert.True(t, detail.IsFree)
		assert.False(t, detail.IsEnrolled)
		assert.Equal(t, 1, detail.EnrollmentCount)
		require.Len(t, detail.Lessons, 2)
		assert.Equal(t, "First", detail.Lessons[0].Title)
		require.Len(t, detail.Reviews, 1)
		assert.True(t, detail.Reviews[0].IsApproved)
	})
	t.Run("enrolled student", func(t *testing.T) {
		assert.True(t, get(t, course.Slug, getToken(t, env, hero)).IsEnrolled)
	})
	t.Run("other student", func(t *testing.T) {
		assert.False(t, get(t, course.Slug, getToken(t, env, visitor)).IsEnrolled)
	})
	t.Run("owner sees drafts", func(t *testing.T) {
		assert.Equal(t, draft.ID, get(t, draft.Slug, getToken(t, env, prof)).ID)
	})

	runTests(t, app, []httpTest{
		{name: "draft hidden from visitors", method: http.MethodGet, path: "/v1/courses/" + draft.Slug, wantCode: http.StatusNotFound},
		{
			name: "draft hidden from students", method: http.MethodGet, path: "/v1/courses/" + draft.Slug,
			token: getToken(t, env, hero), wantCode: http.StatusNotFound,
		},
		{name: "unknown", method: http.MethodGet, path: "/v1/courses/lol", wantCode: http.StatusNotFound},
	})
}

func Test_catalogApi_courseStatus(t *testing.T) {
	env, app := setup(t)
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	other := testutil.CreateInstructor(t, env, "other")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusDraft)

	path := func(action string) string { return "/v1/courses/" + course.Slug + "/" + action }
	runTests(t, app, []httpTest{
		{name: "auth required", method: http.MethodPost, path: path("publish"), wantCode: http.StatusUnauthorized},
		{name: "employees cannot publish", method: http.MethodPost, path: path("publish"), token: getToken(t, env, admin), wantCode: http.StatusForbidden},
		{name: "owner only", method: http.MethodPost, path: path("publish"), token: getToken(t, env, other), wantCode: http.StatusForbidden},
		{name: "unknown course", method: http.MethodPost, path: "/v1/courses/lol/publish", token: getToken(t, env, prof), wantCode: http.StatusNotFound},
		{name: "published", method: http.MethodPost, path: path("publish"), token: getToken(t, env, prof)},
	})
	got, err := env.CatalogSvc.GetCourse(context.Background(), course.Slug)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPublished, got.Status)

	runTests(t, app, []httpTest{
		{name: "archived", method: http.MethodPost, path: path("archive"), token: getToken(t, env, prof)},
	})
	got, err = env.CatalogSvc.GetCourse(context.Background(), course.Slug)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusArchived, got.Status)
}
