package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/tests"
)

var now = time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

// errAny matches any error
var errAny = errors.New("any error")

func strPtr(s string) *string { return &s }

func TestService_CreateCourse_slugs(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	cat := testutil.CreateCategory(t, env, admin, "Programming")

	tests := []struct {
		name     string
		title    string
		slug     string
		wantSlug string
		wantErr  error
	}{
		{name: "derived", title: "Intro to X", wantSlug: "intro-to-x"},
		{name: "first collision", title: "Intro to X", wantSlug: "intro-to-x-1"},
		{name: "second collision", title: "Intro to X", wantSlug: "intro-to-x-2"},
		{name: "accents folded", title: "Café & Crème", wantSlug: "cafe-creme"},
		{name: "symbols only", title: "!!!", wantSlug: "course"},
		{name: "explicit", title: "Anything", slug: "My Slug", wantSlug: "my-slug"},
		{name: "explicit taken", title: "Anything", slug: "intro-to-x", wantErr: catalog.ErrCourseSlugTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			course, err := env.CatalogSvc.CreateCourse(ctx, prof, catalog.NewCourse{
				Title:       tt.title,
				Slug:        tt.slug,
				Description: "A course",
				CategoryID:  cat.ID,
			})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSlug, course.Slug)
		})
	}
}

// racyRepository reports a slug as free while another course holds it, like a concurrent
// insert landing between the uniqueness check and the write.
type racyRepository struct {
	catalog.Repository
	misses int
	checks int
}

func (repo *racyRepository) CourseSlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	repo.checks++
	if repo.misses > 0 {
		repo.misses--
		return false, nil
	}
	return repo.Repository.CourseSlugExists(ctx, slug, excludedID)
}

func TestService_CreateCourse_slugRace(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	testutil.CreateCourse(t, env, prof, cat, "Intro to X", catalog.StatusDraft)

	tests := []struct {
		name       string
		slug       string
		misses     int
		wantSlug   string
		wantErr    error
		wantChecks int
	}{
		{name: "replayed after a lost race", misses: 1, wantSlug: "intro-to-x-1", wantChecks: 3},
		{name: "gives up after repeated races", misses: 10, wantErr: catalog.ErrCourseSlugExists, wantChecks: 3},
		{name: "requested slug is not replayed", slug: "intro-to-x", wantErr: catalog.ErrCourseSlugTaken, wantChecks: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &racyRepository{Repository: env.CatalogRepo, misses: tt.misses}
			svc := catalog.NewService(env.Tx, repo, env.Blobs, env.Logger, env.Validate, env.Clock)

			course, err := svc.CreateCourse(ctx, prof, catalog.NewCourse{
				Title:       "Intro to X",
				Slug:        tt.slug,
				Description: "A course",
				CategoryID:  cat.ID,
			})
			assert.Equal(t, tt.wantChecks, repo.checks)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, pkgerrors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSlug, course.Slug)
		})
	}

	courses, err := env.CatalogSvc.ListOwned(ctx, prof, core.Page{})
	require.NoError(t, err)
	assert.Len(t, courses, 2)
}

func TestService_CreateCourse(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	student := testutil.CreateStudent(t, env, "hero")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	goTag, err := env.CatalogSvc.CreateTag(ctx, admin, catalog.NewTag{Name: "Go", Color: "#00ADD8"})
	require.NoError(t, err)

	valid := catalog.NewCourse{Title: "Go", Description: "Gophers", CategoryID: cat.ID}
	withTags := valid
	withTags.TagIDs = []string{goTag.ID, goTag.ID}
	badTag := valid
	badTag.TagIDs = []string{"6f1c1d8e-9a53-4c1c-8c62-0f5b8a3f1d11"}
	negative := valid
	negative.Price = -1

	tests := []struct {
		name    string
		actor   user.User
		nc      catalog.NewCourse
		wantErr error
		check   func(t *testing.T, c catalog.Course)
	}{
		{name: "students cannot create", actor: student, nc: valid, wantErr: core.ErrForbidden},
		{name: "negative price", actor: prof, nc: negative, wantErr: errAny},
		{name: "unknown tag", actor: prof, nc: badTag, wantErr: errAny},
		{
			name: "tags deduplicated", actor: prof, nc: withTags,
			check: func(t *testing.T, c catalog.Course) {
				assert.Equal(t, []string{goTag.ID}, c.TagIDs)
				assert.Equal(t, catalog.StatusDraft, c.Status)
				assert.True(t, c.IsFree())
				assert.Equal(t, now, c.CreatedAt)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			course, err := env.CatalogSvc.CreateCourse(ctx, tt.actor, tt.nc)
			switch tt.wantErr {
			case nil:
				require.NoError(t, err)
				tt.check(t, course)
			case errAny:
				assert.Error(t, err)
			default:
				assert.Equal(t, tt.wantErr, err)
			}
		})
	}
}

func TestService_UpdateCourse(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	other := testutil.CreateInstructor(t, env, "other")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusDraft)
	testutil.CreateCourse(t, env, prof, cat, "Taken", catalog.StatusDraft)

	_, err := env.CatalogSvc.UpdateCourse(ctx, other, course.Slug, catalog.UpdateCourse{Title: strPtr("Mine")})
	assert.Equal(t, core.ErrForbidden, err)

	_, err = env.CatalogSvc.UpdateCourse(ctx, prof, course.Slug, catalog.UpdateCourse{Slug: strPtr("taken")})
	assert.Equal(t, catalog.ErrCourseSlugTaken, err)

	env.SetNow(now.Add(time.Hour))
	updated, err := env.CatalogSvc.UpdateCourse(ctx, prof, course.Slug, catalog.UpdateCourse{
		Title: strPtr("Advanced Go"),
		Slug:  strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Go", updated.Title)
	assert.Equal(t, "advanced-go", updated.Slug)
	assert.Equal(t, now, updated.CreatedAt)
	assert.Equal(t, now.Add(time.Hour), updated.UpdatedAt)

	// keeping its own slug is not a conflict
	same, err := env.CatalogSvc.UpdateCourse(ctx, prof, updated.Slug, catalog.UpdateCourse{Slug: strPtr("advanced-go")})
	require.NoError(t, err)
	assert.Equal(t, "advanced-go", same.Slug)

	_, err = env.CatalogSvc.GetCourse(ctx, course.Slug)
	assert.Equal(t, catalog.ErrCourseNotFound, err)
}

func TestService_categories(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")

	_, err := env.CatalogSvc.CreateCategory(ctx, prof, catalog.NewCategory{Name: "Music"})
	assert.Equal(t, core.ErrForbidden, err)

	inactive := false
	music, err := env.CatalogSvc.CreateCategory(ctx, admin, catalog.NewCategory{Name: "Music", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "music", music.Slug)
	assert.False(t, music.IsActive)
	prog := testutil.CreateCategory(t, env, admin, "Programming")

	_, err = env.CatalogSvc.CreateCategory(ctx, admin, catalog.NewCategory{Name: "Music"})
	assert.Equal(t, catalog.ErrCategoryNameExists, err)

	// same slug, other name
	lower, err := env.CatalogSvc.CreateCategory(ctx, admin, catalog.NewCategory{Name: "music!"})
	require.NoError(t, err)
	assert.Equal(t, "music-1", lower.Slug)
	require.NoError(t, env.CatalogSvc.DeleteCategory(ctx, admin, lower.ID))

	active, err := env.CatalogSvc.ListCategories(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, prog.ID, active[0].ID)

	all, err := env.CatalogSvc.ListCategories(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	renamed, err := env.CatalogSvc.UpdateCategory(ctx, admin, music.ID, catalog.UpdateCategory{Name: strPtr("Music & Arts")})
	require.NoError(t, err)
	assert.Equal(t, "music-arts", renamed.Slug)

	testutil.CreateCourse(t, env, prof, prog, "Go basics", catalog.StatusDraft)
	assert.Equal(t, catalog.ErrCategoryInUse, env.CatalogSvc.DeleteCategory(ctx, admin, prog.ID))
	assert.NoError(t, env.CatalogSvc.DeleteCategory(ctx, admin, music.ID))
	assert.Equal(t, catalog.ErrCategoryNotFound, env.CatalogSvc.DeleteCategory(ctx, admin, music.ID))
}

func TestService_DeleteCourse(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	other := testutil.CreateInstructor(t, env, "other")
	hero := testutil.CreateStudent(t, env, "hero")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusPublished)
	testutil.CreateLesson(t, env, prof, course, "One", 1)
	e := testutil.Enroll(t, env, hero, course)

	assert.Equal(t, core.ErrForbidden, env.CatalogSvc.DeleteCourse(ctx, other, course.Slug))
	require.NoError(t, env.CatalogSvc.DeleteCourse(ctx, admin, course.Slug))

	lessons, err := env.CurriculumSvc.ListLessons(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, lessons)
	_, err = env.EnrollmentSvc.Get(ctx, admin, e.ID)
	assert.Error(t, err)
}
