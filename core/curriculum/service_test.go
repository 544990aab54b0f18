package curriculum_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/tests"
)

var now = time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

func TestService_CreateLesson(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	other := testutil.CreateInstructor(t, env, "other")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusDraft)
	testutil.CreateLesson(t, env, prof, course, "Setup", 1)

	tests := []struct {
		name    string
		nl      curriculum.NewLesson
		slug    string
		actor   string
		wantErr error
	}{
		{name: "not the owner", nl: curriculum.NewLesson{Title: "Types", Order: 2}, actor: "other", wantErr: core.ErrForbidden},
		{name: "unknown course", nl: curriculum.NewLesson{Title: "Types", Order: 2}, slug: "lol", wantErr: catalog.ErrCourseNotFound},
		{name: "order taken", nl: curriculum.NewLesson{Title: "Types", Order: 1}, wantErr: curriculum.ErrLessonOrderExists},
		{name: "title taken", nl: curriculum.NewLesson{Title: "Setup", Order: 2}, wantErr: curriculum.ErrLessonTitleExists},
		{name: "created", nl: curriculum.NewLesson{Title: "  Types ", Order: 5, VideoURL: "https://videos.test.cd/types"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, slug := prof, course.Slug
			if tt.actor == "other" {
				actor = other
			}
			if tt.slug != "" {
				slug = tt.slug
			}
			lesson, err := env.CurriculumSvc.CreateLesson(ctx, actor, slug, tt.nl)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Types", lesson.Title)
			assert.Equal(t, course.ID, lesson.CourseID)
		})
	}

	t.Run("invalid payload", func(t *testing.T) {
		_, err := env.CurriculumSvc.CreateLesson(ctx, prof, course.Slug, curriculum.NewLesson{Title: " ", VideoURL: "lol"})
		assert.Error(t, err)
	})

	t.Run("listed by order, gaps allowed", func(t *testing.T) {
		testutil.CreateLesson(t, env, prof, course, "Functions", 3)
		lessons, err := env.CurriculumSvc.ListLessons(ctx, course.ID)
		require.NoError(t, err)
		titles := make([]string, 0, len(lessons))
		for _, l := range lessons {
			titles = append(titles, l.Title)
		}
		assert.Equal(t, []string{"Setup", "Functions", "Types"}, titles)

		count, err := env.CurriculumSvc.CountLessons(ctx, course.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestService_UpdateLesson(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusDraft)
	lesson := testutil.CreateLesson(t, env, prof, course, "Setup", 1)
	testutil.CreateLesson(t, env, prof, course, "Types", 2)

	// an uploaded resource
	oldKey := "lessons/setup-v1.pdf"
	oldPath := filepath.Join(env.BlobDir, filepath.FromSlash(oldKey))
	require.NoError(t, os.MkdirAll(filepath.Dir(oldPath), 0o755))
	require.NoError(t, ioutil.WriteFile(oldPath, []byte("pdf"), 0o644))
	_, err := env.CurriculumSvc.UpdateLesson(ctx, prof, course.Slug, lesson.ID, curriculum.UpdateLesson{ResourceKey: &oldKey})
	require.NoError(t, err)

	order := 2
	_, err = env.CurriculumSvc.UpdateLesson(ctx, prof, course.Slug, lesson.ID, curriculum.UpdateLesson{Order: &order})
	assert.Equal(t, curriculum.ErrLessonOrderExists, err)

	newKey, title, preview := "lessons/setup-v2.pdf", "Getting started", true
	updated, err := env.CurriculumSvc.UpdateLesson(ctx, prof, course.Slug, lesson.ID, curriculum.UpdateLesson{
		Title:       &title,
		ResourceKey: &newKey,
		IsPreview:   &preview,
	})
	require.NoError(t, err)
	assert.Equal(t, "Getting started", updated.Title)
	assert.Equal(t, newKey, updated.ResourceKey)
	assert.True(t, updated.IsPreview)
	assert.Equal(t, 1, updated.Order)

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err), "replaced resource should be deleted")
}

func TestService_DeleteLesson(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	admin := testutil.CreateEmployee(t, env, "admin")
	prof := testutil.CreateInstructor(t, env, "prof")
	other := testutil.CreateInstructor(t, env, "other")
	hero := testutil.CreateStudent(t, env, "hero")
	cat := testutil.CreateCategory(t, env, admin, "Programming")
	course := testutil.CreateCourse(t, env, prof, cat, "Go basics", catalog.StatusPublished)
	first := testutil.CreateLesson(t, env, prof, course, "One", 1)
	testutil.CreateLesson(t, env, prof, course, "Two", 2)
	e := testutil.Enroll(t, env, hero, course)

	_, err := env.EnrollmentSvc.ToggleOrCreate(ctx, e, first.ID)
	require.NoError(t, err)
	pct, err := env.EnrollmentSvc.ProgressPercentage(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 50, pct)

	assert.Equal(t, core.ErrForbidden, env.CurriculumSvc.DeleteLesson(ctx, other, course.Slug, first.ID))
	require.NoError(t, env.CurriculumSvc.DeleteLesson(ctx, prof, course.Slug, first.ID))
	assert.Equal(t, curriculum.ErrLessonNotFound, env.CurriculumSvc.DeleteLesson(ctx, prof, course.Slug, first.ID))

	// the percentage follows the current lessons
	pct, err = env.EnrollmentSvc.ProgressPercentage(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 0, pct)

	progress, err := env.EnrollmentSvc.ListProgress(ctx, hero, e.ID)
	require.NoError(t, err)
	assert.Empty(t, progress)
}
