package dummydb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/enrollment"
)

func TestTransactor_WithinTx(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	tx := NewTransactor(db)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()
	now := time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

	e := enrollment.Enrollment{ID: "e1", StudentID: "s1", CourseID: "c1", Status: enrollment.StatusActive, EnrolledAt: now}

	errBoom := errors.New("boom")
	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := repo.CreateEnrollment(ctx, e); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	_, err = repo.GetEnrollment(ctx, "e1")
	assert.Equal(t, enrollment.ErrNotFound, err, "failed units of work are rolled back")

	assert.Panics(t, func() {
		_ = tx.WithinTx(ctx, func(ctx context.Context) error {
			_, _ = repo.CreateEnrollment(ctx, e)
			panic("boom")
		})
	})
	_, err = repo.GetEnrollment(ctx, "e1")
	assert.Equal(t, enrollment.ErrNotFound, err, "panicking units of work are rolled back")

	err = tx.WithinTx(ctx, func(ctx context.Context) error {
		// nested units of work join the outer one
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			_, err := repo.CreateEnrollment(ctx, e)
			return err
		})
	})
	require.NoError(t, err)
	_, err = repo.GetEnrollment(ctx, "e1")
	assert.NoError(t, err)

	_, err = repo.CreateEnrollment(ctx, enrollment.Enrollment{ID: "e2", StudentID: "s1", CourseID: "c1"})
	assert.Equal(t, enrollment.ErrAlreadyEnrolled, err)
}

func TestEnrollmentRepository_DeleteEnrollment(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()
	now := time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

	for _, id := range []string{"e1", "e2"} {
		_, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{ID: id, StudentID: "s-" + id, CourseID: "c1", EnrolledAt: now})
		require.NoError(t, err)
		_, err = repo.CreateProgress(ctx, enrollment.Progress{ID: "p-" + id, EnrollmentID: id, LessonID: "l1", IsCompleted: true})
		require.NoError(t, err)
		require.NoError(t, repo.CreateActivity(ctx, enrollment.Activity{ID: "a-" + id, EnrollmentID: id, CourseID: "c1", Timestamp: now}))
	}
	_, err = repo.CreateProgress(ctx, enrollment.Progress{ID: "p-dup", EnrollmentID: "e1", LessonID: "l1"})
	assert.Equal(t, enrollment.ErrProgressExists, err)

	require.NoError(t, repo.DeleteEnrollment(ctx, "e1"))

	n, err := repo.CountCompletedProgress(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	acts, err := repo.QueryActivities(ctx, enrollment.ActivityQuery{CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "a-e2", acts[0].ID)
	n, err = repo.CountCompletedProgress(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func Test_tables_newer(t *testing.T) {
	tb := newTables()
	now := time.Now()
	tb.track("first")
	tb.track("second")

	assert.True(t, tb.newer("first", now.Add(time.Second), "second", now))
	assert.True(t, tb.newer("second", now, "first", now), "ties go to the latest insertion")
	assert.False(t, tb.newer("first", now, "second", now))
}

func Test_window(t *testing.T) {
	tests := []struct {
		n      int
		page   core.Page
		wantLo int
		wantHi int
	}{
		{n: 25, page: core.Page{}, wantLo: 0, wantHi: 10},
		{n: 25, page: core.Page{Number: 3}, wantLo: 20, wantHi: 25},
		{n: 25, page: core.Page{Number: 4}, wantLo: 25, wantHi: 25},
		{n: 25, page: core.Page{Number: 2, Size: 20}, wantLo: 20, wantHi: 25},
		{n: 0, page: core.Page{Number: 1}, wantLo: 0, wantHi: 0},
	}
	for _, tt := range tests {
		lo, hi := window(tt.n, tt.page)
		assert.Equal(t, tt.wantLo, lo, "window(%d, %+v)", tt.n, tt.page)
		assert.Equal(t, tt.wantHi, hi, "window(%d, %+v)", tt.n, tt.page)
	}
}
