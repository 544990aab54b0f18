package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/storage/database"
)

var lessonConstraints = database.Constraints{
	"lessons_course_id_position_key": curriculum.ErrLessonOrderExists,
	"unique_lesson_title_per_course": curriculum.ErrLessonTitleExists,
}

type lessonRepository struct {
	db *sqlx.DB
}

var _ curriculum.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *sqlx.DB) *lessonRepository {
	return &lessonRepository{db: db}
}

func (repo lessonRepository) CreateLesson(ctx context.Context, lesson curriculum.Lesson) (curriculum.Lesson, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO lessons (id, course_id, title, position, description, video_url, resource_key,
			duration_minutes, is_preview, created_at)
		VALUES (:id, :course_id, :title, :position, :description, :video_url, :resource_key,
			:duration_minutes, :is_preview, :created_at)`,
		lesson,
	)
	if err != nil {
		return curriculum.Lesson{}, lessonConstraints.Map(err, nil, "inserting lesson")
	}
	return lesson, nil
}

func (repo lessonRepository) GetLesson(ctx context.Context, courseID, lessonID string) (curriculum.Lesson, error) {
	var lesson curriculum.Lesson
	err := database.Exec(ctx, repo.db).GetContext(ctx, &lesson,
		`SELECT * FROM lessons WHERE id = $1 AND course_id = $2`, lessonID, courseID,
	)
	if err != nil {
		return curriculum.Lesson{}, lessonConstraints.Map(err, curriculum.ErrLessonNotFound, "getting lesson")
	}
	return lesson, nil
}

func (repo lessonRepository) ListLessons(ctx context.Context, courseID string) ([]curriculum.Lesson, error) {
	lessons := make([]curriculum.Lesson, 0)
	err := database.Exec(ctx, repo.db).SelectContext(ctx, &lessons,
		`SELECT * FROM lessons WHERE course_id = $1 ORDER BY position`, courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing lessons")
	}
	return lessons, nil
}

func (repo lessonRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := database.Exec(ctx, repo.db).GetContext(ctx, &n, `SELECT count(*) FROM lessons WHERE course_id = $1`, courseID)
	return n, errors.Wrap(err, "counting lessons")
}

func (repo lessonRepository) UpdateLesson(ctx context.Context, lesson curriculum.Lesson) (curriculum.Lesson, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE lessons SET title = :title, position = :position, description = :description,
			video_url = :video_url, resource_key = :resource_key, duration_minutes = :duration_minutes,
			is_preview = :is_preview
		WHERE id = :id`,
		lesson,
	)
	if err != nil {
		return curriculum.Lesson{}, lessonConstraints.Map(err, nil, "updating lesson")
	}
	if err = checkAffected(res, curriculum.ErrLessonNotFound); err != nil {
		return curriculum.Lesson{}, err
	}
	return lesson, nil
}

func (repo lessonRepository) DeleteLesson(ctx context.Context, id string) error {
	res, err := database.Exec(ctx, repo.db).ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return lessonConstraints.Map(err, curriculum.ErrLessonNotFound, "deleting lesson")
	}
	return checkAffected(res, curriculum.ErrLessonNotFound)
}
