package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/learnhub/core/curriculum"
)

type lessonRepository struct {
	db *DB
}

var _ curriculum.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *DB) *lessonRepository {
	return &lessonRepository{db: db}
}

// checkLesson emulates the per-course unique order and title constraints.
func (repo *lessonRepository) checkLesson(lesson curriculum.Lesson) error {
	for _, l := range repo.db.t.lessons {
		if l.ID == lesson.ID || l.CourseID != lesson.CourseID {
			continue
		}
		if l.Order == lesson.Order {
			return curriculum.ErrLessonOrderExists
		}
		if l.Title == lesson.Title {
			return curriculum.ErrLessonTitleExists
		}
	}
	return nil
}

func (repo *lessonRepository) CreateLesson(ctx context.Context, lesson curriculum.Lesson) (curriculum.Lesson, error) {
	defer repo.db.lock(ctx)()

	if err := repo.checkLesson(lesson); err != nil {
		return curriculum.Lesson{}, err
	}
	repo.db.t.lessons[lesson.ID] = lesson
	repo.db.t.track(lesson.ID)
	return lesson, nil
}

func (repo *lessonRepository) GetLesson(ctx context.Context, courseID, lessonID string) (curriculum.Lesson, error) {
	defer repo.db.lock(ctx)()

	if l, ok := repo.db.t.lessons[lessonID]; ok && l.CourseID == courseID {
		return l, nil
	}
	return curriculum.Lesson{}, curriculum.ErrLessonNotFound
}

func (repo *lessonRepository) ListLessons(ctx context.Context, courseID string) ([]curriculum.Lesson, error) {
	defer repo.db.lock(ctx)()

	lessons := make([]curriculum.Lesson, 0)
	for _, l := range repo.db.t.lessons {
		if l.CourseID == courseID {
			lessons = append(lessons, l)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, nil
}

func (repo *lessonRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	defer repo.db.lock(ctx)()
	return repo.db.t.countLessons(courseID), nil
}

func (repo *lessonRepository) UpdateLesson(ctx context.Context, lesson curriculum.Lesson) (curriculum.Lesson, error) {
	defer repo.db.lock(ctx)()

	old, ok := repo.db.t.lessons[lesson.ID]
	if !ok {
		return curriculum.Lesson{}, curriculum.ErrLessonNotFound
	}
	lesson.CourseID = old.CourseID
	lesson.CreatedAt = old.CreatedAt
	if err := repo.checkLesson(lesson); err != nil {
		return curriculum.Lesson{}, err
	}
	repo.db.t.lessons[lesson.ID] = lesson
	return lesson, nil
}

func (repo *lessonRepository) DeleteLesson(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.lessons[id]; !ok {
		return curriculum.ErrLessonNotFound
	}
	repo.db.t.deleteLesson(id)
	return nil
}

func (t *tables) countLessons(courseID string) int {
	var n int
	for _, l := range t.lessons {
		if l.CourseID == courseID {
			n++
		}
	}
	return n
}

// deleteLesson removes a lesson with its progress records.
func (t *tables) deleteLesson(id string) {
	delete(t.lessons, id)
	for pid, p := range t.progress {
		if p.LessonID == id {
			delete(t.progress, pid)
		}
	}
}
