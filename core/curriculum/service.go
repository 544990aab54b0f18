package curriculum

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/user"
)

var (
	// errors
	ErrLessonNotFound    = core.NewNotFoundError("lesson")
	ErrLessonOrderExists = core.NewConflictError("a lesson with this order already exists in this course")
	ErrLessonTitleExists = core.NewConflictError("a lesson with this title already exists in this course")
)

type (
	Repository interface {
		// CreateLesson returns ErrLessonOrderExists or ErrLessonTitleExists when the
		// lesson collides with another lesson of the course.
		CreateLesson(ctx context.Context, lesson Lesson) (Lesson, error)
		GetLesson(ctx context.Context, courseID, lessonID string) (Lesson, error)
		// ListLessons returns the lessons of a course by ascending order.
		ListLessons(ctx context.Context, courseID string) ([]Lesson, error)
		CountLessons(ctx context.Context, courseID string) (int, error)
		UpdateLesson(ctx context.Context, lesson Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error
	}

	// CourseFinder resolves courses by slug.
	CourseFinder interface {
		GetCourse(ctx context.Context, slug string) (catalog.Course, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		courses  CourseFinder
		blobs    core.BlobStore
		log      core.Logger
		validate *validator.Validate
		now      core.Clock
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	courses CourseFinder,
	blobs core.BlobStore,
	logger core.Logger,
	validate *validator.Validate,
	clock core.Clock,
) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		courses:  courses,
		blobs:    blobs,
		log:      logger,
		validate: validate,
		now:      clock,
	}
}

func (svc *Service) ownedCourse(ctx context.Context, actor user.User, courseSlug string) (catalog.Course, error) {
	course, err := svc.courses.GetCourse(ctx, courseSlug)
	if err != nil {
		return catalog.Course{}, err
	}
	if course.InstructorID != actor.ID {
		return catalog.Course{}, core.ErrForbidden
	}
	return course, nil
}

// CreateLesson adds a lesson to a course owned by actor.
func (svc *Service) CreateLesson(ctx context.Context, actor user.User, courseSlug string, nl NewLesson) (Lesson, error) {
	nl.clean()
	if err := svc.validate.Struct(nl); err != nil {
		return Lesson{}, err
	}

	var lesson Lesson
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := svc.ownedCourse(ctx, actor, courseSlug)
		if err != nil {
			return err
		}
		lesson, err = svc.repo.CreateLesson(ctx, Lesson{
			ID:              uuid.NewString(),
			CourseID:        course.ID,
			Title:           nl.Title,
			Order:           nl.Order,
			Description:     nl.Description,
			VideoURL:        nl.VideoURL,
			ResourceKey:     nl.ResourceKey,
			DurationMinutes: nl.DurationMinutes,
			IsPreview:       nl.IsPreview,
			CreatedAt:       svc.now(),
		})
		return err
	})
	return lesson, err
}

func (svc *Service) GetLesson(ctx context.Context, courseID, lessonID string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, courseID, lessonID)
}

func (svc *Service) ListLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	return svc.repo.ListLessons(ctx, courseID)
}

func (svc *Service) CountLessons(ctx context.Context, courseID string) (int, error) {
	return svc.repo.CountLessons(ctx, courseID)
}

// UpdateLesson applies ul; a replaced resource file is deleted after commit.
func (svc *Service) UpdateLesson(
	ctx context.Context,
	actor user.User,
	courseSlug, lessonID string,
	ul UpdateLesson,
) (Lesson, error) {
	if err := svc.validate.Struct(ul); err != nil {
		return Lesson{}, err
	}

	var (
		lesson      Lesson
		oldResource string
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := svc.ownedCourse(ctx, actor, courseSlug)
		if err != nil {
			return err
		}
		if lesson, err = svc.repo.GetLesson(ctx, course.ID, lessonID); err != nil {
			return err
		}
		if ul.Title != nil {
			lesson.Title = core.CleanString(*ul.Title)
		}
		if ul.Order != nil {
			lesson.Order = *ul.Order
		}
		if ul.Description != nil {
			lesson.Description = core.CleanString(*ul.Description)
		}
		if ul.VideoURL != nil {
			lesson.VideoURL = core.CleanString(*ul.VideoURL)
		}
		if ul.ResourceKey != nil {
			if key := core.CleanString(*ul.ResourceKey); key != lesson.ResourceKey {
				oldResource, lesson.ResourceKey = lesson.ResourceKey, key
			}
		}
		if ul.DurationMinutes != nil {
			lesson.DurationMinutes = *ul.DurationMinutes
		}
		if ul.IsPreview != nil {
			lesson.IsPreview = *ul.IsPreview
		}
		lesson, err = svc.repo.UpdateLesson(ctx, lesson)
		return err
	})
	if err != nil {
		return Lesson{}, err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, oldResource)
	return lesson, nil
}

// DeleteLesson removes a lesson (and the progress recorded on it), then its resource file.
func (svc *Service) DeleteLesson(ctx context.Context, actor user.User, courseSlug, lessonID string) error {
	var lesson Lesson
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := svc.ownedCourse(ctx, actor, courseSlug)
		if err != nil {
			return err
		}
		if lesson, err = svc.repo.GetLesson(ctx, course.ID, lessonID); err != nil {
			return err
		}
		return errors.Wrap(svc.repo.DeleteLesson(ctx, lesson.ID), "deleting lesson")
	})
	if err != nil {
		return err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, lesson.ResourceKey)
	return nil
}
