package catalog

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/slug"
	"github.com/trezcool/learnhub/core/user"
)

// slugRetries bounds how many times a write is replayed after losing a slug race to a
// concurrent writer.
const slugRetries = 3

var (
	// errors
	ErrCategoryNotFound   = core.NewNotFoundError("category")
	ErrTagNotFound        = core.NewNotFoundError("tag")
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrCategoryInUse      = core.NewConflictError("this category is still used by courses, reassign them first")
	ErrCategoryNameExists = core.NewConflictError("a category with this name already exists")
	ErrCategorySlugExists = core.NewConflictError("a category with this slug already exists")
	ErrTagNameExists      = core.NewConflictError("a tag with this name already exists")
	ErrTagSlugExists      = core.NewConflictError("a tag with this slug already exists")
	ErrCourseSlugExists   = core.NewConflictError("a course with this slug already exists")
	// ErrCourseSlugTaken is returned for a requested slug; unlike ErrCourseSlugExists it is
	// never replayed.
	ErrCourseSlugTaken = core.NewConflictError("this slug is already used by another course")
)

type (
	Repository interface {
		// CategorySlugExists reports whether a category other than excludedID uses slug.
		CategorySlugExists(ctx context.Context, slug, excludedID string) (bool, error)
		CreateCategory(ctx context.Context, cat Category) (Category, error)
		GetCategory(ctx context.Context, filter CategoryFilter) (Category, error)
		QueryCategories(ctx context.Context, activeOnly bool) ([]Category, error)
		UpdateCategory(ctx context.Context, cat Category) (Category, error)
		// DeleteCategory returns ErrCategoryInUse while courses reference the category.
		DeleteCategory(ctx context.Context, id string) error

		TagSlugExists(ctx context.Context, slug, excludedID string) (bool, error)
		CreateTag(ctx context.Context, tag Tag) (Tag, error)
		GetTagsByID(ctx context.Context, ids ...string) ([]Tag, error)
		QueryTags(ctx context.Context) ([]Tag, error)
		UpdateTag(ctx context.Context, tag Tag) (Tag, error)
		DeleteTag(ctx context.Context, id string) error

		CourseSlugExists(ctx context.Context, slug, excludedID string) (bool, error)
		// CreateCourse stores the course and its tags; it returns ErrCourseSlugExists when
		// the slug constraint is violated.
		CreateCourse(ctx context.Context, course Course) (Course, error)
		GetCourse(ctx context.Context, filter CourseFilter) (Course, error)
		// QueryCourses returns courses matching the query, most recently created first.
		QueryCourses(ctx context.Context, query CourseQuery, page core.Page) ([]Course, error)
		UpdateCourse(ctx context.Context, course Course) (Course, error)
		// DeleteCourse cascades to lessons, enrollments and their progress.
		DeleteCourse(ctx context.Context, id string) error
		GetCourseTags(ctx context.Context, courseID string) ([]Tag, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		blobs    core.BlobStore
		log      core.Logger
		validate *validator.Validate
		now      core.Clock
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	blobs core.BlobStore,
	logger core.Logger,
	validate *validator.Validate,
	clock core.Clock,
) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{tx: tx, repo: repo, blobs: blobs, log: logger, validate: validate, now: clock}
}

func requireEmployee(actor user.User) error {
	if !actor.IsEmployee() {
		return core.ErrForbidden
	}
	return nil
}

// withSlugRetry runs fn in a transaction, replaying it when a concurrent writer took the
// slug between the uniqueness check and the insert.
func (svc *Service) withSlugRetry(ctx context.Context, conflict error, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < slugRetries; i++ {
		if err = svc.tx.WithinTx(ctx, fn); errors.Cause(err) != conflict {
			return err
		}
	}
	return err
}

func uniqueSlug(ctx context.Context, from, fallback string, exists slug.ExistsFunc) (string, error) {
	base := slug.Make(from)
	if base == "" {
		base = fallback
	}
	return slug.Unique(ctx, base, exists)
}

// Categories

func (svc *Service) CreateCategory(ctx context.Context, actor user.User, nc NewCategory) (Category, error) {
	if err := requireEmployee(actor); err != nil {
		return Category{}, err
	}
	if err := svc.validate.Struct(nc); err != nil {
		return Category{}, err
	}

	cat := Category{
		ID:          uuid.NewString(),
		Name:        core.CleanString(nc.Name),
		Description: core.CleanString(nc.Description),
		ImageKey:    core.CleanString(nc.ImageKey),
		IsActive:    true,
		CreatedAt:   svc.now(),
	}
	if nc.IsActive != nil {
		cat.IsActive = *nc.IsActive
	}

	var created Category
	err := svc.withSlugRetry(ctx, ErrCategorySlugExists, func(ctx context.Context) error {
		s, err := uniqueSlug(ctx, cat.Name, "category", func(ctx context.Context, s string) (bool, error) {
			return svc.repo.CategorySlugExists(ctx, s, "")
		})
		if err != nil {
			return err
		}
		cat.Slug = s
		created, err = svc.repo.CreateCategory(ctx, cat)
		return err
	})
	return created, err
}

func (svc *Service) GetCategory(ctx context.Context, slug string) (Category, error) {
	return svc.repo.GetCategory(ctx, CategoryFilter{Slug: slug})
}

func (svc *Service) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	return svc.repo.QueryCategories(ctx, activeOnly)
}

// UpdateCategory applies uc; a replaced image is deleted from blob storage after commit.
func (svc *Service) UpdateCategory(ctx context.Context, actor user.User, id string, uc UpdateCategory) (Category, error) {
	if err := requireEmployee(actor); err != nil {
		return Category{}, err
	}
	if err := svc.validate.Struct(uc); err != nil {
		return Category{}, err
	}

	var (
		cat      Category
		oldImage string
	)
	err := svc.withSlugRetry(ctx, ErrCategorySlugExists, func(ctx context.Context) error {
		var err error
		if cat, err = svc.repo.GetCategory(ctx, CategoryFilter{ID: id}); err != nil {
			return err
		}
		if uc.Name != nil {
			if name := core.CleanString(*uc.Name); name != cat.Name {
				cat.Name = name
				cat.Slug, err = uniqueSlug(ctx, name, "category", func(ctx context.Context, s string) (bool, error) {
					return svc.repo.CategorySlugExists(ctx, s, cat.ID)
				})
				if err != nil {
					return err
				}
			}
		}
		if uc.Description != nil {
			cat.Description = core.CleanString(*uc.Description)
		}
		if uc.ImageKey != nil {
			if key := core.CleanString(*uc.ImageKey); key != cat.ImageKey {
				oldImage, cat.ImageKey = cat.ImageKey, key
			}
		}
		if uc.IsActive != nil {
			cat.IsActive = *uc.IsActive
		}
		cat, err = svc.repo.UpdateCategory(ctx, cat)
		return err
	})
	if err != nil {
		return Category{}, err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, oldImage)
	return cat, nil
}

// DeleteCategory removes an unreferenced category, then its image.
func (svc *Service) DeleteCategory(ctx context.Context, actor user.User, id string) error {
	if err := requireEmployee(actor); err != nil {
		return err
	}

	var cat Category
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if cat, err = svc.repo.GetCategory(ctx, CategoryFilter{ID: id}); err != nil {
			return err
		}
		return svc.repo.DeleteCategory(ctx, cat.ID)
	})
	if err != nil {
		return err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, cat.ImageKey)
	return nil
}

// Tags

func (svc *Service) CreateTag(ctx context.Context, actor user.User, nt NewTag) (Tag, error) {
	if err := requireEmployee(actor); err != nil {
		return Tag{}, err
	}
	if err := svc.validate.Struct(nt); err != nil {
		return Tag{}, err
	}

	tag := Tag{
		ID:    uuid.NewString(),
		Name:  core.CleanString(nt.Name),
		Color: core.CleanString(nt.Color, true /* lower */),
	}
	if tag.Color == "" {
		tag.Color = "#007bff"
	}
	var created Tag
	err := svc.withSlugRetry(ctx, ErrTagSlugExists, func(ctx context.Context) error {
		s, err := uniqueSlug(ctx, tag.Name, "tag", func(ctx context.Context, s string) (bool, error) {
			return svc.repo.TagSlugExists(ctx, s, "")
		})
		if err != nil {
			return err
		}
		tag.Slug = s
		created, err = svc.repo.CreateTag(ctx, tag)
		return err
	})
	return created, err
}

func (svc *Service) ListTags(ctx context.Context) ([]Tag, error) {
	return svc.repo.QueryTags(ctx)
}

func (svc *Service) UpdateTag(ctx context.Context, actor user.User, id string, upd UpdateTag) (Tag, error) {
	if err := requireEmployee(actor); err != nil {
		return Tag{}, err
	}
	if err := svc.validate.Struct(upd); err != nil {
		return Tag{}, err
	}

	var tag Tag
	err := svc.withSlugRetry(ctx, ErrTagSlugExists, func(ctx context.Context) error {
		tags, err := svc.repo.GetTagsByID(ctx, id)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			return ErrTagNotFound
		}
		tag = tags[0]
		if upd.Name != nil {
			if name := core.CleanString(*upd.Name); name != tag.Name {
				tag.Name = name
				tag.Slug, err = uniqueSlug(ctx, name, "tag", func(ctx context.Context, s string) (bool, error) {
					return svc.repo.TagSlugExists(ctx, s, tag.ID)
				})
				if err != nil {
					return err
				}
			}
		}
		if upd.Color != nil {
			tag.Color = core.CleanString(*upd.Color, true /* lower */)
		}
		tag, err = svc.repo.UpdateTag(ctx, tag)
		return err
	})
	return tag, err
}

func (svc *Service) DeleteTag(ctx context.Context, actor user.User, id string) error {
	if err := requireEmployee(actor); err != nil {
		return err
	}
	return svc.repo.DeleteTag(ctx, id)
}

// Courses

func (svc *Service) courseSlugExists(excludedID string) slug.ExistsFunc {
	return func(ctx context.Context, s string) (bool, error) {
		return svc.repo.CourseSlugExists(ctx, s, excludedID)
	}
}

// checkReferences turns unknown category or tag ids into field errors.
func (svc *Service) checkReferences(ctx context.Context, categoryID string, tagIDs []string) error {
	if categoryID != "" {
		if _, err := svc.repo.GetCategory(ctx, CategoryFilter{ID: categoryID}); err != nil {
			if err == ErrCategoryNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "category_id", Error: err.Error()})
			}
			return errors.Wrap(err, "getting category")
		}
	}
	if len(tagIDs) > 0 {
		tags, err := svc.repo.GetTagsByID(ctx, tagIDs...)
		if err != nil {
			return errors.Wrap(err, "getting tags")
		}
		if len(tags) != len(dedupe(tagIDs)) {
			return core.NewValidationError(ErrTagNotFound, core.FieldError{Field: "tag_ids", Error: ErrTagNotFound.Error()})
		}
	}
	return nil
}

// CreateCourse creates a course owned by actor. Without an explicit slug, one is derived
// from the title and suffixed with -1, -2, ... until it is unique.
func (svc *Service) CreateCourse(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	if !actor.IsInstructor() {
		return Course{}, core.ErrForbidden
	}
	nc.clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}

	now := svc.now()
	course := Course{
		ID:           uuid.NewString(),
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: actor.ID,
		CategoryID:   nc.CategoryID,
		Price:        nc.Price,
		Status:       nc.Status,
		ImageKey:     nc.ImageKey,
		CreatedAt:    now,
		UpdatedAt:    now,
		TagIDs:       dedupe(nc.TagIDs),
	}

	var created Course
	err := svc.withSlugRetry(ctx, ErrCourseSlugExists, func(ctx context.Context) error {
		if err := svc.checkReferences(ctx, course.CategoryID, course.TagIDs); err != nil {
			return err
		}
		if err := svc.assignSlug(ctx, &course, nc.Slug); err != nil {
			return err
		}
		var err error
		created, err = svc.repo.CreateCourse(ctx, course)
		return err
	})
	return created, err
}

// assignSlug sets course.Slug from requested, or from the title when requested is empty.
// A requested slug is taken as is and conflicts when used by another course.
func (svc *Service) assignSlug(ctx context.Context, course *Course, requested string) error {
	exists := svc.courseSlugExists(course.ID)
	if requested != "" {
		s := slug.Make(requested)
		if s == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "slug", Error: "enter a valid slug"})
		}
		taken, err := exists(ctx, s)
		if err != nil {
			return errors.Wrap(err, "checking slug")
		}
		if taken {
			return ErrCourseSlugTaken
		}
		course.Slug = s
		return nil
	}
	s, err := uniqueSlug(ctx, course.Title, "course", exists)
	if err != nil {
		return err
	}
	course.Slug = s
	return nil
}

// GetCourse returns a course by slug regardless of its status.
func (svc *Service) GetCourse(ctx context.Context, slug string) (Course, error) {
	course, err := svc.repo.GetCourse(ctx, CourseFilter{Slug: slug})
	if err != nil {
		return Course{}, err
	}
	course.TagIDs, err = svc.tagIDs(ctx, course.ID)
	return course, err
}

func (svc *Service) GetCourseByID(ctx context.Context, id string) (Course, error) {
	course, err := svc.repo.GetCourse(ctx, CourseFilter{ID: id})
	if err != nil {
		return Course{}, err
	}
	course.TagIDs, err = svc.tagIDs(ctx, course.ID)
	return course, err
}

// GetVisibleCourse returns a course the actor may see: published courses for everyone,
// any course for its owner and for employees. Hidden courses are reported as not found.
func (svc *Service) GetVisibleCourse(ctx context.Context, actor *user.User, slug string) (Course, error) {
	course, err := svc.GetCourse(ctx, slug)
	if err != nil {
		return Course{}, err
	}
	if !CanView(actor, course) {
		return Course{}, ErrCourseNotFound
	}
	return course, nil
}

// CanView reports whether actor (nil for anonymous visitors) may see course.
func CanView(actor *user.User, course Course) bool {
	if course.IsPublished() {
		return true
	}
	if actor == nil {
		return false
	}
	return actor.IsEmployee() || actor.ID == course.InstructorID
}

func (svc *Service) CourseTags(ctx context.Context, courseID string) ([]Tag, error) {
	return svc.repo.GetCourseTags(ctx, courseID)
}

func (svc *Service) tagIDs(ctx context.Context, courseID string) ([]string, error) {
	tags, err := svc.repo.GetCourseTags(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "getting course tags")
	}
	ids := make([]string, 0, len(tags))
	for _, tag := range tags {
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// ListPublished returns published courses, newest first.
func (svc *Service) ListPublished(ctx context.Context, query CourseQuery, page core.Page) ([]Course, error) {
	query.Status = StatusPublished
	query.Search = core.CleanString(query.Search)
	return svc.repo.QueryCourses(ctx, query, page)
}

// ListOwned returns all courses of an instructor whatever their status, newest first.
func (svc *Service) ListOwned(ctx context.Context, actor user.User, page core.Page) ([]Course, error) {
	if !actor.IsInstructor() {
		return nil, core.ErrForbidden
	}
	return svc.repo.QueryCourses(ctx, CourseQuery{InstructorID: actor.ID}, page)
}

func (svc *Service) getOwnedCourse(ctx context.Context, actor user.User, slug string) (Course, error) {
	course, err := svc.repo.GetCourse(ctx, CourseFilter{Slug: slug})
	if err != nil {
		return Course{}, err
	}
	if course.InstructorID != actor.ID {
		return Course{}, core.ErrForbidden
	}
	return course, nil
}

// UpdateCourse applies uc on a course owned by actor; a replaced image is deleted after commit.
func (svc *Service) UpdateCourse(ctx context.Context, actor user.User, slug string, uc UpdateCourse) (Course, error) {
	if err := svc.validate.Struct(uc); err != nil {
		return Course{}, err
	}

	var (
		course   Course
		oldImage string
	)
	err := svc.withSlugRetry(ctx, ErrCourseSlugExists, func(ctx context.Context) error {
		var err error
		if course, err = svc.getOwnedCourse(ctx, actor, slug); err != nil {
			return err
		}
		if course.TagIDs, err = svc.tagIDs(ctx, course.ID); err != nil {
			return err
		}

		if uc.Title != nil {
			course.Title = core.CleanString(*uc.Title)
		}
		if uc.Description != nil {
			course.Description = core.CleanString(*uc.Description)
		}
		if uc.CategoryID != nil {
			course.CategoryID = *uc.CategoryID
		}
		if uc.TagIDs != nil {
			course.TagIDs = dedupe(*uc.TagIDs)
		}
		if uc.Price != nil {
			course.Price = *uc.Price
		}
		if uc.Status != nil {
			course.Status = *uc.Status
		}
		if uc.ImageKey != nil {
			if key := core.CleanString(*uc.ImageKey); key != course.ImageKey {
				oldImage, course.ImageKey = course.ImageKey, key
			}
		}
		if err := svc.checkReferences(ctx, course.CategoryID, course.TagIDs); err != nil {
			return err
		}
		if uc.Slug != nil {
			if err := svc.assignSlug(ctx, &course, core.CleanString(*uc.Slug, true /* lower */)); err != nil {
				return err
			}
		}
		course.UpdatedAt = svc.now()
		course, err = svc.repo.UpdateCourse(ctx, course)
		return err
	})
	if err != nil {
		return Course{}, err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, oldImage)
	return course, nil
}

// SetStatus changes the status of a course owned by actor. Any status may follow any other.
func (svc *Service) SetStatus(ctx context.Context, actor user.User, slug string, status CourseStatus) (Course, error) {
	if !status.IsValid() {
		return Course{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: courseStatusText})
	}

	var course Course
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if course, err = svc.getOwnedCourse(ctx, actor, slug); err != nil {
			return err
		}
		course.Status = status
		course.UpdatedAt = svc.now()
		course, err = svc.repo.UpdateCourse(ctx, course)
		return err
	})
	return course, err
}

func (svc *Service) Publish(ctx context.Context, actor user.User, slug string) (Course, error) {
	return svc.SetStatus(ctx, actor, slug, StatusPublished)
}

func (svc *Service) Archive(ctx context.Context, actor user.User, slug string) (Course, error) {
	return svc.SetStatus(ctx, actor, slug, StatusArchived)
}

// DeleteCourse deletes a course (owner or employee), then its image.
func (svc *Service) DeleteCourse(ctx context.Context, actor user.User, slug string) error {
	var course Course
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if course, err = svc.repo.GetCourse(ctx, CourseFilter{Slug: slug}); err != nil {
			return err
		}
		if course.InstructorID != actor.ID && !actor.IsEmployee() {
			return core.ErrForbidden
		}
		return svc.repo.DeleteCourse(ctx, course.ID)
	})
	if err != nil {
		return err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, course.ImageKey)
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
