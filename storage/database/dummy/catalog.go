package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

// Categories

func (repo *catalogRepository) CategorySlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	defer repo.db.lock(ctx)()

	for _, c := range repo.db.t.categories {
		if c.Slug == slug && c.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *catalogRepository) checkCategory(cat catalog.Category) error {
	for _, c := range repo.db.t.categories {
		if c.ID == cat.ID {
			continue
		}
		if c.Name == cat.Name {
			return catalog.ErrCategoryNameExists
		}
		if c.Slug == cat.Slug {
			return catalog.ErrCategorySlugExists
		}
	}
	return nil
}

func (repo *catalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	defer repo.db.lock(ctx)()

	if err := repo.checkCategory(cat); err != nil {
		return catalog.Category{}, err
	}
	repo.db.t.categories[cat.ID] = cat
	repo.db.t.track(cat.ID)
	return cat, nil
}

func (repo *catalogRepository) GetCategory(ctx context.Context, filter catalog.CategoryFilter) (catalog.Category, error) {
	defer repo.db.lock(ctx)()

	for _, c := range repo.db.t.categories {
		if (filter.ID != "" && c.ID == filter.ID) || (filter.ID == "" && c.Slug == filter.Slug) {
			return c, nil
		}
	}
	return catalog.Category{}, catalog.ErrCategoryNotFound
}

func (repo *catalogRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]catalog.Category, error) {
	defer repo.db.lock(ctx)()

	cats := make([]catalog.Category, 0, len(repo.db.t.categories))
	for _, c := range repo.db.t.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	return cats, nil
}

func (repo *catalogRepository) UpdateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	defer repo.db.lock(ctx)()

	old, ok := repo.db.t.categories[cat.ID]
	if !ok {
		return catalog.Category{}, catalog.ErrCategoryNotFound
	}
	if err := repo.checkCategory(cat); err != nil {
		return catalog.Category{}, err
	}
	cat.CreatedAt = old.CreatedAt
	repo.db.t.categories[cat.ID] = cat
	return cat, nil
}

func (repo *catalogRepository) DeleteCategory(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	for _, c := range repo.db.t.courses {
		if c.CategoryID == id {
			return catalog.ErrCategoryInUse
		}
	}
	delete(repo.db.t.categories, id)
	return nil
}

// Tags

func (repo *catalogRepository) TagSlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	defer repo.db.lock(ctx)()

	for _, t := range repo.db.t.tags {
		if t.Slug == slug && t.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *catalogRepository) checkTag(tag catalog.Tag) error {
	for _, t := range repo.db.t.tags {
		if t.ID == tag.ID {
			continue
		}
		if t.Name == tag.Name {
			return catalog.ErrTagNameExists
		}
		if t.Slug == tag.Slug {
			return catalog.ErrTagSlugExists
		}
	}
	return nil
}

func (repo *catalogRepository) CreateTag(ctx context.Context, tag catalog.Tag) (catalog.Tag, error) {
	defer repo.db.lock(ctx)()

	if err := repo.checkTag(tag); err != nil {
		return catalog.Tag{}, err
	}
	repo.db.t.tags[tag.ID] = tag
	repo.db.t.track(tag.ID)
	return tag, nil
}

func sortTags(tags []catalog.Tag) []catalog.Tag {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

func (repo *catalogRepository) GetTagsByID(ctx context.Context, ids ...string) ([]catalog.Tag, error) {
	defer repo.db.lock(ctx)()

	tags := make([]catalog.Tag, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if t, ok := repo.db.t.tags[id]; ok && !seen[id] {
			seen[id] = true
			tags = append(tags, t)
		}
	}
	return sortTags(tags), nil
}

func (repo *catalogRepository) QueryTags(ctx context.Context) ([]catalog.Tag, error) {
	defer repo.db.lock(ctx)()

	tags := make([]catalog.Tag, 0, len(repo.db.t.tags))
	for _, t := range repo.db.t.tags {
		tags = append(tags, t)
	}
	return sortTags(tags), nil
}

func (repo *catalogRepository) UpdateTag(ctx context.Context, tag catalog.Tag) (catalog.Tag, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.tags[tag.ID]; !ok {
		return catalog.Tag{}, catalog.ErrTagNotFound
	}
	if err := repo.checkTag(tag); err != nil {
		return catalog.Tag{}, err
	}
	repo.db.t.tags[tag.ID] = tag
	return tag, nil
}

func (repo *catalogRepository) DeleteTag(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.tags[id]; !ok {
		return catalog.ErrTagNotFound
	}
	delete(repo.db.t.tags, id)
	for cid, tagIDs := range repo.db.t.courseTags {
		kept := make([]string, 0, len(tagIDs))
		for _, tid := range tagIDs {
			if tid != id {
				kept = append(kept, tid)
			}
		}
		repo.db.t.courseTags[cid] = kept
	}
	return nil
}

// Courses

func (repo *catalogRepository) CourseSlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	defer repo.db.lock(ctx)()

	for _, c := range repo.db.t.courses {
		if c.Slug == slug && c.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *catalogRepository) checkCourse(course catalog.Course) error {
	for _, c := range repo.db.t.courses {
		if c.ID != course.ID && c.Slug == course.Slug {
			return catalog.ErrCourseSlugExists
		}
	}
	if _, ok := repo.db.t.categories[course.CategoryID]; !ok {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func (repo *catalogRepository) setCourseTags(courseID string, tagIDs []string) error {
	ids := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if _, ok := repo.db.t.tags[id]; !ok {
			return catalog.ErrTagNotFound
		}
		ids = append(ids, id)
	}
	repo.db.t.courseTags[courseID] = ids
	return nil
}

func (repo *catalogRepository) CreateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	defer repo.db.lock(ctx)()

	if err := repo.checkCourse(course); err != nil {
		return catalog.Course{}, err
	}
	if err := repo.setCourseTags(course.ID, course.TagIDs); err != nil {
		return catalog.Course{}, err
	}
	stored := course
	stored.TagIDs = nil
	repo.db.t.courses[course.ID] = stored
	repo.db.t.track(course.ID)
	return course, nil
}

func (repo *catalogRepository) GetCourse(ctx context.Context, filter catalog.CourseFilter) (catalog.Course, error) {
	defer repo.db.lock(ctx)()

	for _, c := range repo.db.t.courses {
		if (filter.ID != "" && c.ID == filter.ID) || (filter.ID == "" && c.Slug == filter.Slug) {
			return c, nil
		}
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, query catalog.CourseQuery, page core.Page) ([]catalog.Course, error) {
	defer repo.db.lock(ctx)()

	var categoryID string
	if query.CategorySlug != "" {
		for _, cat := range repo.db.t.categories {
			if cat.Slug == query.CategorySlug {
				categoryID = cat.ID
			}
		}
		if categoryID == "" {
			return make([]catalog.Course, 0), nil
		}
	}

	search := strings.ToLower(query.Search)
	courses := make([]catalog.Course, 0)
	for _, c := range repo.db.t.courses {
		if categoryID != "" && c.CategoryID != categoryID {
			continue
		}
		if query.InstructorID != "" && c.InstructorID != query.InstructorID {
			continue
		}
		if query.Status != "" && c.Status != query.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool {
		return repo.db.t.newer(courses[i].ID, courses[i].CreatedAt, courses[j].ID, courses[j].CreatedAt)
	})
	lo, hi := window(len(courses), page)
	return courses[lo:hi], nil
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	defer repo.db.lock(ctx)()

	old, ok := repo.db.t.courses[course.ID]
	if !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	if err := repo.checkCourse(course); err != nil {
		return catalog.Course{}, err
	}
	if course.TagIDs != nil {
		if err := repo.setCourseTags(course.ID, course.TagIDs); err != nil {
			return catalog.Course{}, err
		}
	}
	stored := course
	stored.TagIDs = nil
	stored.InstructorID = old.InstructorID
	stored.CreatedAt = old.CreatedAt
	repo.db.t.courses[course.ID] = stored
	return course, nil
}

func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.courses[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	repo.db.t.deleteCourse(id)
	return nil
}

func (repo *catalogRepository) GetCourseTags(ctx context.Context, courseID string) ([]catalog.Tag, error) {
	defer repo.db.lock(ctx)()

	tags := make([]catalog.Tag, 0)
	for _, id := range repo.db.t.courseTags[courseID] {
		if t, ok := repo.db.t.tags[id]; ok {
			tags = append(tags, t)
		}
	}
	return sortTags(tags), nil
}

// deleteCourse removes a course with its tags, lessons, enrollments, activities and reviews.
func (t *tables) deleteCourse(id string) {
	delete(t.courses, id)
	delete(t.courseTags, id)
	for lid, l := range t.lessons {
		if l.CourseID == id {
			t.deleteLesson(lid)
		}
	}
	for eid, e := range t.enrollments {
		if e.CourseID == id {
			t.deleteEnrollment(eid)
		}
	}
	for aid, a := range t.activities {
		if a.CourseID == id {
			delete(t.activities, aid)
		}
	}
	for rid, r := range t.reviews {
		if r.CourseID == id {
			delete(t.reviews, rid)
		}
	}
}
