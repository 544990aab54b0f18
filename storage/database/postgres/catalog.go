package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/storage/database"
)

var catalogConstraints = database.Constraints{
	"categories_name_key":      catalog.ErrCategoryNameExists,
	"categories_slug_key":      catalog.ErrCategorySlugExists,
	"tags_name_key":            catalog.ErrTagNameExists,
	"tags_slug_key":            catalog.ErrTagSlugExists,
	"courses_slug_key":         catalog.ErrCourseSlugExists,
	"courses_category_id_fkey": catalog.ErrCategoryInUse,
}

// courseConstraints apply to course writes, where the category key points the other way.
var courseConstraints = database.Constraints{
	"courses_slug_key":         catalog.ErrCourseSlugExists,
	"courses_category_id_fkey": catalog.ErrCategoryNotFound,
}

const courseColumns = `id, title, slug, description, instructor_id, category_id, price, status, image_key,
	created_at, updated_at`

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) slugExists(ctx context.Context, table, slug, excludedID string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE slug = $1 AND id::text <> $2)`
	if err := database.Exec(ctx, repo.db).GetContext(ctx, &exists, q, slug, excludedID); err != nil {
		return false, errors.Wrap(err, "checking "+table+" slug")
	}
	return exists, nil
}

// Categories

func (repo catalogRepository) CategorySlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	return repo.slugExists(ctx, "categories", slug, excludedID)
}

func (repo catalogRepository) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO categories (id, name, slug, description, image_key, is_active, created_at)
		VALUES (:id, :name, :slug, :description, :image_key, :is_active, :created_at)`,
		cat,
	)
	if err != nil {
		return catalog.Category{}, catalogConstraints.Map(err, nil, "inserting category")
	}
	return cat, nil
}

func (repo catalogRepository) GetCategory(ctx context.Context, filter catalog.CategoryFilter) (catalog.Category, error) {
	cond, arg := "id = $1", filter.ID
	if filter.ID == "" {
		cond, arg = "slug = $1", filter.Slug
	}
	var cat catalog.Category
	err := database.Exec(ctx, repo.db).GetContext(ctx, &cat, `SELECT * FROM categories WHERE `+cond, arg)
	if err != nil {
		return catalog.Category{}, catalogConstraints.Map(err, catalog.ErrCategoryNotFound, "getting category")
	}
	return cat, nil
}

func (repo catalogRepository) QueryCategories(ctx context.Context, activeOnly bool) ([]catalog.Category, error) {
	q := `SELECT * FROM categories`
	if activeOnly {
		q += ` WHERE is_active`
	}
	cats := make([]catalog.Category, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &cats, q+` ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying categories")
	}
	return cats, nil
}

func (repo catalogRepository) UpdateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE categories SET name = :name, slug = :slug, description = :description,
			image_key = :image_key, is_active = :is_active
		WHERE id = :id`,
		cat,
	)
	if err != nil {
		return catalog.Category{}, catalogConstraints.Map(err, nil, "updating category")
	}
	if err = checkAffected(res, catalog.ErrCategoryNotFound); err != nil {
		return catalog.Category{}, err
	}
	return cat, nil
}

func (repo catalogRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := database.Exec(ctx, repo.db).ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return catalogConstraints.Map(err, catalog.ErrCategoryNotFound, "deleting category")
	}
	return checkAffected(res, catalog.ErrCategoryNotFound)
}

// Tags

func (repo catalogRepository) TagSlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	return repo.slugExists(ctx, "tags", slug, excludedID)
}

func (repo catalogRepository) CreateTag(ctx context.Context, tag catalog.Tag) (catalog.Tag, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO tags (id, name, slug, color) VALUES (:id, :name, :slug, :color)`,
		tag,
	)
	if err != nil {
		return catalog.Tag{}, catalogConstraints.Map(err, nil, "inserting tag")
	}
	return tag, nil
}

func (repo catalogRepository) GetTagsByID(ctx context.Context, ids ...string) ([]catalog.Tag, error) {
	tags := make([]catalog.Tag, 0, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}
	q, args, err := sqlx.In(`SELECT * FROM tags WHERE id::text IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building tags query")
	}
	exec := database.Exec(ctx, repo.db)
	if err = exec.SelectContext(ctx, &tags, exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "getting tags")
	}
	return tags, nil
}

func (repo catalogRepository) QueryTags(ctx context.Context) ([]catalog.Tag, error) {
	tags := make([]catalog.Tag, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &tags, `SELECT * FROM tags ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying tags")
	}
	return tags, nil
}

func (repo catalogRepository) UpdateTag(ctx context.Context, tag catalog.Tag) (catalog.Tag, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE tags SET name = :name, slug = :slug, color = :color WHERE id = :id`,
		tag,
	)
	if err != nil {
		return catalog.Tag{}, catalogConstraints.Map(err, nil, "updating tag")
	}
	if err = checkAffected(res, catalog.ErrTagNotFound); err != nil {
		return catalog.Tag{}, err
	}
	return tag, nil
}

func (repo catalogRepository) DeleteTag(ctx context.Context, id string) error {
	res, err := database.Exec(ctx, repo.db).ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return catalogConstraints.Map(err, catalog.ErrTagNotFound, "deleting tag")
	}
	return checkAffected(res, catalog.ErrTagNotFound)
}

// Courses

func (repo catalogRepository) CourseSlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	return repo.slugExists(ctx, "courses", slug, excludedID)
}

func (repo catalogRepository) setCourseTags(ctx context.Context, courseID string, tagIDs []string) error {
	exec := database.Exec(ctx, repo.db)
	if _, err := exec.ExecContext(ctx, `DELETE FROM course_tags WHERE course_id = $1`, courseID); err != nil {
		return errors.Wrap(err, "clearing course tags")
	}
	for _, tagID := range tagIDs {
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO course_tags (course_id, tag_id) VALUES ($1, $2)`, courseID, tagID,
		); err != nil {
			return errors.Wrap(err, "inserting course tag")
		}
	}
	return nil
}

func (repo catalogRepository) CreateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO courses (`+courseColumns+`)
		VALUES (:id, :title, :slug, :description, :instructor_id, :category_id, :price, :status, :image_key,
			:created_at, :updated_at)`,
		course,
	)
	if err != nil {
		return catalog.Course{}, courseConstraints.Map(err, nil, "inserting course")
	}
	if err = repo.setCourseTags(ctx, course.ID, course.TagIDs); err != nil {
		return catalog.Course{}, err
	}
	return course, nil
}

func (repo catalogRepository) GetCourse(ctx context.Context, filter catalog.CourseFilter) (catalog.Course, error) {
	cond, arg := "id = $1", filter.ID
	if filter.ID == "" {
		cond, arg = "slug = $1", filter.Slug
	}
	var course catalog.Course
	err := database.Exec(ctx, repo.db).GetContext(ctx, &course, `SELECT `+courseColumns+` FROM courses WHERE `+cond, arg)
	if err != nil {
		return catalog.Course{}, catalogConstraints.Map(err, catalog.ErrCourseNotFound, "getting course")
	}
	return course, nil
}

func (repo catalogRepository) QueryCourses(ctx context.Context, query catalog.CourseQuery, page core.Page) ([]catalog.Course, error) {
	var (
		conds = []string{"true"}
		a     args
	)
	if query.CategorySlug != "" {
		conds = append(conds, "category_id = (SELECT id FROM categories WHERE slug = "+a.add(query.CategorySlug)+")")
	}
	if query.InstructorID != "" {
		conds = append(conds, "instructor_id::text = "+a.add(query.InstructorID))
	}
	if query.Status != "" {
		conds = append(conds, "status = "+a.add(query.Status))
	}
	if query.Search != "" {
		p := a.add("%" + query.Search + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	q := `SELECT ` + courseColumns + ` FROM courses WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC LIMIT ` + a.add(page.Limit()) + ` OFFSET ` + a.add(page.Offset())

	courses := make([]catalog.Course, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &courses, q, a...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo catalogRepository) UpdateCourse(ctx context.Context, course catalog.Course) (catalog.Course, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE courses SET title = :title, slug = :slug, description = :description,
			category_id = :category_id, price = :price, status = :status, image_key = :image_key,
			updated_at = :updated_at
		WHERE id = :id`,
		course,
	)
	if err != nil {
		return catalog.Course{}, courseConstraints.Map(err, nil, "updating course")
	}
	if err = checkAffected(res, catalog.ErrCourseNotFound); err != nil {
		return catalog.Course{}, err
	}
	if course.TagIDs != nil {
		if err = repo.setCourseTags(ctx, course.ID, course.TagIDs); err != nil {
			return catalog.Course{}, err
		}
	}
	return course, nil
}

func (repo catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := database.Exec(ctx, repo.db).ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return catalogConstraints.Map(err, catalog.ErrCourseNotFound, "deleting course")
	}
	return checkAffected(res, catalog.ErrCourseNotFound)
}

func (repo catalogRepository) GetCourseTags(ctx context.Context, courseID string) ([]catalog.Tag, error) {
	tags := make([]catalog.Tag, 0)
	err := database.Exec(ctx, repo.db).SelectContext(ctx, &tags, `
		SELECT t.* FROM tags t JOIN course_tags ct ON ct.tag_id = t.id
		WHERE ct.course_id = $1 ORDER BY t.name`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "getting course tags")
	}
	return tags, nil
}
