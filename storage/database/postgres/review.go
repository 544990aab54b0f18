package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/review"
	"github.com/trezcool/learnhub/storage/database"
)

var reviewConstraints = database.Constraints{
	"reviews_course_id_student_id_key": review.ErrAlreadyReviewed,
}

type reviewRepository struct {
	db *sqlx.DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *sqlx.DB) *reviewRepository {
	return &reviewRepository{db: db}
}

func (repo reviewRepository) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO reviews (id, course_id, student_id, rating, comment, is_approved, created_at, updated_at)
		VALUES (:id, :course_id, :student_id, :rating, :comment, :is_approved, :created_at, :updated_at)`,
		r,
	)
	if err != nil {
		return review.Review{}, reviewConstraints.Map(err, nil, "inserting review")
	}
	return r, nil
}

func (repo reviewRepository) GetReview(ctx context.Context, id string) (review.Review, error) {
	var r review.Review
	err := database.Exec(ctx, repo.db).GetContext(ctx, &r, `SELECT * FROM reviews WHERE id = $1`, id)
	if err != nil {
		return review.Review{}, reviewConstraints.Map(err, review.ErrNotFound, "getting review")
	}
	return r, nil
}

func (repo reviewRepository) FindReview(ctx context.Context, courseID, studentID string) (review.Review, error) {
	var r review.Review
	err := database.Exec(ctx, repo.db).GetContext(ctx, &r,
		`SELECT * FROM reviews WHERE course_id = $1 AND student_id = $2`, courseID, studentID,
	)
	if err != nil {
		return review.Review{}, reviewConstraints.Map(err, review.ErrNotFound, "finding review")
	}
	return r, nil
}

func (repo reviewRepository) QueryReviews(ctx context.Context, query review.Query, page core.Page) ([]review.Review, error) {
	var (
		conds = []string{"true"}
		a     args
	)
	if query.CourseID != "" {
		conds = append(conds, "course_id::text = "+a.add(query.CourseID))
	}
	if query.StudentID != "" {
		conds = append(conds, "student_id::text = "+a.add(query.StudentID))
	}
	if query.Approved != nil {
		conds = append(conds, "is_approved = "+a.add(*query.Approved))
	}
	q := `SELECT * FROM reviews WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC LIMIT ` + a.add(page.Limit()) + ` OFFSET ` + a.add(page.Offset())

	reviews := make([]review.Review, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &reviews, q, a...); err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	return reviews, nil
}

func (repo reviewRepository) UpdateReview(ctx context.Context, r review.Review) (review.Review, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE reviews SET rating = :rating, comment = :comment, is_approved = :is_approved,
			updated_at = :updated_at
		WHERE id = :id`,
		r,
	)
	if err != nil {
		return review.Review{}, errors.Wrap(err, "updating review")
	}
	if err = checkAffected(res, review.ErrNotFound); err != nil {
		return review.Review{}, err
	}
	return r, nil
}

func (repo reviewRepository) DeleteReview(ctx context.Context, id string) error {
	res, err := database.Exec(ctx, repo.db).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return reviewConstraints.Map(err, review.ErrNotFound, "deleting review")
	}
	return checkAffected(res, review.ErrNotFound)
}
