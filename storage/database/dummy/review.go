package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/review"
)

type reviewRepository struct {
	db *DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) *reviewRepository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	defer repo.db.lock(ctx)()

	for _, other := range repo.db.t.reviews {
		if other.CourseID == r.CourseID && other.StudentID == r.StudentID {
			return review.Review{}, review.ErrAlreadyReviewed
		}
	}
	repo.db.t.reviews[r.ID] = r
	repo.db.t.track(r.ID)
	return r, nil
}

func (repo *reviewRepository) GetReview(ctx context.Context, id string) (review.Review, error) {
	defer repo.db.lock(ctx)()

	if r, ok := repo.db.t.reviews[id]; ok {
		return r, nil
	}
	return review.Review{}, review.ErrNotFound
}

func (repo *reviewRepository) FindReview(ctx context.Context, courseID, studentID string) (review.Review, error) {
	defer repo.db.lock(ctx)()

	for _, r := range repo.db.t.reviews {
		if r.CourseID == courseID && r.StudentID == studentID {
			return r, nil
		}
	}
	return review.Review{}, review.ErrNotFound
}

func (repo *reviewRepository) QueryReviews(ctx context.Context, query review.Query, page core.Page) ([]review.Review, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	reviews := make([]review.Review, 0)
	for _, r := range t.reviews {
		if query.CourseID != "" && r.CourseID != query.CourseID {
			continue
		}
		if query.StudentID != "" && r.StudentID != query.StudentID {
			continue
		}
		if query.Approved != nil && r.IsApproved != *query.Approved {
			continue
		}
		reviews = append(reviews, r)
	}
	sort.Slice(reviews, func(i, j int) bool {
		a, b := reviews[i], reviews[j]
		return t.newer(a.ID, a.CreatedAt, b.ID, b.CreatedAt)
	})
	lo, hi := window(len(reviews), page)
	return reviews[lo:hi], nil
}

func (repo *reviewRepository) UpdateReview(ctx context.Context, r review.Review) (review.Review, error) {
	defer repo.db.lock(ctx)()

	old, ok := repo.db.t.reviews[r.ID]
	if !ok {
		return review.Review{}, review.ErrNotFound
	}
	r.CourseID, r.StudentID, r.CreatedAt = old.CourseID, old.StudentID, old.CreatedAt
	repo.db.t.reviews[r.ID] = r
	return r, nil
}

func (repo *reviewRepository) DeleteReview(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.reviews[id]; !ok {
		return review.ErrNotFound
	}
	delete(repo.db.t.reviews, id)
	return nil
}
