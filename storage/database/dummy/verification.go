package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/verification"
)

type verificationRepository struct {
	db *DB
}

var _ verification.Repository = (*verificationRepository)(nil) // interface compliance check

func NewVerificationRepository(db *DB) *verificationRepository {
	return &verificationRepository{db: db}
}

func (repo *verificationRepository) GetSubmission(ctx context.Context, id string) (verification.Submission, error) {
	defer repo.db.lock(ctx)()

	if s, ok := repo.db.t.submissions[id]; ok {
		return s, nil
	}
	return verification.Submission{}, verification.ErrNotFound
}

func (repo *verificationRepository) FindSubmission(ctx context.Context, instructorID string) (verification.Submission, error) {
	defer repo.db.lock(ctx)()

	for _, s := range repo.db.t.submissions {
		if s.InstructorID == instructorID {
			return s, nil
		}
	}
	return verification.Submission{}, verification.ErrNotFound
}

func (repo *verificationRepository) SaveSubmission(ctx context.Context, s verification.Submission) (verification.Submission, error) {
	defer repo.db.lock(ctx)()

	for _, other := range repo.db.t.submissions {
		if other.ID != s.ID && other.InstructorID == s.InstructorID {
			return verification.Submission{}, verification.ErrAlreadySubmitted
		}
	}
	if old, ok := repo.db.t.submissions[s.ID]; ok {
		s.InstructorID = old.InstructorID
	} else {
		repo.db.t.track(s.ID)
	}
	repo.db.t.submissions[s.ID] = s
	return s, nil
}

func (repo *verificationRepository) QuerySubmissions(
	ctx context.Context,
	pending bool,
	page core.Page,
) ([]verification.Submission, error) {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	subs := make([]verification.Submission, 0)
	for _, s := range t.submissions {
		if s.IsPending() == pending {
			subs = append(subs, s)
		}
	}
	// oldest first
	sort.Slice(subs, func(i, j int) bool {
		a, b := subs[i], subs[j]
		return t.newer(b.ID, b.SubmittedAt, a.ID, a.SubmittedAt)
	})
	lo, hi := window(len(subs), page)
	return subs[lo:hi], nil
}
