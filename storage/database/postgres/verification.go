package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/verification"
	"github.com/trezcool/learnhub/storage/database"
)

var verificationConstraints = database.Constraints{
	"verification_submissions_instructor_id_key": verification.ErrAlreadySubmitted,
}

type verificationRepository struct {
	db *sqlx.DB
}

var _ verification.Repository = (*verificationRepository)(nil) // interface compliance check

func NewVerificationRepository(db *sqlx.DB) *verificationRepository {
	return &verificationRepository{db: db}
}

func (repo verificationRepository) GetSubmission(ctx context.Context, id string) (verification.Submission, error) {
	var s verification.Submission
	err := database.Exec(ctx, repo.db).GetContext(ctx, &s, `SELECT * FROM verification_submissions WHERE id = $1`, id)
	if err != nil {
		return verification.Submission{}, verificationConstraints.Map(err, verification.ErrNotFound, "getting submission")
	}
	return s, nil
}

func (repo verificationRepository) FindSubmission(ctx context.Context, instructorID string) (verification.Submission, error) {
	var s verification.Submission
	err := database.Exec(ctx, repo.db).GetContext(ctx, &s,
		`SELECT * FROM verification_submissions WHERE instructor_id = $1`, instructorID,
	)
	if err != nil {
		return verification.Submission{}, verificationConstraints.Map(err, verification.ErrNotFound, "finding submission")
	}
	return s, nil
}

func (repo verificationRepository) SaveSubmission(ctx context.Context, s verification.Submission) (verification.Submission, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO verification_submissions (id, instructor_id, document_key, message, submitted_at,
			reviewed_at, reviewed_by, is_approved)
		VALUES (:id, :instructor_id, :document_key, :message, :submitted_at, :reviewed_at, :reviewed_by,
			:is_approved)
		ON CONFLICT (id) DO UPDATE SET document_key = EXCLUDED.document_key, message = EXCLUDED.message,
			submitted_at = EXCLUDED.submitted_at, reviewed_at = EXCLUDED.reviewed_at,
			reviewed_by = EXCLUDED.reviewed_by, is_approved = EXCLUDED.is_approved`,
		s,
	)
	if err != nil {
		return verification.Submission{}, verificationConstraints.Map(err, nil, "saving submission")
	}
	return s, nil
}

func (repo verificationRepository) QuerySubmissions(
	ctx context.Context,
	pending bool,
	page core.Page,
) ([]verification.Submission, error) {
	cond := "reviewed_at IS NOT NULL"
	if pending {
		cond = "reviewed_at IS NULL"
	}
	subs := make([]verification.Submission, 0)
	err := database.Exec(ctx, repo.db).SelectContext(ctx, &subs,
		`SELECT * FROM verification_submissions WHERE `+cond+` ORDER BY submitted_at LIMIT $1 OFFSET $2`,
		page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return subs, nil
}
