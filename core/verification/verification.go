// Package verification handles the requests instructors file to get their profile verified.
package verification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("verification submission")
	ErrAlreadySubmitted = core.NewConflictError("a verification request is already pending or approved")
	ErrAlreadyReviewed  = core.NewConflictError("this verification request was already reviewed")
)

// Submission is the single verification request of an instructor. It is pending until
// ReviewedAt is set.
type Submission struct {
	ID           string      `json:"id" db:"id"`
	InstructorID string      `json:"instructor_id" db:"instructor_id"`
	DocumentKey  string      `json:"document_key" db:"document_key"`
	Message      string      `json:"message" db:"message"`
	SubmittedAt  time.Time   `json:"submitted_at" db:"submitted_at"`
	ReviewedAt   null.Time   `json:"reviewed_at" db:"reviewed_at"`
	ReviewedBy   null.String `json:"reviewed_by" db:"reviewed_by"`
	IsApproved   bool        `json:"is_approved" db:"is_approved"`
}

func (s Submission) IsPending() bool { return !s.ReviewedAt.Valid }

type NewSubmission struct {
	DocumentKey string `json:"document_key" validate:"notblank,max=255"`
	Message     string `json:"message" validate:"max=5000"`
}

type Decision struct {
	Approve bool `json:"approve"`
}

type (
	Repository interface {
		GetSubmission(ctx context.Context, id string) (Submission, error)
		FindSubmission(ctx context.Context, instructorID string) (Submission, error)
		// SaveSubmission inserts or replaces the submission of its instructor.
		SaveSubmission(ctx context.Context, s Submission) (Submission, error)
		// QuerySubmissions returns pending (or reviewed) submissions, oldest first.
		QuerySubmissions(ctx context.Context, pending bool, page core.Page) ([]Submission, error)
	}

	// ProfileVerifier flags instructor profiles as verified.
	ProfileVerifier interface {
		MarkInstructorVerified(ctx context.Context, userID string) error
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		users    ProfileVerifier
		blobs    core.BlobStore
		log      core.Logger
		mailSvc  core.EmailService
		validate *validator.Validate
		now      core.Clock
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	users ProfileVerifier,
	blobs core.BlobStore,
	logger core.Logger,
	mailSvc core.EmailService,
	validate *validator.Validate,
	clock core.Clock,
) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		users:    users,
		blobs:    blobs,
		log:      logger,
		mailSvc:  mailSvc,
		validate: validate,
		now:      clock,
	}
}

// Submit files the verification request of an instructor. A rejected request may be filed
// again; its previous document is deleted once the new one is saved.
func (svc *Service) Submit(ctx context.Context, instructor user.User, ns NewSubmission) (Submission, error) {
	if !instructor.IsInstructor() {
		return Submission{}, core.ErrForbidden
	}
	ns.DocumentKey = core.CleanString(ns.DocumentKey)
	ns.Message = core.CleanString(ns.Message)
	if err := svc.validate.Struct(ns); err != nil {
		return Submission{}, err
	}

	var (
		sub    Submission
		oldDoc string
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := svc.repo.FindSubmission(ctx, instructor.ID)
		switch err {
		case nil:
			if existing.IsPending() || existing.IsApproved {
				return ErrAlreadySubmitted
			}
			sub = existing
			if sub.DocumentKey != ns.DocumentKey {
				oldDoc = sub.DocumentKey
			}
		case ErrNotFound:
			sub = Submission{ID: uuid.NewString(), InstructorID: instructor.ID}
		default:
			return errors.Wrap(err, "finding submission")
		}

		sub.DocumentKey = ns.DocumentKey
		sub.Message = ns.Message
		sub.SubmittedAt = svc.now()
		sub.ReviewedAt = null.Time{}
		sub.ReviewedBy = null.String{}
		sub.IsApproved = false
		sub, err = svc.repo.SaveSubmission(ctx, sub)
		return err
	})
	if err != nil {
		return Submission{}, err
	}
	core.DeleteBlobs(ctx, svc.blobs, svc.log, oldDoc)
	return sub, nil
}

// Mine returns the submission of an instructor.
func (svc *Service) Mine(ctx context.Context, instructor user.User) (Submission, error) {
	return svc.repo.FindSubmission(ctx, instructor.ID)
}

// ListPending returns submissions awaiting review. Employees only.
func (svc *Service) ListPending(ctx context.Context, actor user.User, page core.Page) ([]Submission, error) {
	if !actor.IsEmployee() {
		return nil, core.ErrForbidden
	}
	return svc.repo.QuerySubmissions(ctx, true, page)
}

// Review approves or rejects a pending submission. Approval marks the instructor verified.
// The instructor is notified by email of the decision.
func (svc *Service) Review(ctx context.Context, actor user.User, id string, d Decision) (Submission, error) {
	if !actor.IsEmployee() {
		return Submission{}, core.ErrForbidden
	}

	var (
		sub        Submission
		instructor user.User
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if sub, err = svc.repo.GetSubmission(ctx, id); err != nil {
			return err
		}
		if !sub.IsPending() {
			return ErrAlreadyReviewed
		}
		sub.IsApproved = d.Approve
		sub.ReviewedAt = null.TimeFrom(svc.now())
		sub.ReviewedBy = null.StringFrom(actor.ID)
		if sub, err = svc.repo.SaveSubmission(ctx, sub); err != nil {
			return errors.Wrap(err, "saving submission")
		}
		if d.Approve {
			if err := svc.users.MarkInstructorVerified(ctx, sub.InstructorID); err != nil {
				return err
			}
		}
		instructor, err = svc.users.GetByID(ctx, sub.InstructorID)
		return errors.Wrap(err, "getting instructor")
	})
	if err != nil {
		return Submission{}, err
	}

	if svc.mailSvc != nil {
		svc.mailSvc.SendMessages(decisionMessage(instructor, sub.IsApproved))
	}
	return sub, nil
}

func decisionMessage(instructor user.User, approved bool) *core.EmailMessage {
	outcome := "approved: your profile is now verified"
	if !approved {
		outcome = "rejected. You may submit a new request with updated documents"
	}
	return &core.EmailMessage{
		To:      []mail.Address{{Name: instructor.FullName(), Address: instructor.Email}},
		Subject: "Verification request reviewed",
		Body:    fmt.Sprintf("Hi %s,\n\nYour verification request was %s.\n", instructor.FullName(), outcome),
	}
}
