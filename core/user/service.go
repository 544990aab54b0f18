package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnhub/core"
)

var (
	// errors
	ErrNotFound              = core.NewNotFoundError("user")
	ErrProfileNotFound       = core.NewNotFoundError("profile")
	ErrEmailExists           = errors.New("a user with this email already exists")
	ErrUsernameExists        = errors.New("a user with this username already exists")
	ErrStudentNumberExists   = core.NewConflictError("a student with this number already exists")
	ErrEmployeeNumberExists  = core.NewConflictError("an employee with this number already exists")
	ErrProfilePayloadMissing = errors.New("profile data for the user role is required")
	ErrUnqualifiedInstructor = errors.New("verified instructors must have qualifications listed")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user,
		// not listed in excludedIDs, already uses uname or email.
		CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on the names, username or email.
		QueryUsers(ctx context.Context, filter QueryFilter, page core.Page) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error

		// CreateProfile stores p; it returns ErrStudentNumberExists or ErrEmployeeNumberExists
		// when the profile number is taken.
		CreateProfile(ctx context.Context, p Profile) error
		GetProfile(ctx context.Context, userID string, role Role) (Profile, error)
		UpdateProfile(ctx context.Context, p Profile) error
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		validate *validator.Validate
		now      core.Clock
	}
)

func NewService(tx core.Transactor, repo Repository, validate *validator.Validate, clock core.Clock) *Service {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Service{tx: tx, repo: repo, validate: validate, now: clock}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a user together with the profile matching its role.
func (svc *Service) Register(ctx context.Context, nu NewUser) (Account, error) {
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return Account{}, err
	}

	now := svc.now()
	usr := User{
		ID:         uuid.NewString(),
		Username:   nu.Username,
		Email:      nu.Email,
		FirstName:  nu.FirstName,
		LastName:   nu.LastName,
		Role:       nu.Role,
		IsActive:   true,
		DateJoined: now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}

	var acc Account
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.checkUniqueness(ctx, usr.Username, usr.Email); err != nil {
			return err
		}
		created, err := svc.repo.CreateUser(ctx, usr)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		profile := newProfile(created, nu, now)
		if err := svc.repo.CreateProfile(ctx, profile); err != nil {
			return errors.Wrap(err, "creating profile")
		}
		acc = Account{User: created, Profile: profile}
		return nil
	})
	return acc, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// GetAccount returns the user and its profile.
func (svc *Service) GetAccount(ctx context.Context, id string) (Account, error) {
	var acc Account
	err := svc.tx.WithinReadTx(ctx, func(ctx context.Context) error {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
		if err != nil {
			return err
		}
		profile, err := svc.repo.GetProfile(ctx, usr.ID, usr.Role)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}
		acc = Account{User: usr, Profile: profile}
		return nil
	})
	return acc, err
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, page core.Page) ([]User, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, page)
}

// ListInstructors returns active instructors with their profiles.
func (svc *Service) ListInstructors(ctx context.Context, page core.Page) ([]Account, error) {
	active := true
	var accs []Account
	err := svc.tx.WithinReadTx(ctx, func(ctx context.Context) error {
		users, err := svc.repo.QueryUsers(ctx, QueryFilter{Role: RoleInstructor, IsActive: &active}, page)
		if err != nil {
			return errors.Wrap(err, "querying instructors")
		}
		accs = make([]Account, 0, len(users))
		for _, usr := range users {
			profile, err := svc.repo.GetProfile(ctx, usr.ID, usr.Role)
			if err != nil {
				return errors.Wrap(err, "getting instructor profile")
			}
			accs = append(accs, Account{User: usr, Profile: profile})
		}
		return nil
	})
	return accs, err
}

// UpdateProfile applies the payload matching the account role and returns the updated account.
func (svc *Service) UpdateProfile(ctx context.Context, userID string, up UpdateProfile) (Account, error) {
	if err := svc.validate.Struct(up); err != nil {
		return Account{}, err
	}

	var acc Account
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: userID})
		if err != nil {
			return err
		}
		profile, err := svc.repo.GetProfile(ctx, usr.ID, usr.Role)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}

		now := svc.now()
		if up.FirstName != nil {
			usr.FirstName = core.CleanString(*up.FirstName)
		}
		if up.LastName != nil {
			usr.LastName = core.CleanString(*up.LastName)
		}
		if email := core.CleanString(up.Email, true /* lower */); email != "" && email != usr.Email {
			if err := svc.checkUniqueness(ctx, "", email, usr.ID); err != nil {
				return err
			}
			usr.Email = email
		}
		usr.UpdatedAt = now
		if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "updating user")
		}

		if err := applyProfileUpdate(profile, up); err != nil {
			return err
		}
		profile.Common().UpdatedAt = now
		if err := svc.repo.UpdateProfile(ctx, profile); err != nil {
			return errors.Wrap(err, "updating profile")
		}
		acc = Account{User: usr, Profile: profile}
		return nil
	})
	return acc, err
}

func applyProfileUpdate(profile Profile, up UpdateProfile) error {
	missing := func(field string) error {
		return core.NewValidationError(
			ErrProfilePayloadMissing,
			core.FieldError{Field: field, Error: ErrProfilePayloadMissing.Error()},
		)
	}
	switch p := profile.(type) {
	case *StudentProfile:
		if up.Student == nil {
			return missing("student")
		}
		applyStudentData(p, *up.Student)
	case *InstructorProfile:
		if up.Instructor == nil {
			return missing("instructor")
		}
		applyInstructorData(p, *up.Instructor)
		if p.IsVerified && p.Qualifications == "" {
			return core.NewValidationError(
				ErrUnqualifiedInstructor,
				core.FieldError{Field: "qualifications", Error: ErrUnqualifiedInstructor.Error()},
			)
		}
	case *EmployeeProfile:
		if up.Employee == nil {
			return missing("employee")
		}
		applyEmployeeData(p, *up.Employee)
	default:
		return errors.Errorf("unknown profile type %T", profile)
	}
	return nil
}

// SetPhoto replaces the profile photo key and returns the previous one, which the caller
// deletes from blob storage once the change is committed.
func (svc *Service) SetPhoto(ctx context.Context, userID, key string) (string, error) {
	var old string
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		usr, err := svc.repo.GetUser(ctx, GetFilter{ID: userID})
		if err != nil {
			return err
		}
		profile, err := svc.repo.GetProfile(ctx, usr.ID, usr.Role)
		if err != nil {
			return errors.Wrap(err, "getting profile")
		}
		base := profile.Common()
		old = base.PhotoKey
		base.PhotoKey = key
		base.UpdatedAt = svc.now()
		return svc.repo.UpdateProfile(ctx, profile)
	})
	return old, err
}

// MarkInstructorVerified flips the verified flag of an instructor profile. It must run
// inside the caller's transaction.
func (svc *Service) MarkInstructorVerified(ctx context.Context, userID string) error {
	profile, err := svc.repo.GetProfile(ctx, userID, RoleInstructor)
	if err != nil {
		return err
	}
	p, ok := profile.(*InstructorProfile)
	if !ok {
		return ErrProfileNotFound
	}
	if p.Qualifications == "" {
		return core.NewValidationError(
			ErrUnqualifiedInstructor,
			core.FieldError{Field: "qualifications", Error: ErrUnqualifiedInstructor.Error()},
		)
	}
	p.IsVerified = true
	p.UpdatedAt = svc.now()
	return svc.repo.UpdateProfile(ctx, p)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(svc.now())
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword validates the password policy and stores the new hash.
func (svc *Service) SetPassword(ctx context.Context, usr User, sp SetPassword) (User, error) {
	if err := svc.validate.Struct(sp); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(sp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = svc.now()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetActive activates or deactivates an account.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	var usr User
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if usr, err = svc.repo.GetUser(ctx, GetFilter{ID: id}); err != nil {
			return err
		}
		usr.IsActive = active
		usr.UpdatedAt = svc.now()
		usr, err = svc.repo.UpdateUser(ctx, usr)
		return err
	})
	return usr, err
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// Now exposes the service clock to collaborators that stamp records on behalf of users.
func (svc *Service) Now() time.Time {
	return svc.now()
}
