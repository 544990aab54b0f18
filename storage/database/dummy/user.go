package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func isExcluded(id string, excludedIDs []string) bool {
	for _, ex := range excludedIDs {
		if ex == id {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	defer repo.db.lock(ctx)()

	for _, usr := range repo.db.t.users {
		if isExcluded(usr.ID, excludedIDs) {
			continue
		}
		if usr.Username == uname {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	for _, u := range repo.db.t.users {
		if u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.t.users[usr.ID] = usr
	repo.db.t.track(usr.ID)
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	defer repo.db.lock(ctx)()

	if filter.ID != "" {
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.t.users {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, page core.Page) ([]user.User, error) {
	defer repo.db.lock(ctx)()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0)
	for _, u := range repo.db.t.users {
		// users with search keyword matching any of the names, username or email
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), search) &&
			!strings.Contains(strings.ToLower(u.LastName), search) &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return repo.db.t.newer(users[i].ID, users[i].DateJoined, users[j].ID, users[j].DateJoined)
	})
	lo, hi := window(len(users), page)
	return users[lo:hi], nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.t.users {
		if u.ID == usr.ID {
			continue
		}
		if u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	defer repo.db.lock(ctx)()

	t := repo.db.t
	for _, id := range ids {
		if _, ok := t.users[id]; !ok {
			continue
		}
		delete(t.users, id)
		delete(t.profiles, id)
		for pid, p := range t.profiles {
			if emp, ok := p.(*user.EmployeeProfile); ok && emp.SupervisorID.String == id {
				cp := *emp
				cp.SupervisorID.Valid, cp.SupervisorID.String = false, ""
				t.profiles[pid] = &cp
			}
		}
		for cid, c := range t.courses {
			if c.InstructorID == id {
				t.deleteCourse(cid)
			}
		}
		for eid, e := range t.enrollments {
			if e.StudentID == id {
				t.deleteEnrollment(eid)
			}
		}
		for rid, r := range t.reviews {
			if r.StudentID == id {
				delete(t.reviews, rid)
			}
		}
		for sid, s := range t.submissions {
			switch {
			case s.InstructorID == id:
				delete(t.submissions, sid)
			case s.ReviewedBy.String == id:
				s.ReviewedBy.Valid, s.ReviewedBy.String = false, ""
				t.submissions[sid] = s
			}
		}
	}
	return nil
}

// copyProfile returns a copy of p so that callers never share a stored row.
func copyProfile(p user.Profile) (user.Profile, error) {
	switch prof := p.(type) {
	case *user.StudentProfile:
		cp := *prof
		return &cp, nil
	case *user.InstructorProfile:
		cp := *prof
		return &cp, nil
	case *user.EmployeeProfile:
		cp := *prof
		return &cp, nil
	default:
		return nil, errors.Errorf("unknown profile type %T", p)
	}
}

// checkProfileNumbers emulates the unique profile number constraints.
func (repo *userRepository) checkProfileNumbers(p user.Profile) error {
	for uid, other := range repo.db.t.profiles {
		if uid == p.Common().UserID {
			continue
		}
		switch prof := p.(type) {
		case *user.StudentProfile:
			if o, ok := other.(*user.StudentProfile); ok && o.StudentNumber == prof.StudentNumber {
				return user.ErrStudentNumberExists
			}
		case *user.EmployeeProfile:
			if o, ok := other.(*user.EmployeeProfile); ok && o.EmployeeNumber == prof.EmployeeNumber {
				return user.ErrEmployeeNumberExists
			}
		}
	}
	return nil
}

func (repo *userRepository) CreateProfile(ctx context.Context, p user.Profile) error {
	defer repo.db.lock(ctx)()

	cp, err := copyProfile(p)
	if err != nil {
		return err
	}
	uid := cp.Common().UserID
	if _, ok := repo.db.t.users[uid]; !ok {
		return errors.Errorf("user %s does not exist", uid)
	}
	if _, ok := repo.db.t.profiles[uid]; ok {
		return errors.Errorf("user %s already has a profile", uid)
	}
	if err = repo.checkProfileNumbers(cp); err != nil {
		return err
	}
	repo.db.t.profiles[uid] = cp
	return nil
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string, role user.Role) (user.Profile, error) {
	defer repo.db.lock(ctx)()

	p, ok := repo.db.t.profiles[userID]
	if !ok || p.Role() != role {
		return nil, user.ErrProfileNotFound
	}
	return copyProfile(p)
}

func (repo *userRepository) UpdateProfile(ctx context.Context, p user.Profile) error {
	defer repo.db.lock(ctx)()

	cp, err := copyProfile(p)
	if err != nil {
		return err
	}
	uid := cp.Common().UserID
	if old, ok := repo.db.t.profiles[uid]; !ok || old.Role() != cp.Role() {
		return user.ErrProfileNotFound
	}
	if err = repo.checkProfileNumbers(cp); err != nil {
		return err
	}
	repo.db.t.profiles[uid] = cp
	return nil
}
