package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/storage/database"
)

var userConstraints = database.Constraints{
	"users_username_key":                    user.ErrUsernameExists,
	"users_email_key":                       user.ErrEmailExists,
	"student_profiles_student_number_key":   user.ErrStudentNumberExists,
	"employee_profiles_employee_number_key": user.ErrEmployeeNumberExists,
}

const userColumns = `id, username, email, first_name, last_name, role, is_active, password_hash,
	date_joined, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q, args, err := sqlx.In(`
		SELECT username, email FROM users
		WHERE (username = ? OR email = ?) AND id NOT IN (?)`,
		uname, email, append([]string{"00000000-0000-0000-0000-000000000000"}, excludedIDs...),
	)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	exec := database.Exec(ctx, repo.db)
	if err = exec.SelectContext(ctx, &taken, exec.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	for _, t := range taken {
		if uname != "" && t.Username == uname {
			return user.ErrUsernameExists
		}
		if email != "" && t.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :username, :email, :first_name, :last_name, :role, :is_active, :password_hash,
			:date_joined, :updated_at, :last_login)`,
		usr,
	)
	if err != nil {
		return user.User{}, userConstraints.Map(err, nil, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		cond, arg = "id = $1", filter.ID
	case filter.Username != "":
		cond, arg = "username = $1", filter.Username
	case filter.Email != "":
		cond, arg = "email = $1", filter.Email
	case filter.UsernameOrEmail != "":
		cond, arg = "(username = $1 OR email = $1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	err := database.Exec(ctx, repo.db).GetContext(ctx, &usr, `SELECT `+userColumns+` FROM users WHERE `+cond, arg)
	if err != nil {
		return user.User{}, userConstraints.Map(err, user.ErrNotFound, "getting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, page core.Page) ([]user.User, error) {
	var (
		conds = []string{"true"}
		a     args
	)
	if filter.Search != "" {
		p := a.add("%" + filter.Search + "%")
		conds = append(conds, "(first_name ILIKE "+p+" OR last_name ILIKE "+p+" OR username ILIKE "+p+" OR email ILIKE "+p+")")
	}
	if filter.Role != "" {
		conds = append(conds, "role = "+a.add(filter.Role))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+a.add(*filter.IsActive))
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY date_joined DESC LIMIT ` + a.add(page.Limit()) + ` OFFSET ` + a.add(page.Offset())

	users := make([]user.User, 0)
	if err := database.Exec(ctx, repo.db).SelectContext(ctx, &users, q, a...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE users SET username = :username, email = :email, first_name = :first_name,
			last_name = :last_name, is_active = :is_active, password_hash = :password_hash,
			updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		usr,
	)
	if err != nil {
		return user.User{}, userConstraints.Map(err, nil, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	exec := database.Exec(ctx, repo.db)
	_, err = exec.ExecContext(ctx, exec.Rebind(q), args...)
	return errors.Wrap(err, "deleting users")
}

func (repo userRepository) CreateProfile(ctx context.Context, p user.Profile) error {
	var q string
	switch p.(type) {
	case *user.StudentProfile:
		q = `INSERT INTO student_profiles (user_id, bio, photo_key, student_number, gpa, created_at, updated_at)
			VALUES (:user_id, :bio, :photo_key, :student_number, :gpa, :created_at, :updated_at)`
	case *user.InstructorProfile:
		q = `INSERT INTO instructor_profiles (user_id, bio, photo_key, qualifications, specialization,
				is_verified, years_of_experience, website, hourly_rate, created_at, updated_at)
			VALUES (:user_id, :bio, :photo_key, :qualifications, :specialization,
				:is_verified, :years_of_experience, :website, :hourly_rate, :created_at, :updated_at)`
	case *user.EmployeeProfile:
		q = `INSERT INTO employee_profiles (user_id, bio, photo_key, position, hire_date, employee_number,
				is_full_time, supervisor_id, created_at, updated_at)
			VALUES (:user_id, :bio, :photo_key, :position, :hire_date, :employee_number,
				:is_full_time, :supervisor_id, :created_at, :updated_at)`
	default:
		return errors.Errorf("unknown profile type %T", p)
	}
	_, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, q, p)
	return userConstraints.Map(err, nil, "inserting profile")
}

func (repo userRepository) GetProfile(ctx context.Context, userID string, role user.Role) (user.Profile, error) {
	var (
		p     user.Profile
		table string
	)
	switch role {
	case user.RoleStudent:
		p, table = new(user.StudentProfile), "student_profiles"
	case user.RoleInstructor:
		p, table = new(user.InstructorProfile), "instructor_profiles"
	case user.RoleEmployee:
		p, table = new(user.EmployeeProfile), "employee_profiles"
	default:
		return nil, user.ErrProfileNotFound
	}
	err := database.Exec(ctx, repo.db).GetContext(ctx, p, `SELECT * FROM `+table+` WHERE user_id = $1`, userID)
	if err != nil {
		return nil, userConstraints.Map(err, user.ErrProfileNotFound, "getting profile")
	}
	return p, nil
}

func (repo userRepository) UpdateProfile(ctx context.Context, p user.Profile) error {
	var q string
	switch p.(type) {
	case *user.StudentProfile:
		q = `UPDATE student_profiles SET bio = :bio, photo_key = :photo_key, student_number = :student_number,
				gpa = :gpa, updated_at = :updated_at
			WHERE user_id = :user_id`
	case *user.InstructorProfile:
		q = `UPDATE instructor_profiles SET bio = :bio, photo_key = :photo_key, qualifications = :qualifications,
				specialization = :specialization, is_verified = :is_verified,
				years_of_experience = :years_of_experience, website = :website, hourly_rate = :hourly_rate,
				updated_at = :updated_at
			WHERE user_id = :user_id`
	case *user.EmployeeProfile:
		q = `UPDATE employee_profiles SET bio = :bio, photo_key = :photo_key, position = :position,
				hire_date = :hire_date, employee_number = :employee_number, is_full_time = :is_full_time,
				supervisor_id = :supervisor_id, updated_at = :updated_at
			WHERE user_id = :user_id`
	default:
		return errors.Errorf("unknown profile type %T", p)
	}
	res, err := database.Exec(ctx, repo.db).NamedExecContext(ctx, q, p)
	if err != nil {
		return userConstraints.Map(err, nil, "updating profile")
	}
	return checkAffected(res, user.ErrProfileNotFound)
}
