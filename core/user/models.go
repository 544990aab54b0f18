package user

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/learnhub/core"
)

// Role is the mutually exclusive account category of a User.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleEmployee   Role = "employee"
)

var Roles = []Role{RoleStudent, RoleInstructor, RoleEmployee}

func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleEmployee:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	DateJoined   time.Time `json:"date_joined" db:"date_joined"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`   // UTC
	LastLogin    null.Time `json:"last_login" db:"last_login"`   // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u User) IsStudent() bool    { return u.Role == RoleStudent }
func (u User) IsInstructor() bool { return u.Role == RoleInstructor }
func (u User) IsEmployee() bool   { return u.Role == RoleEmployee }

// Profile is the role specific part of an account. A User owns exactly one Profile whose
// Role matches User.Role; the concrete type is one of *StudentProfile, *InstructorProfile
// or *EmployeeProfile and callers switch on it.
type Profile interface {
	Role() Role
	Common() *ProfileBase
	sealed()
}

type ProfileBase struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Bio       string    `json:"bio" db:"bio"`
	PhotoKey  string    `json:"photo_key" db:"photo_key"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type StudentProfile struct {
	ProfileBase
	StudentNumber string       `json:"student_number" db:"student_number"`
	GPA           null.Float64 `json:"gpa" db:"gpa"`
}

type InstructorProfile struct {
	ProfileBase
	Qualifications    string       `json:"qualifications" db:"qualifications"`
	Specialization    string       `json:"specialization" db:"specialization"`
	IsVerified        bool         `json:"is_verified" db:"is_verified"`
	YearsOfExperience int          `json:"years_of_experience" db:"years_of_experience"`
	Website           string       `json:"website" db:"website"`
	HourlyRate        null.Float64 `json:"hourly_rate" db:"hourly_rate"`
}

type EmployeeProfile struct {
	ProfileBase
	Position       string      `json:"position" db:"position"`
	HireDate       time.Time   `json:"hire_date" db:"hire_date"`
	EmployeeNumber string      `json:"employee_number" db:"employee_number"`
	IsFullTime     bool        `json:"is_full_time" db:"is_full_time"`
	SupervisorID   null.String `json:"supervisor_id" db:"supervisor_id"`
}

var (
	_ Profile = (*StudentProfile)(nil)
	_ Profile = (*InstructorProfile)(nil)
	_ Profile = (*EmployeeProfile)(nil)
)

func (*StudentProfile) Role() Role    { return RoleStudent }
func (*InstructorProfile) Role() Role { return RoleInstructor }
func (*EmployeeProfile) Role() Role   { return RoleEmployee }

func (p *StudentProfile) Common() *ProfileBase    { return &p.ProfileBase }
func (p *InstructorProfile) Common() *ProfileBase { return &p.ProfileBase }
func (p *EmployeeProfile) Common() *ProfileBase   { return &p.ProfileBase }

func (*StudentProfile) sealed()    {}
func (*InstructorProfile) sealed() {}
func (*EmployeeProfile) sealed()   {}

// Tenure is the number of calendar years since the hire date.
func (p *EmployeeProfile) Tenure(now time.Time) int {
	return now.Year() - p.HireDate.Year()
}

// Account is a User together with its Profile.
type Account struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}

// Student returns the student profile of the account, if the account is a student's.
func (a Account) Student() (*StudentProfile, bool) {
	p, ok := a.Profile.(*StudentProfile)
	return p, ok
}

// Instructor returns the instructor profile of the account, if the account is an instructor's.
func (a Account) Instructor() (*InstructorProfile, bool) {
	p, ok := a.Profile.(*InstructorProfile)
	return p, ok
}

// Employee returns the employee profile of the account, if the account is an employee's.
func (a Account) Employee() (*EmployeeProfile, bool) {
	p, ok := a.Profile.(*EmployeeProfile)
	return p, ok
}

// Profile payloads

type StudentData struct {
	Bio           string   `json:"bio" validate:"omitempty,min=10"`
	StudentNumber string   `json:"student_number" validate:"required,min=5,max=20"`
	GPA           *float64 `json:"gpa" validate:"omitempty,gte=0,lt=10"`
}

type InstructorData struct {
	Bio               string   `json:"bio" validate:"omitempty,min=10"`
	Qualifications    string   `json:"qualifications" validate:"notblank"`
	Specialization    string   `json:"specialization" validate:"notblank,max=100"`
	YearsOfExperience int      `json:"years_of_experience" validate:"gte=0,lte=50"`
	Website           string   `json:"website" validate:"omitempty,url"`
	HourlyRate        *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
}

type EmployeeData struct {
	Bio            string    `json:"bio" validate:"omitempty,min=10"`
	Position       string    `json:"position" validate:"notblank,max=100"`
	HireDate       time.Time `json:"hire_date" validate:"required"`
	EmployeeNumber string    `json:"employee_number" validate:"notblank,max=20"`
	IsFullTime     *bool     `json:"is_full_time"`
	SupervisorID   string    `json:"supervisor_id" validate:"omitempty,uuid"`
}

// NewUser contains information needed to register a new account.
// Exactly the profile payload matching Role must be provided.
type NewUser struct {
	Username        string          `json:"username" validate:"required,min=3,max=150,username"`
	Email           string          `json:"email" validate:"required,email"`
	FirstName       string          `json:"first_name" validate:"max=150"`
	LastName        string          `json:"last_name" validate:"max=150"`
	Role            Role            `json:"role" validate:"required,role"`
	Password        string          `json:"password" validate:"required"`
	PasswordConfirm string          `json:"password_confirm" validate:"required,eqfield=Password"`
	Student         *StudentData    `json:"student"`
	Instructor      *InstructorData `json:"instructor"`
	Employee        *EmployeeData   `json:"employee"`
}

func (nu *NewUser) clean() {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
}

// UpdateProfile defines what may be changed on an account; only the payload matching the
// account's role is considered.
type UpdateProfile struct {
	FirstName  *string         `json:"first_name" validate:"omitempty,max=150"`
	LastName   *string         `json:"last_name" validate:"omitempty,max=150"`
	Email      string          `json:"email" validate:"omitempty,email"`
	Student    *StudentData    `json:"student"`
	Instructor *InstructorData `json:"instructor"`
	Employee   *EmployeeData   `json:"employee"`
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     Role   `query:"role"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func newProfile(usr User, nu NewUser, now time.Time) Profile {
	base := ProfileBase{UserID: usr.ID, CreatedAt: now, UpdatedAt: now}
	switch usr.Role {
	case RoleStudent:
		p := &StudentProfile{ProfileBase: base}
		applyStudentData(p, *nu.Student)
		return p
	case RoleInstructor:
		p := &InstructorProfile{ProfileBase: base}
		applyInstructorData(p, *nu.Instructor)
		return p
	case RoleEmployee:
		p := &EmployeeProfile{ProfileBase: base, IsFullTime: true}
		applyEmployeeData(p, *nu.Employee)
		return p
	}
	return nil
}

func applyStudentData(p *StudentProfile, d StudentData) {
	p.Bio = core.CleanString(d.Bio)
	p.StudentNumber = core.CleanString(d.StudentNumber)
	p.GPA = null.Float64FromPtr(d.GPA)
}

func applyInstructorData(p *InstructorProfile, d InstructorData) {
	p.Bio = core.CleanString(d.Bio)
	p.Qualifications = core.CleanString(d.Qualifications)
	p.Specialization = core.CleanString(d.Specialization)
	p.YearsOfExperience = d.YearsOfExperience
	p.Website = core.CleanString(d.Website)
	p.HourlyRate = null.Float64FromPtr(d.HourlyRate)
}

func applyEmployeeData(p *EmployeeProfile, d EmployeeData) {
	p.Bio = core.CleanString(d.Bio)
	p.Position = core.CleanString(d.Position)
	p.HireDate = d.HireDate.UTC()
	p.EmployeeNumber = core.CleanString(d.EmployeeNumber)
	if d.IsFullTime != nil {
		p.IsFullTime = *d.IsFullTime
	}
	p.SupervisorID = null.NewString(d.SupervisorID, d.SupervisorID != "")
}

// SetPassword is used to (re)set a user's password; the password policy is checked against
// the user's attributes.
type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	name, username, email string
}

// NewSetPassword returns a SetPassword payload bound to usr.
func NewSetPassword(usr User, pwd, confirm string) SetPassword {
	return SetPassword{
		Password:        pwd,
		PasswordConfirm: confirm,
		name:            usr.FullName(),
		username:        usr.Username,
		email:           usr.Email,
	}
}
