package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnhub/core"
	"github.com/trezcool/learnhub/core/user"
	"github.com/trezcool/learnhub/tests"
)

var now = time.Date(2021, time.June, 15, 10, 30, 0, 0, time.UTC)

func newStudent(uname, pwd string) user.NewUser {
	return user.NewUser{
		Username:        uname,
		Email:           uname + "@test.cd",
		FirstName:       "Test",
		LastName:        "Student",
		Role:            user.RoleStudent,
		Password:        pwd,
		PasswordConfirm: pwd,
		Student:         &user.StudentData{StudentNumber: "STU-" + uname},
	}
}

// failedTags maps each failing struct field to its validation tag.
func failedTags(t *testing.T, err error) map[string]string {
	t.Helper()
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs), "want validator.ValidationErrors, got %v", err)
	tags := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		tags[fe.StructField()] = fe.Tag()
	}
	return tags
}

func TestService_Register_validation(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()

	tests := []struct {
		name     string
		nu       func() user.NewUser
		wantTags map[string]string
	}{
		{
			name: "unknown role",
			nu: func() user.NewUser {
				nu := newStudent("hero", testutil.Password)
				nu.Role = "teacher"
				return nu
			},
			wantTags: map[string]string{"Role": "role", "Student": "profile_role"},
		},
		{
			name: "profile mismatch",
			nu: func() user.NewUser {
				nu := newStudent("hero", testutil.Password)
				nu.Instructor = &user.InstructorData{Qualifications: "PhD", Specialization: "Go"}
				return nu
			},
			wantTags: map[string]string{"Instructor": "profile_role"},
		},
		{
			name: "missing profile",
			nu: func() user.NewUser {
				nu := newStudent("hero", testutil.Password)
				nu.Student = nil
				return nu
			},
			wantTags: map[string]string{"Student": "profile_role"},
		},
		{
			name: "bad username",
			nu: func() user.NewUser {
				nu := newStudent("hero", testutil.Password)
				nu.Username = "he-ro"
				return nu
			},
			wantTags: map[string]string{"Username": "username"},
		},
		{name: "short password", nu: func() user.NewUser { return newStudent("hero", "Ab1!") }, wantTags: map[string]string{"Password": "pwdminlen"}},
		{name: "spaces", nu: func() user.NewUser { return newStudent("hero", "Abc def1!") }, wantTags: map[string]string{"Password": "pwdnospace"}},
		{name: "all numeric", nu: func() user.NewUser { return newStudent("hero", "12345678") }, wantTags: map[string]string{"Password": "pwdnotallnum"}},
		{name: "too simple", nu: func() user.NewUser { return newStudent("hero", "Abcdefgh1") }, wantTags: map[string]string{"Password": "pwdcplx"}},
		{name: "too similar", nu: func() user.NewUser { return newStudent("zorglub42", "Zorglub42!") }, wantTags: map[string]string{"Password": "pwdtoosim"}},
		{name: "too common", nu: func() user.NewUser { return newStudent("hero", "Password1!") }, wantTags: map[string]string{"Password": "pwdnocommon"}},
		{
			name: "confirmation mismatch",
			nu: func() user.NewUser {
				nu := newStudent("hero", testutil.Password)
				nu.PasswordConfirm = "Xy9!kLmn#43"
				return nu
			},
			wantTags: map[string]string{"PasswordConfirm": "eqfield"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.UserSvc.Register(ctx, tt.nu())
			require.Error(t, err)
			assert.Equal(t, tt.wantTags, failedTags(t, err))
		})
	}
}

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()

	nu := newStudent("  Hero ", testutil.Password)
	nu.Email = " HERO@Test.cd "
	nu.Student.StudentNumber = "STU-001"
	acc, err := env.UserSvc.Register(ctx, nu)
	require.NoError(t, err)
	assert.Equal(t, "hero", acc.User.Username)
	assert.Equal(t, "hero@test.cd", acc.User.Email)
	assert.True(t, acc.User.IsActive)
	assert.Equal(t, now, acc.User.DateJoined)
	assert.NoError(t, acc.User.CheckPassword(testutil.Password))

	p, ok := acc.Student()
	require.True(t, ok)
	assert.Equal(t, "STU-001", p.StudentNumber)
	assert.Equal(t, now, p.CreatedAt)

	got, err := env.UserSvc.GetAccount(ctx, acc.User.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, got.Profile.Role())

	t.Run("uniqueness", func(t *testing.T) {
		tests := []struct {
			name      string
			nu        user.NewUser
			wantField string
			wantErr   error
		}{
			{name: "username", nu: newStudent("HERO", testutil.Password), wantField: "username"},
			{
				name: "email",
				nu: func() user.NewUser {
					nu := newStudent("hero2", testutil.Password)
					nu.Email = "hero@test.cd"
					return nu
				}(),
				wantField: "email",
			},
			{
				name: "student number",
				nu: func() user.NewUser {
					nu := newStudent("hero3", testutil.Password)
					nu.Student.StudentNumber = "STU-001"
					return nu
				}(),
				wantErr: user.ErrStudentNumberExists,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.UserSvc.Register(ctx, tt.nu)
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, errors.Cause(err))
					assert.True(t, core.IsConflict(err))
					return
				}
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr))
				require.Len(t, verr.Fields, 1)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)
			})
		}

		// the failed registration left no user behind
		_, err := env.UserSvc.GetByUsernameOrEmail(ctx, "hero3")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestService_UpdateProfile(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	prof := testutil.CreateInstructor(t, env, "prof")
	testutil.CreateStudent(t, env, "hero")

	_, err := env.UserSvc.UpdateProfile(ctx, prof.ID, user.UpdateProfile{
		Student: &user.StudentData{StudentNumber: "STU-999"},
	})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "instructor", verr.Fields[0].Field)

	_, err = env.UserSvc.UpdateProfile(ctx, prof.ID, user.UpdateProfile{
		Email:      "hero@test.cd",
		Instructor: &user.InstructorData{Qualifications: "PhD", Specialization: "Go"},
	})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Fields[0].Field)

	later := now.Add(time.Hour)
	env.SetNow(later)
	first, rate := "Grace", 80.0
	acc, err := env.UserSvc.UpdateProfile(ctx, prof.ID, user.UpdateProfile{
		FirstName: &first,
		Email:     "Grace@Test.cd",
		Instructor: &user.InstructorData{
			Qualifications:    "PhD",
			Specialization:    "Compilers",
			YearsOfExperience: 12,
			HourlyRate:        &rate,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", acc.User.FirstName)
	assert.Equal(t, "grace@test.cd", acc.User.Email)
	assert.Equal(t, later, acc.User.UpdatedAt)
	p, ok := acc.Instructor()
	require.True(t, ok)
	assert.Equal(t, "Compilers", p.Specialization)
	assert.Equal(t, 12, p.YearsOfExperience)
	assert.Equal(t, 80.0, p.HourlyRate.Float64)
	assert.False(t, p.IsVerified)
	assert.Equal(t, later, p.UpdatedAt)
}

func TestService_SetPassword(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	hero := testutil.CreateStudent(t, env, "hero")

	_, err := env.UserSvc.SetPassword(ctx, hero, user.NewSetPassword(hero, "Hero Test!1", "Hero Test!1"))
	assert.Equal(t, map[string]string{"Password": "pwdnospace"}, failedTags(t, err))

	newPwd := "Qw3rty!Uiop"
	updated, err := env.UserSvc.SetPassword(ctx, hero, user.NewSetPassword(hero, newPwd, newPwd))
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword(newPwd))
	assert.Error(t, updated.CheckPassword(testutil.Password))
}

func TestService_SetActive_Query(t *testing.T) {
	env := testutil.NewEnv(t, now)
	ctx := context.Background()
	testutil.CreateStudent(t, env, "hero")
	prof := testutil.CreateInstructor(t, env, "prof")
	testutil.CreateInstructor(t, env, "grace")

	usr, err := env.UserSvc.SetActive(ctx, prof.ID, false)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	instructors, err := env.UserSvc.ListInstructors(ctx, core.Page{Number: 1})
	require.NoError(t, err)
	require.Len(t, instructors, 1)
	assert.Equal(t, "grace", instructors[0].User.Username)

	found, err := env.UserSvc.Query(ctx, user.QueryFilter{Search: " GRA "}, core.Page{Number: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "grace", found[0].Username)

	students, err := env.UserSvc.Query(ctx, user.QueryFilter{Role: user.RoleStudent}, core.Page{Number: 1})
	require.NoError(t, err)
	assert.Len(t, students, 1)

	_, err = env.UserSvc.SetActive(ctx, "lol", true)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestEmployeeProfile_Tenure(t *testing.T) {
	p := user.EmployeeProfile{HireDate: time.Date(2015, time.December, 31, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 6, p.Tenure(now))
	assert.Equal(t, 0, p.Tenure(p.HireDate))
}
