package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/trezcool/learnhub/core/catalog"
	"github.com/trezcool/learnhub/core/curriculum"
	"github.com/trezcool/learnhub/core/enrollment"
	"github.com/trezcool/learnhub/core/user"
)

// Password satisfies the password policy for every fixture user.
const Password = "Xy9!kLmn#42"

func newUser(uname string, role user.Role) user.NewUser {
	return user.NewUser{
		Username:        uname,
		Email:           uname + "@test.cd",
		FirstName:       strings.Title(uname),
		LastName:        "Test",
		Role:            role,
		Password:        Password,
		PasswordConfirm: Password,
	}
}

func register(t *testing.T, env *Env, nu user.NewUser) user.User {
	t.Helper()
	acc, err := env.UserSvc.Register(context.Background(), nu)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", nu.Username, err)
	}
	return acc.User
}

func CreateStudent(t *testing.T, env *Env, uname string) user.User {
	nu := newUser(uname, user.RoleStudent)
	nu.Student = &user.StudentData{StudentNumber: "STU-" + uname}
	return register(t, env, nu)
}

func CreateInstructor(t *testing.T, env *Env, uname string) user.User {
	nu := newUser(uname, user.RoleInstructor)
	nu.Instructor = &user.InstructorData{
		Qualifications:    "PhD in Computer Science",
		Specialization:    "Distributed systems",
		YearsOfExperience: 5,
	}
	return register(t, env, nu)
}

func CreateEmployee(t *testing.T, env *Env, uname string) user.User {
	nu := newUser(uname, user.RoleEmployee)
	nu.Employee = &user.EmployeeData{
		Position:       "Moderator",
		HireDate:       env.Now.AddDate(-2, 0, 0),
		EmployeeNumber: "EMP-" + uname,
	}
	return register(t, env, nu)
}

func CreateCategory(t *testing.T, env *Env, employee user.User, name string) catalog.Category {
	t.Helper()
	cat, err := env.CatalogSvc.CreateCategory(context.Background(), employee, catalog.NewCategory{Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%s) failed: %v", name, err)
	}
	return cat
}

func CreateCourse(
	t *testing.T,
	env *Env,
	instructor user.User,
	cat catalog.Category,
	title string,
	status catalog.CourseStatus,
	price ...float64,
) catalog.Course {
	t.Helper()
	nc := catalog.NewCourse{
		Title:       title,
		Description: "All about " + title,
		CategoryID:  cat.ID,
		Status:      status,
	}
	if len(price) > 0 {
		nc.Price = price[0]
	}
	course, err := env.CatalogSvc.CreateCourse(context.Background(), instructor, nc)
	if err != nil {
		t.Fatalf("CreateCourse(%s) failed: %v", title, err)
	}
	return course
}

func CreateLesson(
	t *testing.T,
	env *Env,
	instructor user.User,
	course catalog.Course,
	title string,
	order int,
) curriculum.Lesson {
	t.Helper()
	lesson, err := env.CurriculumSvc.CreateLesson(
		context.Background(),
		instructor,
		course.Slug,
		curriculum.NewLesson{Title: title, Order: order, DurationMinutes: 10},
	)
	if err != nil {
		t.Fatalf("CreateLesson(%s) failed: %v", title, err)
	}
	return lesson
}

func Enroll(t *testing.T, env *Env, student user.User, course catalog.Course) enrollment.Enrollment {
	t.Helper()
	e, err := env.EnrollmentSvc.Enroll(context.Background(), student, course.ID)
	if err != nil {
		t.Fatalf("Enroll(%s, %s) failed: %v", student.Username, course.Slug, err)
	}
	return e
}
