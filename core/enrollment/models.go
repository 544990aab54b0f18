package enrollment

import (
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDropped   Status = "dropped"
	StatusSuspended Status = "suspended"
)

var Statuses = []Status{StatusActive, StatusCompleted, StatusDropped, StatusSuspended}

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusDropped, StatusSuspended:
		return true
	}
	return false
}

// Enrollment ties one student to one course.
type Enrollment struct {
	ID          string       `json:"id" db:"id"`
	StudentID   string       `json:"student_id" db:"student_id"`
	CourseID    string       `json:"course_id" db:"course_id"`
	Status      Status       `json:"status" db:"status"`
	EnrolledAt  time.Time    `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt null.Time    `json:"completion_date" db:"completion_date"`
	Grade       null.Float64 `json:"grade" db:"grade"`
}

// IsCompleted reports whether the enrollment was ever completed.
func (e Enrollment) IsCompleted() bool { return e.CompletedAt.Valid }

func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

// Progress tracks the completion of one lesson within an enrollment. CompletedAt is set the
// first time IsCompleted becomes true and is kept when it is toggled back to false.
type Progress struct {
	ID           string    `json:"id" db:"id"`
	EnrollmentID string    `json:"enrollment_id" db:"enrollment_id"`
	LessonID     string    `json:"lesson_id" db:"lesson_id"`
	IsCompleted  bool      `json:"is_completed" db:"is_completed"`
	CompletedAt  null.Time `json:"completed_at" db:"completed_at"`
	LastAccessed time.Time `json:"last_accessed" db:"last_accessed"`

	// set by listings only
	LessonTitle string `json:"lesson_title,omitempty" db:"lesson_title"`
	LessonOrder int    `json:"lesson_order,omitempty" db:"lesson_order"`
}

type ActivityType string

const (
	ActivityEnrollment ActivityType = "enrollment"
	ActivityCompletion ActivityType = "completion"
	ActivityProgress   ActivityType = "progress"
)

// Activity is an immutable enrollment lifecycle event. CourseID is copied from the
// enrollment when the event is recorded.
type Activity struct {
	ID           string       `json:"id" db:"id"`
	EnrollmentID string       `json:"enrollment_id" db:"enrollment_id"`
	CourseID     string       `json:"course_id" db:"course_id"`
	Type         ActivityType `json:"activity_type" db:"activity_type"`
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`
	Details      null.JSON    `json:"details" db:"details"`
}

func newDetails(details map[string]interface{}) null.JSON {
	if len(details) == 0 {
		return null.JSON{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return null.JSON{}
	}
	return null.JSONFrom(data)
}

// Query filters enrollment lists; zero values are ignored.
type Query struct {
	StudentID    string `query:"-"`
	InstructorID string `query:"-"`
	CourseID     string `query:"course"`
	Status       Status `query:"status"`
}

// ActivityQuery filters activity lists; zero values are ignored.
type ActivityQuery struct {
	CourseID     string
	InstructorID string
	EnrollmentID string
	Limit        int
}

type SetGrade struct {
	Grade *float64 `json:"grade" validate:"omitempty,gte=0,lte=100"`
}

type SetStatus struct {
	Status Status `json:"status" validate:"required,enrollment_status"`
}
