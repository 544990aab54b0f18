package catalog

import (
	"time"

	"github.com/trezcool/learnhub/core"
)

// CourseStatus is free-form: any status may follow any other.
type CourseStatus string

const (
	StatusDraft     CourseStatus = "draft"
	StatusPublished CourseStatus = "published"
	StatusArchived  CourseStatus = "archived"
)

var CourseStatuses = []CourseStatus{StatusDraft, StatusPublished, StatusArchived}

func (s CourseStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

type Category struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	ImageKey    string    `json:"image_key" db:"image_key"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Tag struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Slug  string `json:"slug" db:"slug"`
	Color string `json:"color" db:"color"`
}

type Course struct {
	ID           string       `json:"id" db:"id"`
	Title        string       `json:"title" db:"title"`
	Slug         string       `json:"slug" db:"slug"`
	Description  string       `json:"description" db:"description"`
	InstructorID string       `json:"instructor_id" db:"instructor_id"`
	CategoryID   string       `json:"category_id" db:"category_id"`
	Price        float64      `json:"price" db:"price"`
	Status       CourseStatus `json:"status" db:"status"`
	ImageKey     string       `json:"image_key" db:"image_key"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
	TagIDs       []string     `json:"tag_ids" db:"-"`
}

func (c Course) IsFree() bool      { return c.Price == 0 }
func (c Course) IsPublished() bool { return c.Status == StatusPublished }

// Payloads

type NewCategory struct {
	Name        string `json:"name" validate:"notblank,max=100"`
	Description string `json:"description"`
	ImageKey    string `json:"image_key" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

type UpdateCategory struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description"`
	ImageKey    *string `json:"image_key" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

type NewTag struct {
	Name  string `json:"name" validate:"notblank,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type UpdateTag struct {
	Name  *string `json:"name" validate:"omitempty,notblank,max=50"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

type NewCourse struct {
	Title       string       `json:"title" validate:"notblank,max=200"`
	Slug        string       `json:"slug" validate:"max=200"`
	Description string       `json:"description" validate:"notblank"`
	CategoryID  string       `json:"category_id" validate:"required,uuid"`
	TagIDs      []string     `json:"tag_ids" validate:"dive,uuid"`
	Price       float64      `json:"price" validate:"gte=0,lt=1000000"`
	Status      CourseStatus `json:"status" validate:"omitempty,course_status"`
	ImageKey    string       `json:"image_key" validate:"max=255"`
}

func (nc *NewCourse) clean() {
	nc.Title = core.CleanString(nc.Title)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	nc.Description = core.CleanString(nc.Description)
	nc.ImageKey = core.CleanString(nc.ImageKey)
	if nc.Status == "" {
		nc.Status = StatusDraft
	}
}

// UpdateCourse holds the changes to apply to a course. A non-nil empty Slug regenerates
// the slug from the (new) title.
type UpdateCourse struct {
	Title       *string       `json:"title" validate:"omitempty,notblank,max=200"`
	Slug        *string       `json:"slug" param:"-" validate:"omitempty,max=200"`
	Description *string       `json:"description" validate:"omitempty,notblank"`
	CategoryID  *string       `json:"category_id" validate:"omitempty,uuid"`
	TagIDs      *[]string     `json:"tag_ids" validate:"omitempty,dive,uuid"`
	Price       *float64      `json:"price" validate:"omitempty,gte=0,lt=1000000"`
	Status      *CourseStatus `json:"status" validate:"omitempty,course_status"`
	ImageKey    *string       `json:"image_key" validate:"omitempty,max=255"`
}

type CategoryFilter struct {
	ID   string
	Slug string
}

type CourseFilter struct {
	ID   string
	Slug string
}

// CourseQuery filters course lists; zero values are ignored.
type CourseQuery struct {
	CategorySlug string       `query:"category"`
	InstructorID string       `query:"instructor"`
	Status       CourseStatus `query:"-"`
	Search       string       `query:"search"`
}
