package curriculum

import (
	"time"

	"github.com/trezcool/learnhub/core"
)

// Lesson is a learning unit of a course. Order and Title are unique within the course;
// lessons are listed by Order, gaps allowed.
type Lesson struct {
	ID              string    `json:"id" db:"id"`
	CourseID        string    `json:"course_id" db:"course_id"`
	Title           string    `json:"title" db:"title"`
	Order           int       `json:"order" db:"position"`
	Description     string    `json:"description" db:"description"`
	VideoURL        string    `json:"video_url" db:"video_url"`
	ResourceKey     string    `json:"resource_key" db:"resource_key"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	IsPreview       bool      `json:"is_preview" db:"is_preview"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type NewLesson struct {
	Title           string `json:"title" validate:"notblank,max=200"`
	Order           int    `json:"order" validate:"required,gte=1"`
	Description     string `json:"description"`
	VideoURL        string `json:"video_url" validate:"omitempty,url,max=200"`
	ResourceKey     string `json:"resource_key" validate:"max=255"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
	IsPreview       bool   `json:"is_preview"`
}

func (nl *NewLesson) clean() {
	nl.Title = core.CleanString(nl.Title)
	nl.Description = core.CleanString(nl.Description)
	nl.VideoURL = core.CleanString(nl.VideoURL)
	nl.ResourceKey = core.CleanString(nl.ResourceKey)
}

type UpdateLesson struct {
	Title           *string `json:"title" validate:"omitempty,notblank,max=200"`
	Order           *int    `json:"order" validate:"omitempty,gte=1"`
	Description     *string `json:"description"`
	VideoURL        *string `json:"video_url" validate:"omitempty,url,max=200"`
	ResourceKey     *string `json:"resource_key" validate:"omitempty,max=255"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gte=0"`
	IsPreview       *bool   `json:"is_preview"`
}
