package domain

import (
	"context"
	"time"
)

// Course levels as displayed on the catalogue.
const (
	LevelBeginner     = "初级"
	LevelIntermediate = "中级"
	LevelAdvanced     = "高级"
)

// ValidLevel reports whether level is one of the catalogue levels.
func ValidLevel(level string) bool {
	switch level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Course is a bootcamp offering.
type Course struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Duration    string    `json:"duration"`
	Level       string    `json:"level"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CourseFilter narrows a course listing.
type CourseFilter struct {
	Search string
	Level  string
	Page   Page
}

// CourseRepository is the port for course persistence.
type CourseRepository interface {
	GetCourse(ctx context.Context, id int64) (*Course, error)
	ListCourses(ctx context.Context, f CourseFilter) ([]Course, int, error)
	CreateCourse(ctx context.Context, c Course) (*Course, error)
	UpdateCourse(ctx context.Context, c Course) (*Course, error)
	DeleteCourse(ctx context.Context, id int64) (bool, error)
}
