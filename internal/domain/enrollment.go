package domain

import (
	"context"
	"time"
)

// Enrollment statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// EnrollmentStatuses lists every valid status in display order.
var EnrollmentStatuses = []string{StatusPending, StatusActive, StatusCompleted, StatusCancelled}

// ValidStatus reports whether status is a known enrollment status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Enrollment links a user to a course.
type Enrollment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	CourseID  int64     `json:"courseId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	User   *Profile `json:"user,omitempty"`
	Course *Course  `json:"course,omitempty"`
}

// EnrollmentFilter narrows an enrollment listing. Zero values match all.
// Search matches the user's name or email or the course title.
type EnrollmentFilter struct {
	Search   string
	UserID   int64
	CourseID int64
	Status   string
	From     time.Time
	To       time.Time
	Page     Page
}

// EnrollmentRepository is the port for enrollment persistence.
type EnrollmentRepository interface {
	GetEnrollment(ctx context.Context, id int64) (*Enrollment, error)
	FindEnrollment(ctx context.Context, userID, courseID int64) (*Enrollment, error)
	ListEnrollments(ctx context.Context, f EnrollmentFilter) ([]Enrollment, int, error)
	CreateEnrollment(ctx context.Context, e Enrollment) (*Enrollment, error)
	UpdateEnrollmentStatus(ctx context.Context, id int64, status string) (*Enrollment, error)
	DeleteEnrollment(ctx context.Context, id int64) (bool, error)
	CountEnrollmentsForCourse(ctx context.Context, courseID int64) (int, error)
}
