package app

import (
	"context"
	"fmt"
	"strconv"

	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

var (
	// ErrCourseNotFound indicates that the course does not exist.
	ErrCourseNotFound = fmt.Errorf("course %w", ErrNotFound)
	// ErrCourseHasEnrollments is returned when deleting a course that still
	// has enrollments.
	ErrCourseHasEnrollments = fmt.Errorf("cannot delete course with existing enrollments: %w", ErrConflict)
)

// CourseService encapsulates catalogue use cases.
type CourseService struct {
	courses     domain.CourseRepository
	enrollments domain.EnrollmentRepository
}

// NewCourseService creates a CourseService backed by the given repositories.
func NewCourseService(courses domain.CourseRepository, enrollments domain.EnrollmentRepository) *CourseService {
	return &CourseService{courses: courses, enrollments: enrollments}
}

// List returns one page of courses matching f. The zero Page lists every
// course, as the public catalogue does.
func (s *CourseService) List(ctx context.Context, f domain.CourseFilter) ([]domain.Course, domain.Pagination, error) {
	if f.Level != "" && !domain.ValidLevel(f.Level) {
		return nil, domain.Pagination{}, fieldError("level", "课程级别必须是：初级、中级、高级")
	}
	courses, total, err := s.courses.ListCourses(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list courses: %w", err)
	}
	if f.Page.All() {
		return courses, domain.Pagination{Page: 1, Limit: total, Total: total, TotalPages: 1}, nil
	}
	return courses, domain.NewPagination(f.Page, total), nil
}

// Get returns the course with id.
func (s *CourseService) Get(ctx context.Context, id int64) (*domain.Course, error) {
	c, err := s.courses.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if c == nil {
		return nil, ErrCourseNotFound
	}
	return c, nil
}

// Create validates values and inserts a course.
func (s *CourseService) Create(ctx context.Context, values validation.Values) (*domain.Course, error) {
	values = validation.Sanitize(values)
	if err := validate(validation.CourseForm(false), values); err != nil {
		return nil, err
	}
	c := domain.Course{}
	applyCourseValues(&c, values)
	created, err := s.courses.CreateCourse(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return created, nil
}

// Update applies the fields present in values to course id.
func (s *CourseService) Update(ctx context.Context, id int64, values validation.Values) (*domain.Course, error) {
	values = validation.Sanitize(values)
	if err := validate(validation.CourseForm(true), values); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current
	applyCourseValues(&next, values)
	updated, err := s.courses.UpdateCourse(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	if updated == nil {
		return nil, ErrCourseNotFound
	}
	return updated, nil
}

// Delete removes course id unless it has enrollments.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	n, err := s.enrollments.CountEnrollmentsForCourse(ctx, id)
	if err != nil {
		return fmt.Errorf("count enrollments: %w", err)
	}
	if n > 0 {
		return ErrCourseHasEnrollments
	}
	ok, err := s.courses.DeleteCourse(ctx, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if !ok {
		return ErrCourseNotFound
	}
	return nil
}

func applyCourseValues(c *domain.Course, v validation.Values) {
	if s := v["title"]; s != "" {
		c.Title = s
	}
	if s := v["description"]; s != "" {
		c.Description = s
	}
	if s := v["duration"]; s != "" {
		c.Duration = s
	}
	if s := v["level"]; s != "" {
		c.Level = s
	}
	if s := v["imageUrl"]; s != "" {
		c.ImageURL = s
	}
	if s := v["price"]; s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			c.Price = f
		}
	}
}
