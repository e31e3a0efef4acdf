package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

var (
	// ErrEnrollmentNotFound indicates that the enrollment does not exist.
	ErrEnrollmentNotFound = fmt.Errorf("enrollment %w", ErrNotFound)
	// ErrAlreadyEnrolled is returned when the user already has an
	// enrollment for the course.
	ErrAlreadyEnrolled = fmt.Errorf("user already enrolled in this course: %w", ErrConflict)
)

const statusMessage = "状态必须是：pending、active、completed、cancelled"

// EnrollmentService encapsulates enrollment use cases, both the back-office
// listing and the public sign-up form.
type EnrollmentService struct {
	enrollments domain.EnrollmentRepository
	users       domain.UserRepository
	courses     domain.CourseRepository
	logger      *zap.Logger
}

// NewEnrollmentService creates an EnrollmentService.
func NewEnrollmentService(enrollments domain.EnrollmentRepository, users domain.UserRepository, courses domain.CourseRepository, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, users: users, courses: courses, logger: logger}
}

// List returns one page of enrollments matching f, newest first.
func (s *EnrollmentService) List(ctx context.Context, f domain.EnrollmentFilter) ([]domain.Enrollment, domain.Pagination, error) {
	f.Page = f.Page.Normalize()
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		return nil, domain.Pagination{}, fieldError("status", statusMessage)
	}
	items, total, err := s.enrollments.ListEnrollments(ctx, f)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list enrollments: %w", err)
	}
	return items, domain.NewPagination(f.Page, total), nil
}

// ListForUser returns every enrollment of user id, newest first, with the
// number of enrollments in each status. Every status has a count.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID int64) ([]domain.Enrollment, map[string]int, error) {
	items, _, err := s.enrollments.ListEnrollments(ctx, domain.EnrollmentFilter{UserID: userID})
	if err != nil {
		return nil, nil, fmt.Errorf("list enrollments: %w", err)
	}
	counts := make(map[string]int, len(domain.EnrollmentStatuses))
	for _, st := range domain.EnrollmentStatuses {
		counts[st] = 0
	}
	for _, e := range items {
		counts[e.Status]++
	}
	if items == nil {
		items = []domain.Enrollment{}
	}
	return items, counts, nil
}

// Create enrolls an existing user in an existing course. An empty status
// means pending.
func (s *EnrollmentService) Create(ctx context.Context, userID, courseID int64, status string) (*domain.Enrollment, error) {
	if userID < 1 || courseID < 1 {
		return nil, fieldError("user_id", "user_id and course_id are required")
	}
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidStatus(status) {
		return nil, fieldError("status", statusMessage)
	}

	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if _, err := s.course(ctx, courseID); err != nil {
		return nil, err
	}
	return s.create(ctx, userID, courseID, status)
}

// UpdateStatus changes the status of enrollment id.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id int64, status string) (*domain.Enrollment, error) {
	if !domain.ValidStatus(status) {
		return nil, fieldError("status", statusMessage)
	}
	e, err := s.enrollments.UpdateEnrollmentStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update enrollment: %w", err)
	}
	if e == nil {
		return nil, ErrEnrollmentNotFound
	}
	return e, nil
}

// Delete removes enrollment id.
func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	ok, err := s.enrollments.DeleteEnrollment(ctx, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if !ok {
		return ErrEnrollmentNotFound
	}
	return nil
}

// Enroll handles the course page's enrollment form: the user is looked up
// by email, created if new, and given a pending enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID int64, values validation.Values) (*domain.Enrollment, error) {
	values = validation.Sanitize(values)
	if err := validate(validation.EnrollmentForm(), values); err != nil {
		return nil, err
	}
	return s.enroll(ctx, courseID, values)
}

// Register handles the landing page's registration form, which names the
// course in its selectedCourse field.
func (s *EnrollmentService) Register(ctx context.Context, values validation.Values) (*domain.Enrollment, error) {
	values = validation.Sanitize(values)
	if err := validate(validation.RegistrationForm(), values); err != nil {
		return nil, err
	}
	courseID, err := strconv.ParseInt(values["selectedCourse"], 10, 64)
	if err != nil {
		return nil, fieldError("selectedCourse", "请选择有效的课程")
	}
	return s.enroll(ctx, courseID, values)
}

func (s *EnrollmentService) enroll(ctx context.Context, courseID int64, values validation.Values) (*domain.Enrollment, error) {
	if _, err := s.course(ctx, courseID); err != nil {
		return nil, err
	}

	email := strings.ToLower(values["email"])
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		u, err = s.users.CreateUser(ctx, domain.Profile{
			Name:  values["name"],
			Email: email,
			Phone: values["phone"],
			Role:  domain.RoleStudent,
		})
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	return s.create(ctx, u.ID, courseID, domain.StatusPending)
}

func (s *EnrollmentService) create(ctx context.Context, userID, courseID int64, status string) (*domain.Enrollment, error) {
	existing, err := s.enrollments.FindEnrollment(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyEnrolled
	}

	e, err := s.enrollments.CreateEnrollment(ctx, domain.Enrollment{UserID: userID, CourseID: courseID, Status: status})
	if errors.Is(err, domain.ErrDuplicate) {
		return nil, ErrAlreadyEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	s.logger.Info("enrollment created",
		zap.Int64("id", e.ID), zap.Int64("user", userID), zap.Int64("course", courseID))

	full, err := s.enrollments.GetEnrollment(ctx, e.ID)
	if err != nil || full == nil {
		return e, nil
	}
	return full, nil
}

func (s *EnrollmentService) course(ctx context.Context, id int64) (*domain.Course, error) {
	c, err := s.courses.GetCourse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	if c == nil {
		return nil, ErrCourseNotFound
	}
	return c, nil
}
