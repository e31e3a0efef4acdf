// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bootcamp/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu          sync.Mutex
	identities  []*domain.Identity
	users       []*domain.Profile
	permissions map[int64]domain.PermissionSet
	courses     []*domain.Course
	enrollments []*domain.Enrollment
	sessions    map[string]*domain.Session

	userIDCounter       int64
	courseIDCounter     int64
	enrollmentIDCounter int64

	now func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		permissions: make(map[int64]domain.PermissionSet),
		sessions:    make(map[string]*domain.Session),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Ensure interfaces are met.
var (
	_ domain.IdentityRepository   = (*DB)(nil)
	_ domain.UserRepository       = (*DB)(nil)
	_ domain.PermissionRepository = (*DB)(nil)
	_ domain.CourseRepository     = (*DB)(nil)
	_ domain.EnrollmentRepository = (*DB)(nil)
	_ domain.SessionRepository    = (*SessionRepo)(nil)
)

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func page[T any](items []T, p domain.Page) []T {
	start, end := p.Window(len(items))
	return items[start:end]
}

// --- IdentityRepository ---

// GetIdentityByEmail retrieves an identity by email.
func (db *DB) GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, i := range db.identities {
		if strings.EqualFold(i.Email, email) {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

// GetIdentityByID retrieves an identity by ID.
func (db *DB) GetIdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, i := range db.identities {
		if i.ID == id {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateIdentity creates a new identity with a random ID.
func (db *DB) CreateIdentity(ctx context.Context, email, passwordHash string, meta domain.SignUpMetadata) (*domain.Identity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, i := range db.identities {
		if strings.EqualFold(i.Email, email) {
			return nil, domain.ErrDuplicate
		}
	}

	i := &domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Metadata:     meta,
		CreatedAt:    db.now(),
	}
	db.identities = append(db.identities, i)
	cp := *i
	return &cp, nil
}

// CountIdentities returns the total number of identities.
func (db *DB) CountIdentities(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.identities), nil
}

// --- UserRepository ---

func (db *DB) findUser(match func(*domain.Profile) bool) *domain.Profile {
	for _, u := range db.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.findUser(func(u *domain.Profile) bool { return u.ID == id }), nil
}

// GetUserByAuthID retrieves the user linked to an identity.
func (db *DB) GetUserByAuthID(ctx context.Context, authUserID string) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if authUserID == "" {
		return nil, nil
	}
	return db.findUser(func(u *domain.Profile) bool { return u.AuthUserID == authUserID }), nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.findUser(func(u *domain.Profile) bool { return strings.EqualFold(u.Email, email) }), nil
}

// ListUsers lists users newest first.
func (db *DB) ListUsers(ctx context.Context, f domain.UserFilter) ([]domain.Profile, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Profile
	for _, u := range db.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Search != "" && !contains(u.Name, f.Search) && !contains(u.Email, f.Search) {
			continue
		}
		out = append(out, *u)
	}
	slices.Reverse(out)
	return page(out, f.Page), len(out), nil
}

// CreateUser creates a new user.
func (db *DB) CreateUser(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, p.Email) {
			return nil, domain.ErrDuplicate
		}
	}

	db.userIDCounter++
	p.ID = db.userIDCounter
	p.CreatedAt = db.now()
	p.UpdatedAt = p.CreatedAt
	if p.Role == "" {
		p.Role = domain.RoleStudent
	}
	u := p
	db.users = append(db.users, &u)
	return &p, nil
}

// UpdateUser overwrites the editable fields of an existing user. A
// non-empty AuthUserID links the user to that identity.
func (db *DB) UpdateUser(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == p.ID {
			u.Name, u.Email, u.Phone, u.Role = p.Name, p.Email, p.Phone, p.Role
			if p.AuthUserID != "" {
				u.AuthUserID = p.AuthUserID
			}
			u.UpdatedAt = db.now()
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// DeleteUser deletes a user and its enrollments.
func (db *DB) DeleteUser(ctx context.Context, id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := len(db.users)
	db.users = slices.DeleteFunc(db.users, func(u *domain.Profile) bool { return u.ID == id })
	if len(db.users) == n {
		return false, nil
	}
	db.enrollments = slices.DeleteFunc(db.enrollments, func(e *domain.Enrollment) bool { return e.UserID == id })
	return true, nil
}

// --- PermissionRepository ---

// GetPermissions returns the grants of a user, or nil if it has none.
func (db *DB) GetPermissions(ctx context.Context, userID int64) (domain.PermissionSet, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.permissions[userID].Clone(), nil
}

// SetPermissions replaces the grants of a user.
func (db *DB) SetPermissions(ctx context.Context, userID int64, perms domain.PermissionSet) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.permissions[userID] = domain.NewPermissionSet(perms...)
	return nil
}

// DeletePermissions removes every grant of a user.
func (db *DB) DeletePermissions(ctx context.Context, userID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.permissions, userID)
	return nil
}

// --- CourseRepository ---

// GetCourse retrieves a course by ID.
func (db *DB) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.course(id), nil
}

func (db *DB) course(id int64) *domain.Course {
	for _, c := range db.courses {
		if c.ID == id {
			cp := *c
			return &cp
		}
	}
	return nil
}

// ListCourses lists courses newest first.
func (db *DB) ListCourses(ctx context.Context, f domain.CourseFilter) ([]domain.Course, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Course
	for _, c := range db.courses {
		if f.Level != "" && c.Level != f.Level {
			continue
		}
		if f.Search != "" && !contains(c.Title, f.Search) && !contains(c.Description, f.Search) {
			continue
		}
		out = append(out, *c)
	}
	slices.Reverse(out)
	return page(out, f.Page), len(out), nil
}

// CreateCourse creates a new course.
func (db *DB) CreateCourse(ctx context.Context, c domain.Course) (*domain.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.courseIDCounter++
	c.ID = db.courseIDCounter
	c.CreatedAt = db.now()
	stored := c
	db.courses = append(db.courses, &stored)
	return &c, nil
}

// UpdateCourse overwrites an existing course.
func (db *DB) UpdateCourse(ctx context.Context, c domain.Course) (*domain.Course, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.courses {
		if existing.ID == c.ID {
			c.CreatedAt = existing.CreatedAt
			*existing = c
			return &c, nil
		}
	}
	return nil, nil
}

// DeleteCourse deletes a course.
func (db *DB) DeleteCourse(ctx context.Context, id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := len(db.courses)
	db.courses = slices.DeleteFunc(db.courses, func(c *domain.Course) bool { return c.ID == id })
	return len(db.courses) != n, nil
}

// --- EnrollmentRepository ---

func (db *DB) hydrate(e *domain.Enrollment) domain.Enrollment {
	out := *e
	out.User = db.findUser(func(u *domain.Profile) bool { return u.ID == e.UserID })
	out.Course = db.course(e.CourseID)
	return out
}

// GetEnrollment retrieves an enrollment with its user and course.
func (db *DB) GetEnrollment(ctx context.Context, id int64) (*domain.Enrollment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range db.enrollments {
		if e.ID == id {
			out := db.hydrate(e)
			return &out, nil
		}
	}
	return nil, nil
}

// FindEnrollment returns the enrollment of a user in a course, if any.
func (db *DB) FindEnrollment(ctx context.Context, userID, courseID int64) (*domain.Enrollment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range db.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

// ListEnrollments lists enrollments newest first, with users and courses.
func (db *DB) ListEnrollments(ctx context.Context, f domain.EnrollmentFilter) ([]domain.Enrollment, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Enrollment
	for _, e := range db.enrollments {
		if f.UserID != 0 && e.UserID != f.UserID {
			continue
		}
		if f.CourseID != 0 && e.CourseID != f.CourseID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.CreatedAt.After(f.To) {
			continue
		}
		h := db.hydrate(e)
		if f.Search != "" && !enrollmentMatches(h, f.Search) {
			continue
		}
		out = append(out, h)
	}
	slices.Reverse(out)
	return page(out, f.Page), len(out), nil
}

func enrollmentMatches(e domain.Enrollment, q string) bool {
	if e.User != nil && (contains(e.User.Name, q) || contains(e.User.Email, q)) {
		return true
	}
	return e.Course != nil && contains(e.Course.Title, q)
}

// CreateEnrollment creates a new enrollment.
func (db *DB) CreateEnrollment(ctx context.Context, e domain.Enrollment) (*domain.Enrollment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return nil, domain.ErrDuplicate
		}
	}

	db.enrollmentIDCounter++
	e.ID = db.enrollmentIDCounter
	if e.CreatedAt.IsZero() {
		e.CreatedAt = db.now()
	}
	e.User, e.Course = nil, nil
	stored := e
	db.enrollments = append(db.enrollments, &stored)
	return &e, nil
}

// UpdateEnrollmentStatus sets the status of an enrollment.
func (db *DB) UpdateEnrollmentStatus(ctx context.Context, id int64, status string) (*domain.Enrollment, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range db.enrollments {
		if e.ID == id {
			e.Status = status
			out := db.hydrate(e)
			return &out, nil
		}
	}
	return nil, nil
}

// DeleteEnrollment deletes an enrollment.
func (db *DB) DeleteEnrollment(ctx context.Context, id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := len(db.enrollments)
	db.enrollments = slices.DeleteFunc(db.enrollments, func(e *domain.Enrollment) bool { return e.ID == id })
	return len(db.enrollments) != n, nil
}

// CountEnrollmentsForCourse counts the enrollments of a course.
func (db *DB) CountEnrollmentsForCourse(ctx context.Context, courseID int64) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := 0
	for _, e := range db.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.db.now()
	}
	r.db.sessions[s.Token] = &s
	return nil
}

// GetByToken retrieves a session by token. Expired sessions are dropped.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		if r.db.now().After(s.ExpiresAt) {
			delete(r.db.sessions, token)
			return nil, nil
		}
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
