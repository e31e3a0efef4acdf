package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bootcamp/internal/domain"
)

const enrollmentSelect = `SELECT e.id, e.user_id, e.course_id, e.status, e.created_at,
	u.id, u.auth_user_id, u.name, u.email, u.phone, u.role, u.created_at, u.updated_at,
	c.id, c.title, c.description, c.price, c.duration, c.level, c.image_url, c.created_at
	FROM enrollments e
	JOIN users u ON u.id = e.user_id
	JOIN courses c ON c.id = e.course_id`

func scanEnrollment(row interface{ Scan(...any) error }) (*domain.Enrollment, error) {
	var (
		e      domain.Enrollment
		u      domain.Profile
		c      domain.Course
		authID sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.CreatedAt,
		&u.ID, &authID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt,
		&c.ID, &c.Title, &c.Description, &c.Price, &c.Duration, &c.Level, &c.ImageURL, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.AuthUserID = authID.String
	e.User, e.Course = &u, &c
	return &e, nil
}

// GetEnrollment retrieves an enrollment with its user and course.
func (d *DB) GetEnrollment(ctx context.Context, id int64) (*domain.Enrollment, error) {
	return scanEnrollment(d.sql.QueryRowContext(ctx, enrollmentSelect+" WHERE e.id = $1", id))
}

// FindEnrollment retrieves the enrollment of a user in a course.
func (d *DB) FindEnrollment(ctx context.Context, userID, courseID int64) (*domain.Enrollment, error) {
	return scanEnrollment(d.sql.QueryRowContext(ctx,
		enrollmentSelect+" WHERE e.user_id = $1 AND e.course_id = $2", userID, courseID))
}

// ListEnrollments lists enrollments newest first.
func (d *DB) ListEnrollments(ctx context.Context, f domain.EnrollmentFilter) ([]domain.Enrollment, int, error) {
	var w where
	if f.UserID != 0 {
		w.add("e.user_id = ?", f.UserID)
	}
	if f.CourseID != 0 {
		w.add("e.course_id = ?", f.CourseID)
	}
	if f.Status != "" {
		w.add("e.status = ?", f.Status)
	}
	if !f.From.IsZero() {
		w.add("e.created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("e.created_at <= ?", f.To)
	}
	if f.Search != "" {
		w.add("(u.name ILIKE ? OR u.email ILIKE ? OR c.title ILIKE ?)", likePattern(f.Search))
	}

	var total int
	err := d.sql.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM enrollments e JOIN users u ON u.id = e.user_id JOIN courses c ON c.id = e.course_id"+w.String(),
		w.args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	suffix, args := w.page(f.Page)
	rows, err := d.sql.QueryContext(ctx, enrollmentSelect+w.String()+" ORDER BY e.created_at DESC, e.id DESC"+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

// CreateEnrollment creates a new enrollment. The returned record is not
// hydrated; callers re-read it with GetEnrollment.
func (d *DB) CreateEnrollment(ctx context.Context, e domain.Enrollment) (*domain.Enrollment, error) {
	if e.Status == "" {
		e.Status = domain.StatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO enrollments (user_id, course_id, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		e.UserID, e.CourseID, e.Status, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return &e, nil
}

// UpdateEnrollmentStatus changes the status of an enrollment.
func (d *DB) UpdateEnrollmentStatus(ctx context.Context, id int64, status string) (*domain.Enrollment, error) {
	res, err := d.sql.ExecContext(ctx, "UPDATE enrollments SET status = $2 WHERE id = $1", id, status)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	return d.GetEnrollment(ctx, id)
}

// DeleteEnrollment deletes an enrollment.
func (d *DB) DeleteEnrollment(ctx context.Context, id int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountEnrollmentsForCourse returns the number of enrollments in a course.
func (d *DB) CountEnrollmentsForCourse(ctx context.Context, courseID int64) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments WHERE course_id = $1", courseID).Scan(&n)
	return n, err
}
