package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bootcamp/internal/domain"
)

const courseColumns = "id, title, description, price, duration, level, image_url, created_at"

func scanCourse(row interface{ Scan(...any) error }) (*domain.Course, error) {
	var c domain.Course
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Price, &c.Duration, &c.Level, &c.ImageURL, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCourse retrieves a course by ID.
func (d *DB) GetCourse(ctx context.Context, id int64) (*domain.Course, error) {
	return scanCourse(d.sql.QueryRowContext(ctx, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id))
}

// ListCourses lists courses newest first.
func (d *DB) ListCourses(ctx context.Context, f domain.CourseFilter) ([]domain.Course, int, error) {
	var w where
	if f.Level != "" {
		w.add("level = ?", f.Level)
	}
	if f.Search != "" {
		w.add("(title ILIKE ? OR description ILIKE ?)", likePattern(f.Search))
	}

	var total int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	suffix, args := w.page(f.Page)
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+courseColumns+" FROM courses"+w.String()+" ORDER BY created_at DESC, id DESC"+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// CreateCourse creates a new course.
func (d *DB) CreateCourse(ctx context.Context, c domain.Course) (*domain.Course, error) {
	return scanCourse(d.sql.QueryRowContext(ctx,
		"INSERT INTO courses (title, description, price, duration, level, image_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+courseColumns,
		c.Title, c.Description, c.Price, c.Duration, c.Level, c.ImageURL, time.Now().UTC(),
	))
}

// UpdateCourse overwrites an existing course.
func (d *DB) UpdateCourse(ctx context.Context, c domain.Course) (*domain.Course, error) {
	return scanCourse(d.sql.QueryRowContext(ctx,
		"UPDATE courses SET title = $2, description = $3, price = $4, duration = $5, level = $6, image_url = $7 WHERE id = $1 RETURNING "+courseColumns,
		c.ID, c.Title, c.Description, c.Price, c.Duration, c.Level, c.ImageURL,
	))
}

// DeleteCourse deletes a course.
func (d *DB) DeleteCourse(ctx context.Context, id int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
