// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bootcamp/internal/domain"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
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

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping reports whether the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		name TEXT,
		phone TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		auth_user_id TEXT UNIQUE REFERENCES identities(id) ON DELETE SET NULL,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student' CHECK(role IN ('student','instructor','admin')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS admin_permissions (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		permissions TEXT[] NOT NULL DEFAULT '{}'
	);`,
	`CREATE TABLE IF NOT EXISTS courses (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL CHECK(price >= 0),
		duration TEXT NOT NULL,
		level TEXT NOT NULL CHECK(level IN ('初级','中级','高级')),
		image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		course_id BIGINT NOT NULL REFERENCES courses(id),
		status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','active','completed','cancelled')),
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE(user_id, course_id)
	);`,
	"CREATE INDEX IF NOT EXISTS idx_enrollments_created_at ON enrollments(created_at);",
	"CREATE INDEX IF NOT EXISTS idx_enrollments_course_id ON enrollments(course_id);",
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
		user_agent TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// uniqueViolation maps a unique-constraint failure to domain.ErrDuplicate.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pqErr.Constraint, domain.ErrDuplicate)
	}
	return err
}

// where accumulates AND-ed conditions with numbered placeholders. A "?" in
// a clause is replaced by the placeholder of its argument.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page returns the LIMIT/OFFSET suffix for p and the arguments including it.
func (w *where) page(p domain.Page) (string, []any) {
	if p.All() {
		return "", w.args
	}
	p = p.Normalize()
	args := append(append([]any{}, w.args...), p.Limit, p.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}
