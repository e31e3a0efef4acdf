package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"bootcamp/internal/domain"
)

const userColumns = "id, auth_user_id, name, email, phone, role, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*domain.Profile, error) {
	var (
		p      domain.Profile
		authID sql.NullString
	)
	err := row.Scan(&p.ID, &authID, &p.Name, &p.Email, &p.Phone, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.AuthUserID = authID.String
	return &p, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GetUserByID retrieves a user by ID.
func (d *DB) GetUserByID(ctx context.Context, id int64) (*domain.Profile, error) {
	return scanUser(d.sql.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetUserByAuthID retrieves the user linked to an identity.
func (d *DB) GetUserByAuthID(ctx context.Context, authUserID string) (*domain.Profile, error) {
	if authUserID == "" {
		return nil, nil
	}
	return scanUser(d.sql.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE auth_user_id = $1", authUserID))
}

// GetUserByEmail retrieves a user by email.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return scanUser(d.sql.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
}

// ListUsers lists users newest first.
func (d *DB) ListUsers(ctx context.Context, f domain.UserFilter) ([]domain.Profile, int, error) {
	var w where
	if f.Role != "" {
		w.add("role = ?", f.Role)
	}
	if f.Search != "" {
		w.add("(name ILIKE ? OR email ILIKE ?)", likePattern(f.Search))
	}

	var total int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	suffix, args := w.page(f.Page)
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY created_at DESC, id DESC"+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Profile
	for rows.Next() {
		p, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// CreateUser creates a new user.
func (d *DB) CreateUser(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	if p.Role == "" {
		p.Role = domain.RoleStudent
	}
	now := time.Now().UTC()
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (auth_user_id, name, email, phone, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING "+userColumns,
		nullable(p.AuthUserID), p.Name, p.Email, p.Phone, p.Role, now,
	))
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return u, nil
}

// UpdateUser overwrites the editable fields of an existing user. A
// non-empty AuthUserID links the user to that identity; an empty one keeps
// the current link.
func (d *DB) UpdateUser(ctx context.Context, p domain.Profile) (*domain.Profile, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		`UPDATE users SET name = $2, email = $3, phone = $4, role = $5, updated_at = $6,
			auth_user_id = COALESCE($7, auth_user_id)
		WHERE id = $1 RETURNING `+userColumns,
		p.ID, p.Name, p.Email, p.Phone, p.Role, time.Now().UTC(), nullable(p.AuthUserID),
	))
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return u, nil
}

// DeleteUser deletes a user. Enrollments and grants cascade.
func (d *DB) DeleteUser(ctx context.Context, id int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetPermissions returns the grants of a user, or nil if it has none.
func (d *DB) GetPermissions(ctx context.Context, userID int64) (domain.PermissionSet, error) {
	var perms []string
	err := d.sql.QueryRowContext(ctx,
		"SELECT permissions FROM admin_permissions WHERE user_id = $1", userID,
	).Scan(pq.Array(&perms))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return domain.NewPermissionSet(perms...), nil
}

// SetPermissions replaces the grants of a user.
func (d *DB) SetPermissions(ctx context.Context, userID int64, perms domain.PermissionSet) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO admin_permissions (user_id, permissions) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET permissions = EXCLUDED.permissions`,
		userID, pq.Array([]string(domain.NewPermissionSet(perms...))),
	)
	return err
}

// DeletePermissions removes every grant of a user.
func (d *DB) DeletePermissions(ctx context.Context, userID int64) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM admin_permissions WHERE user_id = $1", userID)
	return err
}
