package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"bootcamp/internal/domain"
)

const identityColumns = "id, email, password_hash, name, phone, created_at"

func scanIdentity(row interface{ Scan(...any) error }) (*domain.Identity, error) {
	var i domain.Identity
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.Metadata.Name, &i.Metadata.Phone, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// GetIdentityByEmail retrieves an identity by email.
func (d *DB) GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return scanIdentity(d.sql.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE lower(email) = lower($1)", email))
}

// GetIdentityByID retrieves an identity by ID.
func (d *DB) GetIdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	return scanIdentity(d.sql.QueryRowContext(ctx,
		"SELECT "+identityColumns+" FROM identities WHERE id = $1", id))
}

// CreateIdentity creates a new identity with a random ID.
func (d *DB) CreateIdentity(ctx context.Context, email, passwordHash string, meta domain.SignUpMetadata) (*domain.Identity, error) {
	i, err := scanIdentity(d.sql.QueryRowContext(ctx,
		"INSERT INTO identities ("+identityColumns+") VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+identityColumns,
		uuid.NewString(), email, passwordHash, meta.Name, meta.Phone, time.Now().UTC(),
	))
	if err != nil {
		return nil, uniqueViolation(err)
	}
	return i, nil
}

// CountIdentities returns the total number of identities.
func (d *DB) CountIdentities(ctx context.Context) (int, error) {
	var count int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count)
	return count, err
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (token, identity_id, user_agent, ip, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		s.Token, s.IdentityID, s.UserAgent, s.IP, s.ExpiresAt, s.CreatedAt,
	)
	return err
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, identity_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = $1",
		token,
	).Scan(&s.Token, &s.IdentityID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return err
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", time.Now())
	return err
}
