// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"time"
)

// Identity is the identity-provider record of an authenticated principal.
// Application data about the person lives in Profile, keyed by Identity.ID.
type Identity struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Metadata     SignUpMetadata `json:"metadata"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SignUpMetadata carries the optional profile fields supplied at sign-up.
type SignUpMetadata struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// AuthSession is the credential handed to a client after sign-in.
type AuthSession struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        Identity  `json:"user"`
}

// Expired reports whether the session is past its expiry at t.
func (s *AuthSession) Expired(t time.Time) bool {
	return s == nil || !t.Before(s.ExpiresAt)
}

// AuthEvent names an identity-provider state change.
type AuthEvent string

// Identity-provider notifications.
const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Session represents an active server-side session.
type Session struct {
	Token      string
	IdentityID string
	UserAgent  string
	IP         string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IdentityRepository defines the port for identity persistence operations.
type IdentityRepository interface {
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	GetIdentityByID(ctx context.Context, id string) (*Identity, error)
	CreateIdentity(ctx context.Context, email, passwordHash string, meta SignUpMetadata) (*Identity, error)
	CountIdentities(ctx context.Context) (int, error)
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}

// ErrDuplicate is returned by repositories when a write would violate a
// uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")
