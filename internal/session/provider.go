package session

import (
	"context"

	"bootcamp/internal/domain"
)

// AuthStateHandler receives identity-provider notifications. s is nil when
// the new state has no session.
type AuthStateHandler func(event domain.AuthEvent, s *domain.AuthSession)

// IdentityProvider issues and restores authentication sessions.
type IdentityProvider interface {
	// GetSession restores a persisted session, or returns nil if none.
	GetSession(ctx context.Context) (*domain.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error)
	SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.AuthSession, error)
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers handler for every subsequent state
	// change and returns a func that removes it.
	OnAuthStateChange(handler AuthStateHandler) (unsubscribe func())
}

// ProfileStore looks up application data for an identity. A nil result
// with a nil error means "not found".
type ProfileStore interface {
	GetUserProfile(ctx context.Context, identityID string) (*domain.Profile, error)
	GetUserPermissions(ctx context.Context, identityID string) (domain.PermissionSet, error)
}
