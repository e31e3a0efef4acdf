// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrEmailTaken indicates that an identity already exists for the email.
	ErrEmailTaken = fmt.Errorf("user already registered: %w", ErrConflict)
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrIdentityNotFound indicates that the session's identity no longer exists.
	ErrIdentityNotFound = fmt.Errorf("identity %w", ErrNotFound)
	// ErrAlreadyInitialized is returned when bootstrapping an admin into a
	// non-empty identity store.
	ErrAlreadyInitialized = errors.New("identities already exist")
)

// AuthService handles registration, authentication and session management.
type AuthService struct {
	identities domain.IdentityRepository
	sessions   domain.SessionRepository
	users      *UserService
	tokens     *TokenIssuer
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(identities domain.IdentityRepository, sessions domain.SessionRepository, users *UserService, tokens *TokenIssuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		identities: identities,
		sessions:   sessions,
		users:      users,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
}

// SignUp registers a new identity, creates its student profile and signs
// it in.
func (s *AuthService) SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata, userAgent, ip string) (*domain.AuthSession, error) {
	email = normalizeEmail(email)
	if err := validate(validation.LoginForm(), validation.Values{"email": email, "password": password}); err != nil {
		return nil, err
	}
	if meta.Phone != nil {
		if msg := validation.CheckPhone(*meta.Phone); msg != "" {
			return nil, fieldError("phone", msg)
		}
	}

	existing, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	identity, err := s.identities.CreateIdentity(ctx, email, string(hash), meta)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}
	if _, err := s.users.Provision(ctx, identity, domain.RoleStudent); err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}

	s.logger.Info("identity registered", zap.String("identity", identity.ID))
	return s.startSession(ctx, identity, userAgent, ip)
}

// SignIn authenticates an identity and creates a session.
func (s *AuthService) SignIn(ctx context.Context, email, password, userAgent, ip string) (*domain.AuthSession, error) {
	identity, err := s.identities.GetIdentityByEmail(ctx, normalizeEmail(email))
	if err != nil || identity == nil || identity.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.startSession(ctx, identity, userAgent, ip)
}

// SignOut invalidates the session behind an access token. Unknown or
// malformed tokens are ignored.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil
	}
	return s.sessions.Delete(ctx, claims.SID)
}

// ValidateSession checks that an access token is genuine, its session is
// live and bound to userAgent, and returns the session.
func (s *AuthService) ValidateSession(ctx context.Context, accessToken, userAgent string) (*domain.AuthSession, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessions.GetByToken(ctx, claims.SID)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if s.now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, session.Token)
		return nil, ErrSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, session.Token)
		return nil, ErrSessionExpired
	}

	identity, err := s.identities.GetIdentityByID(ctx, session.IdentityID)
	if err != nil || identity == nil {
		return nil, ErrIdentityNotFound
	}

	out := *identity
	out.PasswordHash = ""
	return &domain.AuthSession{
		AccessToken: accessToken,
		ExpiresAt:   session.ExpiresAt,
		User:        out,
	}, nil
}

// CreateInitialAdmin creates the first identity, with an admin profile and
// every admin permission, if no identities exist.
func (s *AuthService) CreateInitialAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if err := validate(validation.LoginForm(), validation.Values{"email": email, "password": password}); err != nil {
		return err
	}

	count, err := s.identities.CountIdentities(ctx)
	if err != nil {
		return err
	}

	if count > 0 {
		return ErrAlreadyInitialized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	name := "Admin"
	identity, err := s.identities.CreateIdentity(ctx, email, string(hash), domain.SignUpMetadata{Name: &name})
	if err != nil {
		return err
	}
	profile, err := s.users.Provision(ctx, identity, domain.RoleAdmin)
	if err != nil {
		return err
	}
	perms := append(domain.DefaultAdminPermissions(), domain.PermSystemAdmin)
	return s.users.Grant(ctx, profile.ID, perms)
}

// ValidateForwardAuth resolves the identity named by a trusted reverse
// proxy's Remote-Email header, provisioning it on first sight.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteEmail string) (*domain.Identity, error) {
	if remoteEmail == "" {
		return nil, errors.New("no remote user header")
	}
	return s.ensureIdentity(ctx, remoteEmail, domain.SignUpMetadata{})
}

// SignInWithIdentity creates a session for an identity already
// authenticated elsewhere (e.g. via SSO), provisioning it if missing.
func (s *AuthService) SignInWithIdentity(ctx context.Context, email string, meta domain.SignUpMetadata, userAgent, ip string) (*domain.AuthSession, error) {
	identity, err := s.ensureIdentity(ctx, email, meta)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, identity, userAgent, ip)
}

// PurgeExpired removes expired sessions.
func (s *AuthService) PurgeExpired(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) ensureIdentity(ctx context.Context, email string, meta domain.SignUpMetadata) (*domain.Identity, error) {
	email = normalizeEmail(email)
	identity, err := s.identities.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		return identity, nil
	}

	// SSO identities have no password.
	identity, err = s.identities.CreateIdentity(ctx, email, "", meta)
	if err != nil {
		// Lost a race with a concurrent provision.
		identity, err = s.identities.GetIdentityByEmail(ctx, email)
		if err != nil || identity == nil {
			return nil, fmt.Errorf("provision identity: %w", err)
		}
		return identity, nil
	}
	if _, err := s.users.Provision(ctx, identity, domain.RoleStudent); err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}
	s.logger.Info("identity provisioned", zap.String("identity", identity.ID))
	return identity, nil
}

func (s *AuthService) startSession(ctx context.Context, identity *domain.Identity, userAgent, ip string) (*domain.AuthSession, error) {
	now := s.now()
	sid := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(identity.ID, identity.Email, sid, now)
	if err != nil {
		return nil, err
	}

	err = s.sessions.Create(ctx, domain.Session{
		Token:      sid,
		IdentityID: identity.ID,
		UserAgent:  userAgent,
		IP:         ip,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	out := *identity
	out.PasswordHash = ""
	return &domain.AuthSession{AccessToken: token, ExpiresAt: expiresAt, User: out}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
