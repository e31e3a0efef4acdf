package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bootcamp/internal/adapter/memory"
	"bootcamp/internal/app"
	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type mockSessionRepo struct {
	createFn     func(ctx context.Context, s domain.Session) error
	getByTokenFn func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn     func(ctx context.Context, token string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s domain.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error { return nil }

type fixture struct {
	db          *memory.DB
	tokens      *app.TokenIssuer
	auth        *app.AuthService
	users       *app.UserService
	courses     *app.CourseService
	enrollments *app.EnrollmentService
	analytics   *app.AnalyticsService
}

func newFixture(t *testing.T, sessions domain.SessionRepository) *fixture {
	t.Helper()
	db := memory.New()
	if sessions == nil {
		sessions = db.NewSessionRepo()
	}
	tokens, err := app.NewTokenIssuer(testSecret, "bootcamp", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	users := app.NewUserService(db, db, nil)
	return &fixture{
		db:          db,
		tokens:      tokens,
		auth:        app.NewAuthService(db, sessions, users, tokens, nil),
		users:       users,
		courses:     app.NewCourseService(db, db),
		enrollments: app.NewEnrollmentService(db, db, db, nil),
		analytics:   app.NewAnalyticsService(db, db, db),
	}
}

func TestAuthService_SignUp_ProvisionsProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	name, phone := "李雷", "13912345678"
	sess, err := f.auth.SignUp(ctx, " Lilei@Example.com ", "secret1", domain.SignUpMetadata{Name: &name, Phone: &phone}, "ua", "127.0.0.1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if sess.User.Email != "lilei@example.com" {
		t.Errorf("expected normalized email, got %s", sess.User.Email)
	}
	if sess.User.PasswordHash != "" {
		t.Error("password hash must not leave the service")
	}

	profile, err := f.users.GetUserProfile(ctx, sess.User.ID)
	if err != nil || profile == nil {
		t.Fatalf("expected profile, got %v, %v", profile, err)
	}
	if profile.Name != "李雷" || profile.Phone != phone || profile.Role != domain.RoleStudent {
		t.Errorf("unexpected profile %+v", profile)
	}

	got, err := f.auth.ValidateSession(ctx, sess.AccessToken, "ua")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if got.User.ID != sess.User.ID {
		t.Errorf("expected identity %s, got %s", sess.User.ID, got.User.ID)
	}
}

func TestAuthService_SignUp_ClaimsEnrolledProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.courses.Create(ctx, goCourse())
	if err != nil {
		t.Fatalf("Create course: %v", err)
	}
	e, err := f.enrollments.Enroll(ctx, c.ID, validation.Values{"name": "韩梅梅", "email": "hmm@example.com", "phone": "13800138000"})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	other := "Someone Else"
	sess, err := f.auth.SignUp(ctx, "HMM@example.com", "secret1", domain.SignUpMetadata{Name: &other}, "ua", "127.0.0.1")
	if err != nil {
		t.Fatalf("SignUp after enrolling: %v", err)
	}

	profile, err := f.users.GetUserProfile(ctx, sess.User.ID)
	if err != nil || profile == nil {
		t.Fatalf("expected the enrolled profile to be linked, got %v, %v", profile, err)
	}
	if profile.ID != e.UserID {
		t.Errorf("expected profile %d, got %d", e.UserID, profile.ID)
	}
	if profile.Name != "韩梅梅" || profile.Phone != "13800138000" || profile.Role != domain.RoleStudent {
		t.Errorf("enrolled details should be kept, got %+v", profile)
	}
	perms, err := f.users.GetUserPermissions(ctx, sess.User.ID)
	if err != nil || perms == nil {
		t.Errorf("expected empty permissions, got %v, %v", perms, err)
	}

	// A second identity cannot claim a profile that is already linked.
	if _, err := f.auth.SignUp(ctx, "hmm@example.com", "secret1", domain.SignUpMetadata{}, "", ""); !errors.Is(err, app.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestAuthService_ForwardAuth_ClaimsEnrolledProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.courses.Create(ctx, goCourse())
	if err != nil {
		t.Fatalf("Create course: %v", err)
	}
	e, err := f.enrollments.Enroll(ctx, c.ID, validation.Values{"name": "王芳", "email": "wf@example.com", "phone": "13700137000"})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	identity, err := f.auth.ValidateForwardAuth(ctx, "wf@example.com")
	if err != nil {
		t.Fatalf("ValidateForwardAuth: %v", err)
	}
	profile, _ := f.users.GetUserProfile(ctx, identity.ID)
	if profile == nil || profile.ID != e.UserID || profile.Name != "王芳" {
		t.Errorf("expected enrolled profile %d, got %+v", e.UserID, profile)
	}
}

func TestAuthService_SignUp_Duplicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.auth.SignUp(ctx, "a@b.co", "secret1", domain.SignUpMetadata{}, "", ""); err != nil {
		t.Fatalf("first sign-up: %v", err)
	}
	_, err := f.auth.SignUp(ctx, "A@B.CO", "secret1", domain.SignUpMetadata{}, "", "")
	if !errors.Is(err, app.ErrEmailTaken) || !errors.Is(err, app.ErrConflict) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if msg := validation.LocalizeAuthError(err); msg != validation.MsgUserAlreadyExists {
		t.Errorf("expected localized duplicate message, got %q", msg)
	}
}

func TestAuthService_SignUp_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.auth.SignUp(context.Background(), "not-an-email", "123", domain.SignUpMetadata{}, "", "")
	var verr *app.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := verr.Fields()
	if fields["email"] == "" || fields["password"] == "" {
		t.Errorf("expected email and password errors, got %v", fields)
	}
}

func TestAuthService_SignIn_InvalidPassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, _ = f.auth.SignUp(ctx, "a@b.co", "correctpass", domain.SignUpMetadata{}, "", "")

	_, err := f.auth.SignIn(ctx, "a@b.co", "wrongpass", "", "")
	if err != app.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	_, err = f.auth.SignIn(ctx, "nobody@b.co", "correctpass", "", "")
	if err != app.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	sess, err := f.auth.SignIn(ctx, "A@b.co", "correctpass", "", "")
	if err != nil || sess.AccessToken == "" {
		t.Errorf("expected sign-in to succeed, got %v", err)
	}
}

func TestAuthService_ValidateSession_UserAgentMismatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, _ := f.auth.SignUp(ctx, "a@b.co", "secret1", domain.SignUpMetadata{}, "firefox", "")

	if _, err := f.auth.ValidateSession(ctx, sess.AccessToken, "curl"); err != app.ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := f.auth.ValidateSession(ctx, sess.AccessToken, "firefox"); err != app.ErrSessionNotFound {
		t.Errorf("expected the session to be revoked, got %v", err)
	}
}

func TestAuthService_ValidateSession_Expired(t *testing.T) {
	deleted := false
	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{Token: tok, IdentityID: "x", ExpiresAt: time.Now().Add(-time.Hour)}, nil
		},
		deleteFn: func(ctx context.Context, tok string) error {
			deleted = true
			return nil
		},
	}
	f := newFixture(t, sessions)
	token, _, err := f.tokens.Issue("x", "x@y.z", "sid-1", time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = f.auth.ValidateSession(context.Background(), token, "")
	if err != app.ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if !deleted {
		t.Error("expected session to be deleted")
	}
}

func TestAuthService_SignOut(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sess, _ := f.auth.SignUp(ctx, "a@b.co", "secret1", domain.SignUpMetadata{}, "", "")

	if err := f.auth.SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := f.auth.ValidateSession(ctx, sess.AccessToken, ""); err != app.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after sign-out, got %v", err)
	}
	if err := f.auth.SignOut(ctx, "garbage"); err != nil {
		t.Errorf("expected garbage token to be ignored, got %v", err)
	}
}

func TestAuthService_CreateInitialAdmin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.auth.CreateInitialAdmin(ctx, "admin@example.com", "password123"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := f.auth.CreateInitialAdmin(ctx, "other@example.com", "password123"); err != app.ErrAlreadyInitialized {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	sess, err := f.auth.SignIn(ctx, "admin@example.com", "password123", "", "")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	perms, _ := f.users.GetUserPermissions(ctx, sess.User.ID)
	for _, p := range []string{domain.PermSystemAdmin, domain.PermUserManagement, domain.PermCourseManagement, domain.PermEnrollmentManagement} {
		if !perms.Has(p) {
			t.Errorf("expected admin to hold %s, got %v", p, perms)
		}
	}
}

func TestAuthService_CreateInitialAdmin_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name            string
		email, password string
		field           string
	}{
		{name: "empty", field: "email"},
		{name: "bad email", email: "not-an-email", password: "password123", field: "email"},
		{name: "short password", email: "admin@example.com", password: "12345", field: "password"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.auth.CreateInitialAdmin(ctx, tc.email, tc.password)
			var ve *app.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := ve.Fields()[tc.field]; !ok {
				t.Errorf("expected an error for %s, got %v", tc.field, ve.Fields())
			}
		})
	}

	if n, err := f.db.CountIdentities(ctx); err != nil || n != 0 {
		t.Fatalf("rejected setup must not create identities, got %d, %v", n, err)
	}
	if err := f.auth.CreateInitialAdmin(ctx, " Admin@Example.com ", "password123"); err != nil {
		t.Fatalf("valid setup after rejections: %v", err)
	}
	if _, err := f.auth.SignIn(ctx, "admin@example.com", "password123", "", ""); err != nil {
		t.Errorf("SignIn with normalized email: %v", err)
	}
}

func TestAuthService_ValidateForwardAuth(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.auth.ValidateForwardAuth(ctx, ""); err == nil {
		t.Error("expected error without remote user")
	}

	first, err := f.auth.ValidateForwardAuth(ctx, "sso@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := f.auth.ValidateForwardAuth(ctx, "SSO@example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same identity, got %s and %s", first.ID, second.ID)
	}
	if p, _ := f.users.GetUserProfile(ctx, first.ID); p == nil || p.Name != "sso" {
		t.Errorf("expected provisioned profile named after the email, got %+v", p)
	}

	// SSO identities cannot sign in with a password.
	if _, err := f.auth.SignIn(ctx, "sso@example.com", "", "", ""); err != app.ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestTokenIssuer(t *testing.T) {
	if _, err := app.NewTokenIssuer("short", "", time.Hour); err == nil {
		t.Error("expected short secret to be rejected")
	}

	tokens, _ := app.NewTokenIssuer(testSecret, "bootcamp", time.Hour)
	token, exp, err := tokens.Issue("id-1", "a@b.co", "sid-1", time.Now())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Error("expected expiry in the future")
	}

	claims, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "id-1" || claims.SID != "sid-1" || claims.Email != "a@b.co" {
		t.Errorf("unexpected claims %+v", claims)
	}

	other, _ := app.NewTokenIssuer("ffffffffffffffffffffffffffffffff", "bootcamp", time.Hour)
	if _, err := other.Parse(token); err != app.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	expired, _, _ := tokens.Issue("id-1", "a@b.co", "sid-1", time.Now().Add(-2*time.Hour))
	if _, err := tokens.Parse(expired); err != app.ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
