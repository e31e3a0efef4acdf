package adapthttp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bootcamp/internal/app"
	"bootcamp/internal/domain"
	"bootcamp/internal/session"
	"bootcamp/internal/validation"
)

type contextKey string

const snapshotContextKey contextKey = "snapshot"

const sessionCookie = "session"

// SnapshotFrom returns the session snapshot a protected handler was
// admitted with.
func SnapshotFrom(ctx context.Context) (session.Snapshot, bool) {
	s, ok := ctx.Value(snapshotContextKey).(session.Snapshot)
	return s, ok
}

// accessToken reads the bearer token, falling back to the session cookie.
func accessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// currentSession resolves the caller's session from forward auth headers,
// a bearer token or the session cookie. A missing, expired or foreign
// session yields nil with no error.
func (s *Server) currentSession(r *http.Request) (*domain.AuthSession, error) {
	if s.trustForwardAuth {
		if remote := r.Header.Get("Remote-Email"); remote != "" {
			identity, err := s.auth.ValidateForwardAuth(r.Context(), remote)
			if err != nil {
				return nil, err
			}
			return &domain.AuthSession{User: *identity}, nil
		}
	}

	token := accessToken(r)
	if token == "" {
		return nil, nil
	}
	sess, err := s.auth.ValidateSession(r.Context(), token, r.UserAgent())
	switch {
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, app.ErrSessionExpired), errors.Is(err, app.ErrIdentityNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return sess, nil
}

// snapshot builds the per-request session snapshot for r.
func (s *Server) snapshot(r *http.Request) (session.Snapshot, error) {
	sess, err := s.currentSession(r)
	if err != nil || sess == nil {
		return session.NewSnapshot(nil, nil, nil), err
	}

	var (
		profile *domain.Profile
		perms   domain.PermissionSet
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		profile, err = s.users.GetUserProfile(ctx, sess.User.ID)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = s.users.GetUserPermissions(ctx, sess.User.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return session.Snapshot{}, err
	}
	return session.NewSnapshot(&sess.User, profile, perms), nil
}

// protect admits a request only when guard decides its snapshot may see
// the content.
func (s *Server) protect(guard session.Guard, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.snapshot(r)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		switch guard.Decide(snap) {
		case session.ViewContent:
			ctx := context.WithValue(r.Context(), snapshotContextKey, snap)
			next.ServeHTTP(w, r.WithContext(ctx))
		case session.ViewForbidden:
			writeJSON(w, http.StatusForbidden, map[string]any{"error": validation.MsgForbidden})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": validation.MsgUnauthorized})
		}
	})
}

// requireAPIKey admits requests carrying the configured x-api-key.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		if key == "" || s.apiKey == "" || !app.ConstantTimeCompare(key, s.apiKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs one line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
