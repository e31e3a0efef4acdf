// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"

	"bootcamp/internal/domain"
)

type credentials struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess *domain.AuthSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	meta := domain.SignUpMetadata{Name: req.Name, Phone: req.Phone}
	sess, err := s.auth.SignUp(r.Context(), req.Email, req.Password, meta, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.auth.SignIn(r.Context(), req.Email, req.Password, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := accessToken(r); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.writeServiceError(w, err)
			return
		}
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetupAdmin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.auth.CreateInitialAdmin(r.Context(), req.Email, req.Password); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// handleSession returns the caller's session, or a null session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (*domain.AuthSession, bool) {
	sess, err := s.currentSession(r)
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	if sess == nil {
		writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return nil, false
	}
	return sess, true
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	p, err := s.users.GetUserProfile(r.Context(), sess.User.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

// handlePermissions returns null permissions when the identity has no
// profile and an empty list when it has a profile without grants.
func (s *Server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	perms, err := s.users.GetUserPermissions(r.Context(), sess.User.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidcConfig.Enabled,
	})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.logger.Warn("sso exchange failed", zap.Error(err))
		http.Error(w, "failed to exchange token", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusInternalServerError)
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		s.logger.Warn("sso token rejected", zap.Error(err))
		http.Error(w, "failed to verify token", http.StatusInternalServerError)
		return
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err = idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusInternalServerError)
		return
	}
	if claims.Email == "" {
		http.Error(w, "id_token has no email", http.StatusBadRequest)
		return
	}

	var meta domain.SignUpMetadata
	if claims.Name != "" {
		meta.Name = &claims.Name
	}
	sess, err := s.auth.SignInWithIdentity(r.Context(), claims.Email, meta, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		s.logger.Error("sso sign-in failed", zap.Error(err))
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, r, sess)
	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
