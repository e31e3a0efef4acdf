// Package identity is the client side of the bootcamp auth API: it signs
// in against a server, persists the session locally and reports state
// changes to subscribers.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bootcamp/internal/domain"
	"bootcamp/internal/session"
)

var (
	_ session.IdentityProvider = (*Client)(nil)
	_ session.ProfileStore     = (*Client)(nil)
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	// Fields holds per-field validation messages, if any.
	Fields map[string]string
}

func (e *APIError) Error() string {
	return e.Message
}

// UserAgent identifies the client. Server sessions are bound to it.
const UserAgent = "bootcamp-cli"

// ErrNotSignedIn is returned by authenticated calls made without a session.
var ErrNotSignedIn = errors.New("not signed in")

type handlerEntry struct {
	id int
	fn session.AuthStateHandler
}

// Client talks to the server's /api/auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	store   *CredentialStore
	logger  *zap.Logger

	mu       sync.Mutex
	current  *domain.AuthSession
	handlers []handlerEntry
	nextID   int
}

// NewClient returns a Client for the server at baseURL. A nil httpClient
// means http.DefaultClient.
func NewClient(baseURL string, store *CredentialStore, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		store:   store,
		logger:  logger.Named("identity"),
	}
}

// OnAuthStateChange registers handler. Handlers run synchronously, in
// registration order, on the goroutine that caused the change.
func (c *Client) OnAuthStateChange(handler session.AuthStateHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers = append(c.handlers, handlerEntry{id: id, fn: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.handlers = slices.DeleteFunc(c.handlers, func(h handlerEntry) bool { return h.id == id })
		})
	}
}

func (c *Client) emit(event domain.AuthEvent, s *domain.AuthSession) {
	c.mu.Lock()
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h.fn(event, s)
	}
}

func (c *Client) setCurrent(s *domain.AuthSession) *domain.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.current
	c.current = s
	return prev
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

// GetSession restores the stored session and confirms it with the server.
// A session the server no longer accepts is discarded. It emits nothing.
func (c *Client) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	stored, err := c.store.Load()
	if err != nil || stored == nil {
		c.setCurrent(nil)
		return nil, err
	}

	var resp struct {
		Session *domain.AuthSession `json:"session"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", stored.AccessToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil {
		c.logger.Info("stored session rejected by server")
		c.setCurrent(nil)
		return nil, c.store.Clear()
	}

	// The server echoes the bearer token back.
	c.setCurrent(resp.Session)
	return resp.Session, nil
}

// SignIn authenticates and stores the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.AuthSession, error) {
	return c.authenticate(ctx, "/api/auth/signin", map[string]any{"email": email, "password": password})
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string, meta domain.SignUpMetadata) (*domain.AuthSession, error) {
	body := map[string]any{"email": email, "password": password}
	if meta.Name != nil {
		body["name"] = *meta.Name
	}
	if meta.Phone != nil {
		body["phone"] = *meta.Phone
	}
	return c.authenticate(ctx, "/api/auth/signup", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]any) (*domain.AuthSession, error) {
	var resp struct {
		Session *domain.AuthSession `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, errors.New("server returned no session")
	}
	if err := c.store.Save(resp.Session); err != nil {
		return nil, err
	}
	c.setCurrent(resp.Session)
	c.emit(domain.EventSignedIn, resp.Session)
	return resp.Session, nil
}

// SignOut ends the session on the server and forgets it locally. When the
// server call fails the session is kept.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.token()
	if token != "" {
		if err := c.do(ctx, http.MethodPost, "/api/auth/signout", token, nil, nil); err != nil {
			return err
		}
	}
	c.setCurrent(nil)
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("clear credentials failed", zap.Error(err))
	}
	c.emit(domain.EventSignedOut, nil)
	return nil
}

// GetUserProfile returns the profile of identityID when it is the signed-in
// identity, or nil otherwise.
func (c *Client) GetUserProfile(ctx context.Context, identityID string) (*domain.Profile, error) {
	token, ok := c.tokenFor(identityID)
	if !ok {
		return nil, nil
	}
	var resp struct {
		Profile *domain.Profile `json:"profile"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profile, nil
}

// GetUserPermissions returns the grants of identityID when it is the
// signed-in identity, or nil otherwise.
func (c *Client) GetUserPermissions(ctx context.Context, identityID string) (domain.PermissionSet, error) {
	token, ok := c.tokenFor(identityID)
	if !ok {
		return nil, nil
	}
	var resp struct {
		Permissions domain.PermissionSet `json:"permissions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/permissions", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Permissions, nil
}

func (c *Client) tokenFor(identityID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.User.ID != identityID {
		return "", false
	}
	return c.current.AccessToken, true
}

// Watch emits SIGNED_OUT when the credentials file is deleted by someone
// else, until ctx is done.
func (c *Client) Watch(ctx context.Context) error {
	return c.store.Watch(ctx, func() {
		if prev := c.setCurrent(nil); prev != nil {
			c.logger.Info("credentials removed externally")
			c.emit(domain.EventSignedOut, nil)
		}
	})
}

// Request calls an API endpoint with the current session's token and
// decodes the JSON response into out, which may be nil.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	token := c.token()
	if token == "" {
		return ErrNotSignedIn
	}
	return c.do(ctx, method, path, token, body, out)
}

// Public calls an endpoint that needs no session.
func (c *Client) Public(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, "", body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error  string            `json:"error"`
			Errors map[string]string `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error, Fields: e.Errors}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
