package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	adapthttp "bootcamp/internal/adapter/http"
	"bootcamp/internal/adapter/memory"
	"bootcamp/internal/app"
	"bootcamp/internal/domain"
)

const testAPIKey = "test-api-key"

// ---------------------------------------------------------------------------
// Test-server helper
// ---------------------------------------------------------------------------

type testEnv struct {
	ts   *httptest.Server
	db   *memory.DB
	svc  adapthttp.Services
	opts adapthttp.Options
}

func newTestServer(t *testing.T, configure func(*adapthttp.Options)) *testEnv {
	t.Helper()

	db := memory.New()
	tokens, err := app.NewTokenIssuer("0123456789abcdef0123456789abcdef", "bootcamp", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	users := app.NewUserService(db, db, nil)
	svc := adapthttp.Services{
		Auth:        app.NewAuthService(db, db.NewSessionRepo(), users, tokens, nil),
		Users:       users,
		Courses:     app.NewCourseService(db, db),
		Enrollments: app.NewEnrollmentService(db, db, db, nil),
		Analytics:   app.NewAnalyticsService(db, db, db),
	}

	webDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := adapthttp.Options{APIKey: testAPIKey, WebDir: webDir}
	if configure != nil {
		configure(&opts)
	}
	ts := httptest.NewServer(adapthttp.New(svc, opts).Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, db: db, svc: svc, opts: opts}
}

type call struct {
	method string
	path   string
	body   any
	apiKey string
	token  string
}

func (e *testEnv) do(t *testing.T, c call) (int, map[string]any) {
	t.Helper()

	var body *bytes.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(c.method, e.ts.URL+c.path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var m map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&m)
	return resp.StatusCode, m
}

func (e *testEnv) addCourse(t *testing.T, title string) int64 {
	t.Helper()
	c, err := e.db.CreateCourse(context.Background(), domain.Course{
		Title: title, Description: "desc", Price: 1999, Duration: "8周", Level: domain.LevelBeginner,
	})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	return c.ID
}

func (e *testEnv) signIn(t *testing.T, path string, body map[string]any) string {
	t.Helper()
	status, resp := e.do(t, call{method: http.MethodPost, path: path, body: body})
	if status != http.StatusOK && status != http.StatusCreated {
		t.Fatalf("%s: status %d body %v", path, status, resp)
	}
	sess, ok := resp["session"].(map[string]any)
	if !ok {
		t.Fatalf("%s: missing session in %v", path, resp)
	}
	return sess["accessToken"].(string)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/health"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
}

func TestHealthEndpoint_StoreDown(t *testing.T) {
	env := newTestServer(t, func(o *adapthttp.Options) {
		o.Health = func(context.Context) error { return errors.New("connection refused") }
	})

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/health"})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	if body["ok"] != false {
		t.Fatalf("expected ok=false, got %v", body["ok"])
	}
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestServer(t, nil)

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", testAPIKey, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, call{method: http.MethodGet, path: "/api/users", apiKey: tc.key})
			if status != tc.wantStatus {
				t.Fatalf("expected %d, got %d; body: %v", tc.wantStatus, status, body)
			}
			if tc.wantStatus == http.StatusOK {
				if _, ok := body["pagination"]; !ok {
					t.Fatal("response missing 'pagination' field")
				}
			}
		})
	}
}

func TestAPIKeyUnset_RejectsEverything(t *testing.T) {
	env := newTestServer(t, func(o *adapthttp.Options) { o.APIKey = "" })

	status, _ := env.do(t, call{method: http.MethodGet, path: "/api/courses", apiKey: "anything"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestUsersCreate(t *testing.T) {
	tests := []struct {
		name       string
		payload    map[string]any
		wantStatus int
		wantField  string
	}{
		{
			name:       "valid",
			payload:    map[string]any{"name": "张三", "email": "zhang@example.com", "phone": "13800138000"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			payload:    map[string]any{"email": "li@example.com"},
			wantStatus: http.StatusBadRequest,
			wantField:  "name",
		},
		{
			name:       "bad email",
			payload:    map[string]any{"name": "Li Si", "email": "not-an-email"},
			wantStatus: http.StatusBadRequest,
			wantField:  "email",
		},
		{
			name:       "bad role",
			payload:    map[string]any{"name": "Li Si", "email": "li@example.com", "role": "root"},
			wantStatus: http.StatusBadRequest,
			wantField:  "role",
		},
	}

	env := newTestServer(t, nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(t, call{method: http.MethodPost, path: "/api/users", body: tc.payload, apiKey: testAPIKey})
			if status != tc.wantStatus {
				t.Fatalf("expected %d, got %d; body: %v", tc.wantStatus, status, body)
			}
			if tc.wantField != "" {
				errs, ok := body["errors"].(map[string]any)
				if !ok {
					t.Fatalf("response missing 'errors' map: %v", body)
				}
				if _, ok := errs[tc.wantField]; !ok {
					t.Fatalf("expected error for %q, got %v", tc.wantField, errs)
				}
			}
		})
	}
}

func TestUsersCreate_DuplicateEmail(t *testing.T) {
	env := newTestServer(t, nil)
	payload := map[string]any{"name": "Wang Wu", "email": "wang@example.com"}

	if status, body := env.do(t, call{method: http.MethodPost, path: "/api/users", body: payload, apiKey: testAPIKey}); status != http.StatusCreated {
		t.Fatalf("first create: %d %v", status, body)
	}
	status, _ := env.do(t, call{method: http.MethodPost, path: "/api/users", body: payload, apiKey: testAPIKey})
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestUsersUpdateAndDelete(t *testing.T) {
	env := newTestServer(t, nil)

	_, created := env.do(t, call{method: http.MethodPost, path: "/api/users",
		body: map[string]any{"name": "Zhao Liu", "email": "zhao@example.com"}, apiKey: testAPIKey})
	id := int64(created["data"].(map[string]any)["id"].(float64))
	path := fmt.Sprintf("/api/users/%d", id)

	status, body := env.do(t, call{method: http.MethodPut, path: path, body: map[string]any{"role": "admin"}, apiKey: testAPIKey})
	if status != http.StatusOK {
		t.Fatalf("update: %d %v", status, body)
	}
	if got := body["data"].(map[string]any)["role"]; got != "admin" {
		t.Fatalf("role = %v, want admin", got)
	}

	if status, _ := env.do(t, call{method: http.MethodDelete, path: path, apiKey: testAPIKey}); status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}
	if status, _ := env.do(t, call{method: http.MethodDelete, path: path, apiKey: testAPIKey}); status != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", status)
	}
	if status, _ := env.do(t, call{method: http.MethodDelete, path: "/api/users/abc", apiKey: testAPIKey}); status != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", status)
	}
}

func TestCoursesCRUD(t *testing.T) {
	env := newTestServer(t, nil)

	status, body := env.do(t, call{method: http.MethodPost, path: "/api/courses", apiKey: testAPIKey, body: map[string]any{
		"title": "AI 入门", "description": "从零开始", "duration": "4周", "level": "初级", "price": 999,
	}})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	id := int64(body["data"].(map[string]any)["id"].(float64))
	path := fmt.Sprintf("/api/courses/%d", id)

	status, body = env.do(t, call{method: http.MethodPut, path: path, apiKey: testAPIKey, body: map[string]any{"price": 1299.5}})
	if status != http.StatusOK {
		t.Fatalf("update: %d %v", status, body)
	}
	if got := body["data"].(map[string]any)["price"]; got != 1299.5 {
		t.Fatalf("price = %v", got)
	}

	status, _ = env.do(t, call{method: http.MethodPut, path: path, apiKey: testAPIKey, body: map[string]any{"level": "专家"}})
	if status != http.StatusBadRequest {
		t.Fatalf("bad level: expected 400, got %d", status)
	}

	status, body = env.do(t, call{method: http.MethodGet, path: "/api/courses?level=" + url.QueryEscape(domain.LevelBeginner), apiKey: testAPIKey})
	if status != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}

	if status, _ := env.do(t, call{method: http.MethodDelete, path: path, apiKey: testAPIKey}); status != http.StatusOK {
		t.Fatalf("delete: %d", status)
	}
	if status, _ := env.do(t, call{method: http.MethodGet, path: path, apiKey: testAPIKey}); status != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", status)
	}
}

func TestCatalogIsPublic(t *testing.T) {
	env := newTestServer(t, nil)
	env.addCourse(t, "A")
	env.addCourse(t, "B")

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/catalog"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if n := len(body["data"].([]any)); n != 2 {
		t.Fatalf("expected 2 courses, got %d", n)
	}
}

func TestEnrollForm(t *testing.T) {
	env := newTestServer(t, nil)
	courseID := env.addCourse(t, "AI 实战")
	path := fmt.Sprintf("/api/courses/%d/enroll", courseID)

	status, body := env.do(t, call{method: http.MethodPost, path: path, body: map[string]any{
		"name": "A", "email": "bad", "phone": "123",
	}})
	if status != http.StatusBadRequest {
		t.Fatalf("invalid form: expected 400, got %d", status)
	}
	errs := body["errors"].(map[string]any)
	for _, field := range []string{"name", "email", "phone"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("missing error for %s in %v", field, errs)
		}
	}

	valid := map[string]any{"name": "陈小明", "email": "chen@example.com", "phone": "13912345678"}
	status, body = env.do(t, call{method: http.MethodPost, path: path, body: valid})
	if status != http.StatusCreated {
		t.Fatalf("enroll: %d %v", status, body)
	}
	if body["message"] == "" {
		t.Fatal("response missing success message")
	}

	status, _ = env.do(t, call{method: http.MethodPost, path: path, body: valid})
	if status != http.StatusConflict {
		t.Fatalf("duplicate enroll: expected 409, got %d", status)
	}

	status, _ = env.do(t, call{method: http.MethodPost, path: "/api/courses/999/enroll", body: valid})
	if status != http.StatusNotFound {
		t.Fatalf("unknown course: expected 404, got %d", status)
	}
}

func TestRegisterForm(t *testing.T) {
	env := newTestServer(t, nil)
	courseID := env.addCourse(t, "AI 实战")

	status, body := env.do(t, call{method: http.MethodPost, path: "/api/enroll", body: map[string]any{
		"name": "Lin", "email": "lin@example.com", "phone": "13712345678", "selectedCourse": courseID,
	}})
	if status != http.StatusCreated {
		t.Fatalf("register: %d %v", status, body)
	}
	data := body["data"].(map[string]any)
	if data["status"] != domain.StatusPending {
		t.Fatalf("status = %v, want pending", data["status"])
	}

	status, body = env.do(t, call{method: http.MethodPost, path: "/api/enroll", body: map[string]any{
		"name": "Lin", "email": "lin@example.com", "phone": "13712345678",
	}})
	if status != http.StatusBadRequest {
		t.Fatalf("missing course: expected 400, got %d", status)
	}
	if _, ok := body["errors"].(map[string]any)["selectedCourse"]; !ok {
		t.Fatalf("missing selectedCourse error: %v", body)
	}
}

func TestEnrollmentsAPI(t *testing.T) {
	env := newTestServer(t, nil)
	courseID := env.addCourse(t, "AI 实战")
	u, err := env.db.CreateUser(context.Background(), domain.Profile{Name: "Gao", Email: "gao@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"user_id": u.ID, "course_id": courseID}
	status, body := env.do(t, call{method: http.MethodPost, path: "/api/enrollments", body: payload, apiKey: testAPIKey})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	id := int64(body["data"].(map[string]any)["id"].(float64))

	if status, _ := env.do(t, call{method: http.MethodPost, path: "/api/enrollments", body: payload, apiKey: testAPIKey}); status != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", status)
	}

	path := fmt.Sprintf("/api/enrollments/%d", id)
	if status, _ := env.do(t, call{method: http.MethodPut, path: path, body: map[string]any{"status": "done"}, apiKey: testAPIKey}); status != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", status)
	}
	if status, _ := env.do(t, call{method: http.MethodPut, path: path, body: map[string]any{"status": "active"}, apiKey: testAPIKey}); status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", status)
	}

	status, body = env.do(t, call{method: http.MethodGet, path: "/api/enrollments?status=active&search=gao", apiKey: testAPIKey})
	if status != http.StatusOK || len(body["data"].([]any)) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}

	status, _ = env.do(t, call{method: http.MethodGet, path: "/api/enrollments?start_date=yesterday", apiKey: testAPIKey})
	if status != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", status)
	}
}

func TestAnalytics(t *testing.T) {
	env := newTestServer(t, nil)

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/analytics", apiKey: testAPIKey})
	if status != http.StatusOK {
		t.Fatalf("overview: %d %v", status, body)
	}
	if _, ok := body["overview"]; !ok {
		t.Fatalf("response missing 'overview': %v", body)
	}

	status, _ = env.do(t, call{method: http.MethodGet, path: "/api/analytics?type=bogus", apiKey: testAPIKey})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown type: expected 400, got %d", status)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestServer(t, nil)

	token := env.signIn(t, "/api/auth/signup", map[string]any{
		"email": "Student@Example.com", "password": "secret123", "name": "Student",
	})

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/auth/session", token: token})
	if status != http.StatusOK || body["session"] == nil {
		t.Fatalf("session: %d %v", status, body)
	}

	status, body = env.do(t, call{method: http.MethodGet, path: "/api/auth/profile", token: token})
	if status != http.StatusOK {
		t.Fatalf("profile: %d %v", status, body)
	}
	profile := body["profile"].(map[string]any)
	if profile["role"] != domain.RoleStudent || profile["email"] != "student@example.com" {
		t.Fatalf("unexpected profile: %v", profile)
	}

	status, body = env.do(t, call{method: http.MethodGet, path: "/api/auth/permissions", token: token})
	if status != http.StatusOK {
		t.Fatalf("permissions: %d", status)
	}
	if perms, ok := body["permissions"].([]any); !ok || len(perms) != 0 {
		t.Fatalf("expected empty permissions, got %v", body["permissions"])
	}

	if status, _ := env.do(t, call{method: http.MethodPost, path: "/api/auth/signout", token: token}); status != http.StatusOK {
		t.Fatalf("signout: %d", status)
	}
	status, body = env.do(t, call{method: http.MethodGet, path: "/api/auth/session", token: token})
	if status != http.StatusOK || body["session"] != nil {
		t.Fatalf("session after signout: %d %v", status, body)
	}
	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/auth/profile", token: token}); status != http.StatusUnauthorized {
		t.Fatalf("profile after signout: expected 401, got %d", status)
	}
}

func TestAuthSignIn_Errors(t *testing.T) {
	env := newTestServer(t, nil)
	env.signIn(t, "/api/auth/signup", map[string]any{"email": "a@example.com", "password": "secret123"})

	status, _ := env.do(t, call{method: http.MethodPost, path: "/api/auth/signin",
		body: map[string]any{"email": "a@example.com", "password": "wrong-password"}})
	if status != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", status)
	}

	status, _ = env.do(t, call{method: http.MethodPost, path: "/api/auth/signup",
		body: map[string]any{"email": "a@example.com", "password": "secret123"}})
	if status != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", status)
	}

	status, body := env.do(t, call{method: http.MethodPost, path: "/api/auth/signup",
		body: map[string]any{"email": "b@example.com", "password": "123"}})
	if status != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", status)
	}
	if _, ok := body["errors"].(map[string]any)["password"]; !ok {
		t.Fatalf("missing password error: %v", body)
	}
}

func TestAdminRoutesAreGated(t *testing.T) {
	env := newTestServer(t, nil)
	ctx := context.Background()

	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/admin/users"}); status != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", status)
	}

	student := env.signIn(t, "/api/auth/signup", map[string]any{"email": "s@example.com", "password": "secret123"})
	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/admin/users", token: student}); status != http.StatusForbidden {
		t.Fatalf("student: expected 403, got %d", status)
	}

	if err := env.svc.Auth.CreateInitialAdmin(ctx, "root@example.com", "rootpass"); !errors.Is(err, app.ErrAlreadyInitialized) {
		t.Fatalf("CreateInitialAdmin on non-empty store: %v", err)
	}

	// Grant course management only.
	p, err := env.svc.Users.GetUserProfile(ctx, identityID(t, env, student))
	if err != nil || p == nil {
		t.Fatalf("profile: %v %v", p, err)
	}
	if err := env.svc.Users.Grant(ctx, p.ID, domain.PermissionSet{domain.PermCourseManagement}); err != nil {
		t.Fatal(err)
	}

	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/admin/courses", token: student}); status != http.StatusOK {
		t.Fatalf("granted: expected 200, got %d", status)
	}
	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/admin/users", token: student}); status != http.StatusForbidden {
		t.Fatalf("not granted: expected 403, got %d", status)
	}
	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/admin/analytics", token: student}); status != http.StatusForbidden {
		t.Fatalf("admin only: expected 403, got %d", status)
	}
}

func TestSetupAdmin(t *testing.T) {
	env := newTestServer(t, nil)

	for _, body := range []map[string]any{
		{},
		{"email": "root@example.com", "password": "12345"},
	} {
		status, resp := env.do(t, call{method: http.MethodPost, path: "/api/auth/setup", body: body})
		if status != http.StatusBadRequest {
			t.Fatalf("setup with %v: expected 400, got %d", body, status)
		}
		if _, ok := resp["errors"].(map[string]any); !ok {
			t.Fatalf("setup with %v: missing field errors in %v", body, resp)
		}
	}

	status, _ := env.do(t, call{method: http.MethodPost, path: "/api/auth/setup",
		body: map[string]any{"email": "root@example.com", "password": "rootpass"}})
	if status != http.StatusCreated {
		t.Fatalf("setup: expected 201, got %d", status)
	}
	status, _ = env.do(t, call{method: http.MethodPost, path: "/api/auth/setup",
		body: map[string]any{"email": "other@example.com", "password": "rootpass"}})
	if status != http.StatusConflict {
		t.Fatalf("second setup: expected 409, got %d", status)
	}

	token := env.signIn(t, "/api/auth/signin", map[string]any{"email": "root@example.com", "password": "rootpass"})
	for _, path := range []string{"/api/admin/users", "/api/admin/courses", "/api/admin/enrollments", "/api/admin/analytics"} {
		if status, body := env.do(t, call{method: http.MethodGet, path: path, token: token}); status != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d; body: %v", path, status, body)
		}
	}
}

func TestMyEnrollments(t *testing.T) {
	env := newTestServer(t, nil)
	courseID := env.addCourse(t, "Go 进阶")

	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/me/enrollments"}); status != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", status)
	}

	// Enroll before having an account, then sign up with the same email.
	status, _ := env.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/courses/%d/enroll", courseID),
		body: map[string]any{"name": "韩梅梅", "email": "hmm@example.com", "phone": "13800138000"}})
	if status != http.StatusCreated {
		t.Fatalf("enroll: expected 201, got %d", status)
	}
	token := env.signIn(t, "/api/auth/signup", map[string]any{"email": "hmm@example.com", "password": "secret123"})

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/me/enrollments", token: token})
	if status != http.StatusOK {
		t.Fatalf("me/enrollments: %d %v", status, body)
	}
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("expected 1 enrollment, got %v", data)
	}
	e := data[0].(map[string]any)
	if e["status"] != domain.StatusPending {
		t.Errorf("expected pending, got %v", e["status"])
	}
	if course, ok := e["course"].(map[string]any); !ok || course["title"] != "Go 进阶" {
		t.Errorf("expected the course to be included, got %v", e["course"])
	}
	counts := body["counts"].(map[string]any)
	if counts[domain.StatusPending] != float64(1) || counts[domain.StatusActive] != float64(0) {
		t.Errorf("unexpected counts %v", counts)
	}

	// Someone else sees only their own, empty, list.
	other := env.signIn(t, "/api/auth/signup", map[string]any{"email": "other@example.com", "password": "secret123"})
	_, body = env.do(t, call{method: http.MethodGet, path: "/api/me/enrollments", token: other})
	if data := body["data"].([]any); len(data) != 0 {
		t.Errorf("expected no enrollments, got %v", data)
	}
}

func TestForwardAuth(t *testing.T) {
	env := newTestServer(t, func(o *adapthttp.Options) { o.TrustForwardAuth = true })

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/auth/profile", nil)
	req.Header.Set("Remote-Email", "proxy@example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestConfigEndpoint(t *testing.T) {
	env := newTestServer(t, nil)

	status, body := env.do(t, call{method: http.MethodGet, path: "/api/auth/config"})
	if status != http.StatusOK || body["sso_enabled"] != false {
		t.Fatalf("config: %d %v", status, body)
	}
	if status, _ := env.do(t, call{method: http.MethodGet, path: "/api/auth/sso/login"}); status != http.StatusNotFound {
		t.Fatalf("sso login while disabled: expected 404, got %d", status)
	}
}

func TestParseID(t *testing.T) {
	tests := map[string]bool{"1": true, "42": true, "0": false, "-3": false, "x": false, "": false}
	for in, ok := range tests {
		_, err := adapthttp.ParseID(in)
		if (err == nil) != ok {
			t.Errorf("ParseID(%q) err = %v", in, err)
		}
	}
}

func identityID(t *testing.T, env *testEnv, token string) string {
	t.Helper()
	status, body := env.do(t, call{method: http.MethodGet, path: "/api/auth/session", token: token})
	if status != http.StatusOK {
		t.Fatalf("session: %d", status)
	}
	return body["session"].(map[string]any)["user"].(map[string]any)["id"].(string)
}
