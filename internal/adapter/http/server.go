package adapthttp

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"bootcamp/internal/app"
	"bootcamp/internal/domain"
	"bootcamp/internal/session"
)

// Services groups the application services the HTTP adapter drives.
type Services struct {
	Auth        *app.AuthService
	Users       *app.UserService
	Courses     *app.CourseService
	Enrollments *app.EnrollmentService
	Analytics   *app.AnalyticsService
}

// Options configures a Server.
type Options struct {
	// APIKey guards the management API. An empty key rejects every request.
	APIKey string
	// TrustForwardAuth accepts the Remote-Email header set by a reverse
	// proxy as proof of identity.
	TrustForwardAuth bool
	OIDC             *OIDCConfig
	WebDir           string
	// Health reports backing-store reachability for /api/health.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth        *app.AuthService
	users       *app.UserService
	courses     *app.CourseService
	enrollments *app.EnrollmentService
	analytics   *app.AnalyticsService

	apiKey           string
	trustForwardAuth bool
	oidcConfig       *OIDCConfig
	webDir           string
	health           func(ctx context.Context) error
	logger           *zap.Logger
}

// New creates a Server wired to the given application services.
func New(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OIDC == nil {
		opts.OIDC = &OIDCConfig{}
	}
	return &Server{
		auth:             svc.Auth,
		users:            svc.Users,
		courses:          svc.Courses,
		enrollments:      svc.Enrollments,
		analytics:        svc.Analytics,
		apiKey:           opts.APIKey,
		trustForwardAuth: opts.TrustForwardAuth,
		oidcConfig:       opts.OIDC,
		webDir:           opts.WebDir,
		health:           opts.Health,
		logger:           opts.Logger.Named("http"),
	}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", s.handleHealth)

	api.HandleFunc("POST /auth/signup", s.handleSignUp)
	api.HandleFunc("POST /auth/signin", s.handleSignIn)
	api.HandleFunc("POST /auth/signout", s.handleSignOut)
	api.HandleFunc("POST /auth/setup", s.handleSetupAdmin)
	api.HandleFunc("GET /auth/session", s.handleSession)
	api.HandleFunc("GET /auth/profile", s.handleProfile)
	api.HandleFunc("GET /auth/permissions", s.handlePermissions)
	api.HandleFunc("GET /auth/config", s.handleConfig)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	api.HandleFunc("GET /catalog", s.handleCatalog)
	api.HandleFunc("POST /enroll", s.handleRegister)
	api.HandleFunc("POST /courses/{id}/enroll", s.handleEnroll)

	key := s.requireAPIKey
	api.Handle("GET /users", key(s.handleUsersList))
	api.Handle("POST /users", key(s.handleUsersCreate))
	api.Handle("GET /users/{id}", key(s.handleUsersGet))
	api.Handle("PUT /users/{id}", key(s.handleUsersUpdate))
	api.Handle("DELETE /users/{id}", key(s.handleUsersDelete))

	api.Handle("GET /courses", key(s.handleCoursesList))
	api.Handle("POST /courses", key(s.handleCoursesCreate))
	api.Handle("GET /courses/{id}", key(s.handleCoursesGet))
	api.Handle("PUT /courses/{id}", key(s.handleCoursesUpdate))
	api.Handle("DELETE /courses/{id}", key(s.handleCoursesDelete))

	api.Handle("GET /enrollments", key(s.handleEnrollmentsList))
	api.Handle("POST /enrollments", key(s.handleEnrollmentsCreate))
	api.Handle("PUT /enrollments/{id}", key(s.handleEnrollmentsUpdate))
	api.Handle("DELETE /enrollments/{id}", key(s.handleEnrollmentsDelete))

	api.Handle("GET /analytics", key(s.handleAnalytics))

	users := session.Guard{Permission: domain.PermUserManagement}
	courses := session.Guard{Permission: domain.PermCourseManagement}
	enrollments := session.Guard{Permission: domain.PermEnrollmentManagement}
	admin := session.Guard{AdminOnly: true}

	api.Handle("GET /me/enrollments", s.protect(session.Guard{}, s.handleMyEnrollments))

	api.Handle("GET /admin/users", s.protect(users, s.handleUsersList))
	api.Handle("POST /admin/users", s.protect(users, s.handleUsersCreate))
	api.Handle("PUT /admin/users/{id}", s.protect(users, s.handleUsersUpdate))
	api.Handle("DELETE /admin/users/{id}", s.protect(users, s.handleUsersDelete))
	api.Handle("GET /admin/courses", s.protect(courses, s.handleCoursesList))
	api.Handle("POST /admin/courses", s.protect(courses, s.handleCoursesCreate))
	api.Handle("PUT /admin/courses/{id}", s.protect(courses, s.handleCoursesUpdate))
	api.Handle("DELETE /admin/courses/{id}", s.protect(courses, s.handleCoursesDelete))
	api.Handle("GET /admin/enrollments", s.protect(enrollments, s.handleEnrollmentsList))
	api.Handle("PUT /admin/enrollments/{id}", s.protect(enrollments, s.handleEnrollmentsUpdate))
	api.Handle("GET /admin/analytics", s.protect(admin, s.handleAnalytics))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	if s.webDir != "" {
		root.Handle("/", spaFromDisk(s.webDir))
	}

	return s.loggingMiddleware(withNoCache(root))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
