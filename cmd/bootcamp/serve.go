package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	adapthttp "bootcamp/internal/adapter/http"
	"bootcamp/internal/adapter/memory"
	"bootcamp/internal/adapter/postgres"
	"bootcamp/internal/adapter/redisstore"
	"bootcamp/internal/app"
	"bootcamp/internal/config"
	"bootcamp/internal/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// repositories is everything the services need from a record store.
type repositories interface {
	domain.IdentityRepository
	domain.UserRepository
	domain.PermissionRepository
	domain.CourseRepository
	domain.EnrollmentRepository
}

type backend struct {
	repos    repositories
	sessions domain.SessionRepository
	checks   []func(context.Context) error
	closers  []func() error
}

func (b *backend) health(ctx context.Context) error {
	for _, check := range b.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackend(cfg *config.Config) (*backend, error) {
	b := &backend{}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		b.repos = db
		b.sessions = postgres.NewSessionRepo(db)
		b.checks = append(b.checks, db.Ping)
		b.closers = append(b.closers, db.Close)
	default:
		db := memory.New()
		b.repos = db
		b.sessions = db.NewSessionRepo()
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := redisstore.NewStore(rdb, cfg.Redis.Prefix)
		b.sessions = store
		b.checks = append(b.checks, store.Ping)
		b.closers = append(b.closers, rdb.Close)
	}
	return b, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	tokens, err := app.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.GetSessionTTL())
	if err != nil {
		return err
	}

	users := app.NewUserService(b.repos, b.repos, logger)
	auth := app.NewAuthService(b.repos, b.sessions, users, tokens, logger)
	svc := adapthttp.Services{
		Auth:        auth,
		Users:       users,
		Courses:     app.NewCourseService(b.repos, b.repos),
		Enrollments: app.NewEnrollmentService(b.repos, b.repos, b.repos, logger),
		Analytics:   app.NewAnalyticsService(b.repos, b.repos, b.repos),
	}

	if cfg.Auth.AdminEmail != "" {
		err := auth.CreateInitialAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword)
		switch {
		case errors.Is(err, app.ErrAlreadyInitialized):
		case err != nil:
			return fmt.Errorf("create initial admin: %w", err)
		default:
			logger.Info("initial admin created", zap.String("email", cfg.Auth.AdminEmail))
		}
	}

	var oidcConfig *adapthttp.OIDCConfig
	if cfg.SSOEnabled() {
		oidcConfig, err = adapthttp.NewOIDCConfig(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			return err
		}
	}

	h := adapthttp.New(svc, adapthttp.Options{
		APIKey:           cfg.Server.APIKey,
		TrustForwardAuth: cfg.Server.TrustForwardAuth,
		OIDC:             oidcConfig,
		WebDir:           cfg.Server.WebDir,
		Health:           b.health,
		Logger:           logger,
	}).Handler()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go purgeSessions(ctx, auth, cfg.GetPurgeInterval())

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("driver", cfg.Database.Driver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeSessions(ctx context.Context, auth *app.AuthService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := auth.PurgeExpired(ctx); err != nil {
				logger.Warn("purge expired sessions failed", zap.Error(err))
			}
		}
	}
}
