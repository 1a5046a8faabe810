package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/config"
	"trafficnotes/internal/database"
	"trafficnotes/internal/handlers"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/services"
)

func main() {
	if err := run(); err != nil {
		logger.Get().Fatalw("server stopped", "error", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(cfg.Env)
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = getWebDir()
	}
	log.Infow("using web directory", "path", webDir)

	// Initialize database
	db, err := database.New(filepath.Join(cfg.DataDir, "violations.db"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize services
	audit := services.NewAuditService(db)
	limiter := services.NewRateLimiter(db, nil)
	violations := services.NewViolationService(db, audit)
	reports := services.NewReportService(violations)
	users := auth.NewUserService(db, audit, auth.BcryptHasher{Cost: cfg.BcryptCost})
	authenticator := auth.NewAuthenticator(users, limiter, audit, auth.LoginPolicy{
		MaxAttempts: cfg.LoginMaxAttempts,
		Window:      cfg.LoginWindow,
	})

	janitor := services.NewJanitor(cfg.CleanupInterval)
	janitor.Register("rate_limits", func(ctx context.Context) (int64, error) {
		return limiter.Cleanup(ctx, cfg.RateLimitRetention)
	})

	var backend auth.Backend
	switch cfg.SessionBackend {
	case "redis":
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		backend = auth.NewRedisBackend(rdb)
		log.Infow("using redis session backend")
	default:
		sqlBackend := auth.NewSQLBackend(db)
		janitor.Register("sessions", sqlBackend.Cleanup)
		backend = sqlBackend
	}

	store := auth.NewStore(backend, []byte(cfg.SessionSecret))
	sessions := auth.NewSessionManager(store, users, audit, auth.NewCSRF(cfg.CSRFTokenExpiry), auth.SessionConfig{
		Name:    cfg.SessionName,
		Timeout: cfg.SessionTimeout,
		Secure:  cfg.IsProduction(),
	})

	// Ensure default admin user exists
	if err := users.EnsureDefaultAdmin(ctx, cfg.DefaultAdmin, cfg.DefaultAdminEmail, cfg.DefaultPassword); err != nil {
		log.Warnw("failed to create default admin", "error", err)
	}

	// Load templates
	templates, err := handlers.LoadTemplates(filepath.Join(webDir, "templates"))
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	router := handlers.NewRouter(handlers.Deps{
		DB:            db,
		Templates:     templates,
		StaticDir:     filepath.Join(webDir, "static"),
		Sessions:      sessions,
		Users:         users,
		Authenticator: authenticator,
		Audit:         audit,
		Violations:    violations,
		Reports:       reports,

		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	janitor.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("starting server", "addr", srv.Addr, "env", cfg.Env, "session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
	stop()
	janitor.Wait()

	return nil
}

func getWebDir() string {
	// Try relative paths from executable
	exe, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exe)

		// Check ../web (for build directory structure)
		candidate := filepath.Join(exeDir, "..", "web")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		// Check ../../web (for cmd/server structure)
		candidate = filepath.Join(exeDir, "..", "..", "web")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	// Try current working directory
	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, "web")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	// Default fallback
	return "./web"
}
