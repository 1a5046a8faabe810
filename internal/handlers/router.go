package handlers

import (
	"net/http"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/database"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/middleware"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	DB            *database.DB
	Templates     TemplateExecutor
	StaticDir     string
	Sessions      *auth.SessionManager
	Users         *auth.UserService
	Authenticator *auth.Authenticator
	Audit         *services.AuditService
	Violations    *services.ViolationService
	Reports       *services.ReportService

	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the
	// remote address. Off, the login limit is keyed on the TCP peer.
	TrustProxyHeaders bool
}

// NewRouter wires every route of the application.
func NewRouter(d Deps) http.Handler {
	p := pages{templates: d.Templates, sessions: d.Sessions}

	authHandler := NewAuthHandler(d.Templates, d.Sessions, d.Authenticator, d.Users)
	violationsHandler := NewViolationsHandler(d.Templates, d.Sessions, d.Violations)
	dashboardHandler := NewDashboardHandler(d.Templates, d.Sessions, d.Violations, d.Reports, d.Audit)
	adminHandler := NewAdminHandler(d.Templates, d.Sessions, d.Users, d.Audit)
	settingsHandler := NewSettingsHandler(d.Templates, d.Sessions, d.Users)

	authMiddleware := middleware.NewAuthMiddleware(d.Sessions, d.Users, d.Audit, http.HandlerFunc(p.Forbidden))

	r := chi.NewRouter()

	// Global middleware
	if d.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ClientInfo)
	r.Use(middleware.SecurityHeaders)

	// Static files
	if d.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	}
	r.Get("/healthz", health(d.DB))

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.Middleware)
		r.Use(middleware.CSRF(d.Sessions, http.HandlerFunc(p.CSRFFailed)))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			p.renderError(w, r, apperrors.ErrNotFound)
		})

		// Public routes
		r.Get("/", authHandler.Home)
		r.Get("/login", authHandler.LoginPage)
		r.Post("/login", authHandler.Login)
		r.Get("/register", authHandler.RegisterPage)
		r.Post("/register", authHandler.Register)
		r.Get("/logout", authHandler.Logout)

		// Any authenticated user
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/settings/password", settingsHandler.PasswordPage)
			r.Post("/settings/password", settingsHandler.ChangePassword)
		})

		// Officers
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireRole(models.RolePoliceman))
			r.Get("/violations/new", violationsHandler.NewPage)
			r.Post("/violations/new", violationsHandler.Create)
			r.Get("/violations/mine", violationsHandler.Mine)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAdmin)
			r.Get("/dashboard", dashboardHandler.Dashboard)
			r.Get("/dashboard/export", dashboardHandler.Export)
			r.Get("/admin/users", adminHandler.Users)
			r.Post("/admin/users/{id}/deactivate", adminHandler.Deactivate)
			r.Post("/admin/users/{id}/activate", adminHandler.Activate)
			r.Get("/admin/audit", adminHandler.Audit)
		})
	})

	return r
}

func health(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				logger.Get().Errorw("health check failed", "error", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}
