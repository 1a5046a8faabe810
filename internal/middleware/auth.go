package middleware

import (
	"context"
	"errors"
	"net/http"

	"trafficnotes/internal/auth"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"
)

type contextKey string

const UserContextKey contextKey = "user"

type AuthMiddleware struct {
	sessions    *auth.SessionManager
	userService *auth.UserService
	audit       *services.AuditService
	forbidden   http.Handler
}

// NewAuthMiddleware builds the role gates. forbidden renders the 403 page;
// nil falls back to a plain-text response.
func NewAuthMiddleware(sessions *auth.SessionManager, userService *auth.UserService, audit *services.AuditService, forbidden http.Handler) *AuthMiddleware {
	if forbidden == nil {
		forbidden = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, apperrors.ErrForbidden.Message, http.StatusForbidden)
		})
	}
	return &AuthMiddleware{
		sessions:    sessions,
		userService: userService,
		audit:       audit,
		forbidden:   forbidden,
	}
}

// RequireAuth loads the session user from the database. Sessions whose
// user is gone or disabled are cleared.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		su := m.sessions.User(r.Context())
		if su == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := m.userService.GetByID(r.Context(), su.ID)
		if err != nil || !user.IsActive {
			if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				logger.Get().Errorw("failed to load session user", "error", err, "user_id", su.ID)
			}
			m.sessions.Clear(r.Context())
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits only users with role. It includes RequireAuth.
func (m *AuthMiddleware) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user.Role != role {
				m.audit.Log(r.Context(), &user.ID, models.ActionUnauthorizedAccess, "page", nil, map[string]any{
					"required_role": string(role),
					"user_role":     string(user.Role),
					"path":          r.URL.Path,
				})
				m.forbidden.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireRole(models.RoleAdmin)(next)
}

func GetUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}
