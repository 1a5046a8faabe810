package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"

	"github.com/gorilla/sessions"
)

const (
	SessionUserID       = "user_id"
	SessionUsername     = "username"
	SessionRole         = "role"
	SessionFullName     = "full_name"
	SessionLastActivity = "last_activity"
	sessionKeyFlash     = "flash"
)

type SessionConfig struct {
	Name    string
	Timeout time.Duration
	Secure  bool
}

type sessionContextKey struct{}

// SessionManager ties the request session to the logged-in user.
type SessionManager struct {
	store *Store
	users *UserService
	audit *services.AuditService
	csrf  *CSRF
	cfg   SessionConfig
	now   func() time.Time
}

// NewSessionManager configures store's cookie for cfg and returns a manager.
func NewSessionManager(store *Store, users *UserService, audit *services.AuditService, csrf *CSRF, cfg SessionConfig) *SessionManager {
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	store.MaxAge(int(cfg.Timeout / time.Second))

	return &SessionManager{
		store: store,
		users: users,
		audit: audit,
		csrf:  csrf,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Middleware loads the session into the request context, expires idle
// sessions and saves the session before the response header goes out.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.store.New(r, m.cfg.Name)
		if err != nil {
			logger.Get().Debugw("discarding unreadable session", "error", err)
		}

		now := m.now()
		if last, ok := sess.Values[SessionLastActivity].(int64); ok && now.Unix()-last > int64(m.cfg.Timeout/time.Second) {
			if err := m.store.Destroy(r.Context(), sess); err != nil {
				logger.Get().Errorw("failed to destroy expired session", "error", err)
			}
			sess.Values = make(map[interface{}]interface{})
		}
		sess.Values[SessionLastActivity] = now.Unix()

		r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, sess))
		sw := &sessionWriter{ResponseWriter: w}
		sw.save = func() {
			if err := m.store.Save(r, w, sess); err != nil {
				logger.Get().Errorw("failed to save session", "error", err)
			}
		}

		next.ServeHTTP(sw, r)
		sw.flush()
	})
}

// SessionFrom returns the session loaded by Middleware, or nil.
func SessionFrom(ctx context.Context) *sessions.Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*sessions.Session)
	return sess
}

// Login starts an authenticated session for userID under a new session id
// and returns the user's role.
func (m *SessionManager) Login(ctx context.Context, userID int64, username string) (models.Role, error) {
	sess := SessionFrom(ctx)
	if sess == nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, errors.New("session middleware not installed"))
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		m.audit.LogLoginAttempt(ctx, &user.ID, username, false, map[string]any{"reason": "account_disabled"})
		return "", apperrors.WithMessage(apperrors.ErrAccountDisabled,
			"Your account has been disabled. Please contact the administrator.")
	}

	if err := m.store.Destroy(ctx, sess); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	sess.Values = map[interface{}]interface{}{
		SessionUserID:       user.ID,
		SessionUsername:     user.Username,
		SessionRole:         string(user.Role),
		SessionFullName:     user.FullName,
		SessionLastActivity: m.now().Unix(),
	}
	m.csrf.Rotate(sess)

	if err := m.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Get().Errorw("failed to update last login", "error", err, "user_id", user.ID)
	}
	m.audit.LogLoginAttempt(ctx, &user.ID, user.Username, true, nil)

	return user.Role, nil
}

// Logout records the logout and ends the session.
func (m *SessionManager) Logout(ctx context.Context) {
	if u := m.User(ctx); u != nil {
		m.audit.Log(ctx, &u.ID, models.ActionLogout, "user", &u.ID, nil)
	}
	m.Clear(ctx)
}

// Clear drops every value and expires the cookie and stored data.
func (m *SessionManager) Clear(ctx context.Context) {
	sess := SessionFrom(ctx)
	if sess == nil {
		return
	}
	sess.Values = make(map[interface{}]interface{})
	sess.Options.MaxAge = -1
}

// User returns the logged-in user recorded in the session, or nil.
func (m *SessionManager) User(ctx context.Context) *models.SessionUser {
	sess := SessionFrom(ctx)
	if sess == nil {
		return nil
	}
	id, ok := sess.Values[SessionUserID].(int64)
	if !ok {
		return nil
	}
	username, _ := sess.Values[SessionUsername].(string)
	role, _ := sess.Values[SessionRole].(string)
	fullName, _ := sess.Values[SessionFullName].(string)
	return &models.SessionUser{ID: id, Username: username, Role: models.Role(role), FullName: fullName}
}

// CSRFToken returns the token to embed in forms rendered for this request.
func (m *SessionManager) CSRFToken(ctx context.Context) string {
	sess := SessionFrom(ctx)
	if sess == nil {
		return ""
	}
	return m.csrf.Token(sess)
}

// ValidCSRF checks a submitted token against the request session.
func (m *SessionManager) ValidCSRF(ctx context.Context, token string) bool {
	sess := SessionFrom(ctx)
	return sess != nil && m.csrf.Validate(sess, token)
}

// SetFlash keeps msg for the next page rendered in this session.
func (m *SessionManager) SetFlash(ctx context.Context, msg string) {
	if sess := SessionFrom(ctx); sess != nil {
		sess.Values[sessionKeyFlash] = msg
	}
}

// PopFlash returns and clears the pending flash message.
func (m *SessionManager) PopFlash(ctx context.Context) string {
	sess := SessionFrom(ctx)
	if sess == nil {
		return ""
	}
	msg, _ := sess.Values[sessionKeyFlash].(string)
	delete(sess.Values, sessionKeyFlash)
	return msg
}

// sessionWriter saves the session once, right before the first header or
// body byte is written.
type sessionWriter struct {
	http.ResponseWriter
	save  func()
	saved bool
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *sessionWriter) flush() {
	if !w.saved {
		w.saved = true
		w.save()
	}
}
