package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
	"trafficnotes/internal/services"
)

// LoginPolicy bounds failed logins per client.
type LoginPolicy struct {
	MaxAttempts int
	Window      time.Duration
}

// Authenticator checks credentials under the login rate limit and records
// every outcome in the audit log.
type Authenticator struct {
	users   *UserService
	limiter *services.RateLimiter
	audit   *services.AuditService
	policy  LoginPolicy
}

func NewAuthenticator(users *UserService, limiter *services.RateLimiter, audit *services.AuditService, policy LoginPolicy) *Authenticator {
	return &Authenticator{users: users, limiter: limiter, audit: audit, policy: policy}
}

// Authenticate returns the user for valid credentials. Unknown usernames and
// wrong passwords produce the same error; disabled accounts get their own.
// A limited client is rejected before any credential lookup.
func (a *Authenticator) Authenticate(ctx context.Context, username, password, clientID string) (*models.User, error) {
	if a.limiter.IsLimited(ctx, clientID, services.ActionLogin, a.policy.MaxAttempts, a.policy.Window) {
		return nil, apperrors.RateLimited(a.limiter.Remaining(ctx, clientID, services.ActionLogin, a.policy.MaxAttempts, a.policy.Window))
	}

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		a.fail(ctx, clientID, nil, username, "invalid_input")
		return nil, apperrors.Validation([]string{"Username and password are required"})
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			a.fail(ctx, clientID, nil, username, "user_not_found")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if !user.IsActive {
		a.fail(ctx, clientID, &user.ID, username, "account_inactive")
		return nil, apperrors.ErrAccountDisabled
	}

	if !a.users.CheckPassword(user, password) {
		a.fail(ctx, clientID, &user.ID, username, "invalid_password")
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := a.limiter.Reset(ctx, clientID, services.ActionLogin); err != nil {
		logger.Get().Errorw("failed to reset login rate limit", "error", err, "client", clientID)
	}
	return user, nil
}

func (a *Authenticator) fail(ctx context.Context, clientID string, userID *int64, username, reason string) {
	a.limiter.RecordAttempt(ctx, clientID, services.ActionLogin)
	a.audit.LogLoginAttempt(ctx, userID, username, false, map[string]any{"reason": reason})
}
