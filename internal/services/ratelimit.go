package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trafficnotes/internal/database"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/models"
)

const ActionLogin = "login"

// RateLimiter keeps one attempt counter per (client, action) in the
// rate_limits table. Writes never check the window; readers decide whether a
// row is stale by comparing last_attempt_at with now. Storage failures fail
// open.
type RateLimiter struct {
	db  *database.DB
	now func() time.Time
}

// NewRateLimiter creates a limiter. A nil clock uses time.Now.
func NewRateLimiter(db *database.DB, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{db: db, now: now}
}

// IsLimited reports whether clientID has at least maxAttempts attempts for
// action whose latest attempt falls inside window.
func (l *RateLimiter) IsLimited(ctx context.Context, clientID, action string, maxAttempts int, window time.Duration) bool {
	count, err := l.count(ctx, clientID, action, window)
	if err != nil {
		logger.Get().Errorw("rate limit check failed", "error", err, "client", clientID, "action", action)
		return false
	}
	return count >= maxAttempts
}

// Remaining returns max(0, maxAttempts - count) for an in-window counter.
func (l *RateLimiter) Remaining(ctx context.Context, clientID, action string, maxAttempts int, window time.Duration) int {
	count, err := l.count(ctx, clientID, action, window)
	if err != nil {
		logger.Get().Errorw("rate limit lookup failed", "error", err, "client", clientID, "action", action)
		return maxAttempts
	}
	return max(0, maxAttempts-count)
}

// RecordAttempt creates the counter at 1 or increments it, refreshing
// last_attempt_at either way.
func (l *RateLimiter) RecordAttempt(ctx context.Context, clientID, action string) {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO rate_limits (ip_address, action, attempt_count, last_attempt_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT (ip_address, action) DO UPDATE SET
		     attempt_count = rate_limits.attempt_count + 1,
		     last_attempt_at = excluded.last_attempt_at`,
		clientID, action, l.now().UTC(),
	)
	if err != nil {
		logger.Get().Errorw("failed to record rate limit attempt", "error", err, "client", clientID, "action", action)
	}
}

// Reset removes the counter for (clientID, action), or every counter of
// clientID when action is empty.
func (l *RateLimiter) Reset(ctx context.Context, clientID, action string) error {
	var err error
	if action != "" {
		_, err = l.db.ExecContext(ctx, "DELETE FROM rate_limits WHERE ip_address = ? AND action = ?", clientID, action)
	} else {
		_, err = l.db.ExecContext(ctx, "DELETE FROM rate_limits WHERE ip_address = ?", clientID)
	}
	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}

// Cleanup deletes counters idle for longer than retention.
func (l *RateLimiter) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM rate_limits WHERE last_attempt_at < ?",
		l.now().Add(-retention).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limits: %w", err)
	}
	return result.RowsAffected()
}

// Get returns the raw counter row regardless of its age.
func (l *RateLimiter) Get(ctx context.Context, clientID, action string) (*models.RateLimitEntry, error) {
	var entry models.RateLimitEntry
	err := l.db.QueryRowContext(ctx,
		"SELECT ip_address, action, attempt_count, last_attempt_at FROM rate_limits WHERE ip_address = ? AND action = ?",
		clientID, action,
	).Scan(&entry.IPAddress, &entry.Action, &entry.AttemptCount, &entry.LastAttemptAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rate limit: %w", err)
	}
	return &entry, nil
}

func (l *RateLimiter) count(ctx context.Context, clientID, action string, window time.Duration) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT attempt_count FROM rate_limits WHERE ip_address = ? AND action = ? AND last_attempt_at > ?",
		clientID, action, l.now().Add(-window).UTC(),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
