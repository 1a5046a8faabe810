package services

import (
	"context"
	"testing"
	"time"

	"trafficnotes/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func TestRateLimiterLimitsAfterMaxAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := newClock()
	limiter := NewRateLimiter(db, clock.Now)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)
		clock.Advance(time.Second)
	}
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, 15*time.Minute))
	assert.Equal(t, 1, limiter.Remaining(ctx, "10.0.0.1", ActionLogin, 5, 15*time.Minute))

	limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)
	assert.True(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, 15*time.Minute))
	assert.Equal(t, 0, limiter.Remaining(ctx, "10.0.0.1", ActionLogin, 5, 15*time.Minute))

	// Other clients and actions are independent.
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.2", ActionLogin, 5, 15*time.Minute))
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", "register", 5, 15*time.Minute))
}

func TestRateLimiterReset(t *testing.T) {
	db := testutil.SetupTestDB(t)
	limiter := NewRateLimiter(db, newClock().Now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)
		limiter.RecordAttempt(ctx, "10.0.0.1", "register")
	}
	require.True(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, time.Minute))

	require.NoError(t, limiter.Reset(ctx, "10.0.0.1", ActionLogin))
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, time.Minute))
	assert.True(t, limiter.IsLimited(ctx, "10.0.0.1", "register", 5, time.Minute))

	require.NoError(t, limiter.Reset(ctx, "10.0.0.1", ""))
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", "register", 5, time.Minute))
	assert.Equal(t, 5, limiter.Remaining(ctx, "10.0.0.1", "register", 5, time.Minute))
}

func TestRateLimiterWindowBoundary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := newClock()
	limiter := NewRateLimiter(db, clock.Now)
	ctx := context.Background()
	window := 15 * time.Minute

	for i := 0; i < 5; i++ {
		limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)
	}

	clock.Advance(window - time.Second)
	assert.True(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, window), "still inside the window")

	clock.Advance(time.Second)
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, window), "exactly at T+window the attempt no longer counts")

	clock.Advance(time.Hour)
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, window))
}

func TestRateLimiterRecordDoesNotEnforceWindow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := newClock()
	limiter := NewRateLimiter(db, clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)
	}
	clock.Advance(2 * time.Hour)
	limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)

	entry, err := limiter.Get(ctx, "10.0.0.1", ActionLogin)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 4, entry.AttemptCount, "stale counters keep growing until cleanup or reset")
	assert.True(t, entry.LastAttemptAt.Equal(clock.Now()))
}

func TestRateLimiterCleanup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := newClock()
	limiter := NewRateLimiter(db, clock.Now)
	ctx := context.Background()

	limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin)
	clock.Advance(2 * time.Hour)
	limiter.RecordAttempt(ctx, "10.0.0.2", ActionLogin)

	removed, err := limiter.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	old, err := limiter.Get(ctx, "10.0.0.1", ActionLogin)
	require.NoError(t, err)
	assert.Nil(t, old)

	recent, err := limiter.Get(ctx, "10.0.0.2", ActionLogin)
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, 1, recent.AttemptCount)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	db := testutil.SetupTestDB(t)
	limiter := NewRateLimiter(db, nil)
	ctx := context.Background()

	_, err := db.Exec("DROP TABLE rate_limits")
	require.NoError(t, err)

	assert.NotPanics(t, func() { limiter.RecordAttempt(ctx, "10.0.0.1", ActionLogin) })
	assert.False(t, limiter.IsLimited(ctx, "10.0.0.1", ActionLogin, 5, time.Minute))
	assert.Equal(t, 5, limiter.Remaining(ctx, "10.0.0.1", ActionLogin, 5, time.Minute))
}
