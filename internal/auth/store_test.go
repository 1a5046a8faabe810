package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	d := newTestDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := d.store.New(req, testSessionName)
	require.NoError(t, err)
	assert.True(t, sess.IsNew)

	sess.Values[SessionUserID] = int64(7)
	sess.Values[SessionUsername] = "officer1"
	rec := httptest.NewRecorder()
	require.NoError(t, d.store.Save(req, rec, sess))
	require.NotEmpty(t, sess.ID)

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, sess.ID, d.sessionID(t, cookie))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	loaded, err := d.store.New(next, testSessionName)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, int64(7), loaded.Values[SessionUserID])
	assert.Equal(t, "officer1", loaded.Values[SessionUsername])
}

func TestStoreRejectsForgedCookie(t *testing.T) {
	d := newTestDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testSessionName, Value: "forged"})

	sess, err := d.store.New(req, testSessionName)
	assert.Error(t, err)
	require.NotNil(t, sess)
	assert.True(t, sess.IsNew)
	assert.Empty(t, sess.ID)
}

func TestStoreUnknownIDStartsFresh(t *testing.T) {
	d := newTestDeps(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, _ := d.store.New(req, testSessionName)
	rec := httptest.NewRecorder()
	require.NoError(t, d.store.Save(req, rec, sess))
	cookie := sessionCookie(t, rec)

	require.NoError(t, d.backend.Delete(context.Background(), sess.ID))

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookie)
	fresh, err := d.store.New(next, testSessionName)
	require.NoError(t, err)
	assert.True(t, fresh.IsNew)
	assert.Empty(t, fresh.ID)
}

func TestStoreSaveWithNegativeMaxAgeDeletes(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, _ := d.store.New(req, testSessionName)
	require.NoError(t, d.store.Save(req, httptest.NewRecorder(), sess))
	id := sess.ID

	sess.Options.MaxAge = -1
	rec := httptest.NewRecorder()
	require.NoError(t, d.store.Save(req, rec, sess))

	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	_, err := d.backend.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLBackendExpiryAndCleanup(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d.backend.now = func() time.Time { return now }

	require.NoError(t, d.backend.Save(ctx, "short", "a", now.Add(time.Minute)))
	require.NoError(t, d.backend.Save(ctx, "long", "b", now.Add(time.Hour)))
	require.NoError(t, d.backend.Save(ctx, "long", "c", now.Add(time.Hour)))

	data, err := d.backend.Load(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "c", data, "save overwrites")

	now = now.Add(2 * time.Minute)
	_, err = d.backend.Load(ctx, "short")
	assert.ErrorIs(t, err, ErrSessionNotFound, "expired rows are invisible")

	removed, err := d.backend.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestRedisBackend(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	rdb, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	b := NewRedisBackend(rdb)
	id := "test-" + time.Now().Format("150405.000000000")
	t.Cleanup(func() { _ = b.Delete(ctx, id) })

	require.NoError(t, b.Save(ctx, id, "payload", time.Now().Add(time.Minute)))
	data, err := b.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "payload", data)

	ttl, err := rdb.TTL(ctx, sessionKey(id)).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)

	require.NoError(t, b.Delete(ctx, id))
	_, err = b.Load(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
