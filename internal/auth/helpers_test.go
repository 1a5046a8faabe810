package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trafficnotes/internal/database"
	"trafficnotes/internal/services"
	"trafficnotes/internal/testutil"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const testSessionName = "TEST_SESSION"

type testDeps struct {
	db       *database.DB
	audit    *services.AuditService
	limiter  *services.RateLimiter
	users    *UserService
	store    *Store
	backend  *SQLBackend
	csrf     *CSRF
	sessions *SessionManager
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	db := testutil.SetupTestDB(t)
	audit := services.NewAuditService(db)
	users := NewUserService(db, audit, BcryptHasher{Cost: bcrypt.MinCost})
	backend := NewSQLBackend(db)
	store := NewStore(backend, []byte("0123456789abcdef0123456789abcdef"))
	csrf := NewCSRF(time.Hour)

	return &testDeps{
		db:       db,
		audit:    audit,
		limiter:  services.NewRateLimiter(db, nil),
		users:    users,
		store:    store,
		backend:  backend,
		csrf:     csrf,
		sessions: NewSessionManager(store, users, audit, csrf, SessionConfig{Name: testSessionName, Timeout: time.Hour}),
	}
}

// do runs one request through the session middleware and returns the
// recorder. cookie may be nil.
func (d *testDeps) do(t *testing.T, cookie *http.Cookie, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	d.sessions.Middleware(h).ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == testSessionName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", testSessionName)
	return nil
}

func (d *testDeps) sessionID(t *testing.T, c *http.Cookie) string {
	t.Helper()
	var id string
	if err := securecookie.DecodeMulti(testSessionName, c.Value, &id, d.store.Codecs...); err != nil {
		t.Fatalf("failed to decode session cookie: %v", err)
	}
	return id
}
