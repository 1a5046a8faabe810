package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"trafficnotes/internal/auth"
	"trafficnotes/internal/database"
	"trafficnotes/internal/services"
	"trafficnotes/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// jsonTemplates renders {"template": name, "data": data} so tests can
// inspect what a page would have shown.
type jsonTemplates struct{}

func (jsonTemplates) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	return json.NewEncoder(w).Encode(map[string]interface{}{"template": name, "data": data})
}

type page struct {
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

type response struct {
	Status   int
	Location string
	Header   http.Header
	Body     []byte
	Page     page
}

func (p page) errors() []string {
	raw, _ := p.Data["Errors"].([]interface{})
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		out = append(out, e.(string))
	}
	return out
}

type testApp struct {
	db     *database.DB
	server *httptest.Server
	client *http.Client
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWith(t, nil)
}

// newTestAppWith lets a test adjust the router dependencies before the
// server starts.
func newTestAppWith(t *testing.T, configure func(*Deps)) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	audit := services.NewAuditService(db)
	users := auth.NewUserService(db, audit, auth.BcryptHasher{Cost: bcrypt.MinCost})
	limiter := services.NewRateLimiter(db, nil)
	store := auth.NewStore(auth.NewSQLBackend(db), []byte("0123456789abcdef0123456789abcdef"))
	sessions := auth.NewSessionManager(store, users, audit, auth.NewCSRF(time.Hour),
		auth.SessionConfig{Name: "TEST_SESSION", Timeout: time.Hour})
	violations := services.NewViolationService(db, audit)

	deps := Deps{
		DB:            db,
		Templates:     jsonTemplates{},
		Sessions:      sessions,
		Users:         users,
		Authenticator: auth.NewAuthenticator(users, limiter, audit, auth.LoginPolicy{MaxAttempts: 5, Window: 15 * time.Minute}),
		Audit:         audit,
		Violations:    violations,
		Reports:       services.NewReportService(violations),
	}
	if configure != nil {
		configure(&deps)
	}

	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)

	return &testApp{db: db, server: server, client: newClient(t)}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) do(t *testing.T, req *http.Request) response {
	t.Helper()

	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{
		Status:   resp.StatusCode,
		Location: resp.Header.Get("Location"),
		Header:   resp.Header,
		Body:     body,
	}
	if bytes.HasPrefix(body, []byte(`{"data"`)) || bytes.HasPrefix(body, []byte(`{"template"`)) {
		require.NoError(t, json.Unmarshal(body, &out.Page))
	}
	return out
}

func (a *testApp) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	return a.do(t, req)
}

// post submits form with the CSRF token currently shown on tokenPage.
func (a *testApp) post(t *testing.T, path, tokenPage string, form url.Values) response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(auth.CSRFField, a.csrfToken(t, tokenPage))
	return a.postRaw(t, path, form)
}

func (a *testApp) postRaw(t *testing.T, path string, form url.Values) response {
	t.Helper()
	return a.postWithHeader(t, path, form, nil)
}

func (a *testApp) postWithHeader(t *testing.T, path string, form url.Values, header http.Header) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req)
}

func (a *testApp) csrfToken(t *testing.T, path string) string {
	t.Helper()
	res := a.get(t, path)
	require.Equal(t, http.StatusOK, res.Status, "token page %s", path)
	token, _ := res.Page.Data["CSRFToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func (a *testApp) login(t *testing.T, username, password string) response {
	t.Helper()
	return a.post(t, "/login", "/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

// loginForwarded logs in with X-Forwarded-For set to forwardedFor.
func (a *testApp) loginForwarded(t *testing.T, username, password, forwardedFor string) response {
	t.Helper()
	form := url.Values{
		"username":     {username},
		"password":     {password},
		auth.CSRFField: {a.csrfToken(t, "/login")},
	}
	return a.postWithHeader(t, "/login", form, http.Header{"X-Forwarded-For": {forwardedFor}})
}

func (a *testApp) sessionCookie(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(a.server.URL)
	require.NoError(t, err)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == "TEST_SESSION" {
			return c.Value
		}
	}
	return ""
}
