package handlers

import (
	"bytes"
	"net/http"

	"trafficnotes/internal/auth"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
)

// pages renders full pages with the data every layout needs.
type pages struct {
	templates TemplateExecutor
	sessions  *auth.SessionManager
}

// data returns the common page fields: title, active nav entry, session
// user, CSRF token and any pending flash message.
func (p pages) data(r *http.Request, title, active string) map[string]interface{} {
	return map[string]interface{}{
		"Title":      title,
		"ActivePage": active,
		"User":       p.sessions.User(r.Context()),
		"CSRFToken":  p.sessions.CSRFToken(r.Context()),
		"Flash":      p.sessions.PopFlash(r.Context()),
	}
}

// render executes name into a buffer so template failures still produce a
// clean 500.
func (p pages) render(w http.ResponseWriter, status int, name string, data map[string]interface{}) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Get().Errorw("template error", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// renderError shows err on the error page. Internal causes are logged, never
// rendered.
func (p pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	if appErr.Internal != nil {
		logger.Get().Errorw("request failed",
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
			"path", r.URL.Path,
			"method", r.Method,
		)
	}

	data := p.data(r, "Error", "")
	data["Errors"] = appErr.Messages()
	data["Status"] = appErr.StatusCode
	p.render(w, appErr.StatusCode, "error.html", data)
}

// Forbidden renders the 403 page used by the role gates.
func (p pages) Forbidden(w http.ResponseWriter, r *http.Request) {
	p.renderError(w, r, apperrors.ErrForbidden)
}

// CSRFFailed renders the rejection for a missing or stale CSRF token.
func (p pages) CSRFFailed(w http.ResponseWriter, r *http.Request) {
	p.renderError(w, r, apperrors.ErrCSRF)
}

// redirect answers a successful form post with 303 See Other.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// errorMessages returns what to show for err inside a form and the status
// to answer with. Internal errors are logged and replaced by the generic text.
func errorMessages(r *http.Request, err error) ([]string, int) {
	appErr := apperrors.From(err)
	if appErr.Internal != nil {
		logger.Get().Errorw("request failed",
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
			"path", r.URL.Path,
		)
	}
	return appErr.Messages(), appErr.StatusCode
}
