package middleware

import (
	"net/http"

	"trafficnotes/internal/auth"
	apperrors "trafficnotes/internal/errors"
	"trafficnotes/internal/logger"
	"trafficnotes/internal/reqctx"
)

// CSRF rejects unsafe requests whose csrf_token field (or X-CSRF-Token
// header) does not match the session token. onFail renders the rejection;
// nil writes a plain 403.
func CSRF(sessions *auth.SessionManager, onFail http.Handler) func(http.Handler) http.Handler {
	if onFail == nil {
		onFail = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, apperrors.ErrCSRF.Message, apperrors.ErrCSRF.StatusCode)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(auth.CSRFHeader)
			if token == "" {
				token = r.PostFormValue(auth.CSRFField)
			}
			if !sessions.ValidCSRF(r.Context(), token) {
				logger.Get().Warnw("csrf validation failed",
					"path", r.URL.Path,
					"client_ip", reqctx.ClientFrom(r.Context()).IP,
				)
				onFail.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
