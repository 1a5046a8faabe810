package middleware

import (
	"net"
	"net/http"

	"trafficnotes/internal/reqctx"
)

// ClientInfo stores the caller's IP and user agent in the request context.
// When proxy headers are trusted, run it after chi's RealIP.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.UserAgent()
		if ua == "" {
			ua = "Unknown"
		}
		ctx := reqctx.WithClient(r.Context(), reqctx.Client{IP: clientIP(r), UserAgent: ua})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String()
	}
	return "0.0.0.0"
}
