package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/gorilla/sessions"
)

const (
	CSRFField  = "csrf_token"
	CSRFHeader = "X-CSRF-Token"

	sessionKeyCSRF     = "csrf_token"
	sessionKeyCSRFTime = "csrf_token_time"
)

// CSRF issues one token per session and checks submitted copies of it.
type CSRF struct {
	expiry time.Duration
	now    func() time.Time
}

func NewCSRF(expiry time.Duration) *CSRF {
	return &CSRF{expiry: expiry, now: time.Now}
}

// Token returns the session's token, issuing a new one when it is missing
// or expired.
func (c *CSRF) Token(s *sessions.Session) string {
	token, _ := s.Values[sessionKeyCSRF].(string)
	if token == "" || c.expired(s) {
		return c.Rotate(s)
	}
	return token
}

// Rotate replaces the session's token.
func (c *CSRF) Rotate(s *sessions.Session) string {
	token := generateToken()
	s.Values[sessionKeyCSRF] = token
	s.Values[sessionKeyCSRFTime] = c.now().Unix()
	return token
}

// Validate reports whether submitted equals the session's unexpired token.
func (c *CSRF) Validate(s *sessions.Session, submitted string) bool {
	expected, _ := s.Values[sessionKeyCSRF].(string)
	if expected == "" || submitted == "" || c.expired(s) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}

func (c *CSRF) expired(s *sessions.Session) bool {
	issued, ok := s.Values[sessionKeyCSRFTime].(int64)
	if !ok {
		return true
	}
	return c.now().Unix()-issued > int64(c.expiry/time.Second)
}

func generateToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
