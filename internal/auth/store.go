package auth

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trafficnotes/internal/logger"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

var ErrSessionNotFound = errors.New("session not found")

// Backend persists encoded session data under an opaque id.
type Backend interface {
	// Load returns ErrSessionNotFound for unknown or expired ids.
	Load(ctx context.Context, id string) (string, error)
	Save(ctx context.Context, id, data string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// Store is a gorilla sessions.Store that keeps values server side. The
// cookie only carries the signed session id.
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	backend Backend
	now     func() time.Time
}

var _ sessions.Store = (*Store)(nil)

// NewStore returns a store over backend. keyPairs are passed to
// securecookie.CodecsFromPairs.
func NewStore(backend Backend, keyPairs ...[]byte) *Store {
	s := &Store{
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:   "/",
			MaxAge: 86400 * 30,
		},
		backend: backend,
		now:     time.Now,
	}
	s.MaxAge(s.Options.MaxAge)
	return s
}

// MaxAge sets the cookie lifetime and the codecs' timestamp limit.
func (s *Store) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, codec := range s.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the session named by the request cookie, or a fresh one when
// the cookie is missing, forged or points at no stored data. The returned
// session is never nil.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := s.fresh(name)

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	if err := securecookie.DecodeMulti(name, c.Value, &session.ID, s.Codecs...); err != nil {
		session.ID = ""
		return session, err
	}
	if err := s.load(r.Context(), session); err != nil {
		session.ID = ""
		session.Values = make(map[interface{}]interface{})
		if errors.Is(err, ErrSessionNotFound) {
			return session, nil
		}
		return session, err
	}
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A non-positive MaxAge
// deletes the stored data and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge <= 0 {
		if session.ID != "" {
			if err := s.backend.Delete(r.Context(), session.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
	}

	data, err := securecookie.EncodeMulti(session.Name(), session.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	expiresAt := s.now().Add(time.Duration(session.Options.MaxAge) * time.Second)
	if err := s.backend.Save(r.Context(), session.ID, data, expiresAt); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Destroy deletes the stored data and detaches the session from its id, so
// the next Save issues a new one.
func (s *Store) Destroy(ctx context.Context, session *sessions.Session) error {
	id := session.ID
	session.ID = ""
	session.IsNew = true
	if id == "" {
		return nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		logger.Get().Errorw("failed to delete session", "error", err)
		return err
	}
	return nil
}

func (s *Store) fresh(name string) *sessions.Session {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true
	return session
}

func (s *Store) load(ctx context.Context, session *sessions.Session) error {
	data, err := s.backend.Load(ctx, session.ID)
	if err != nil {
		return err
	}
	if err := securecookie.DecodeMulti(session.Name(), data, &session.Values, s.Codecs...); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}
	return nil
}
