// Package session keeps server-side login sessions.
//
// The browser only ever holds an opaque, signed session id in a cookie. The
// session values live in a Backend (sqlite or redis) keyed by that id, so a
// session can be revoked server-side and survives process restarts.
//
// Store implements gorilla's sessions.Store; Manager layers the login
// lifecycle (create, regenerate, load, save, destroy) on top of it.
package session

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// ErrNotFound is returned by a Backend for an unknown or expired id.
var ErrNotFound = errors.New("session: not found")

// Backend persists encoded session values keyed by session id.
//
// Get must treat an expired row as missing. Put overwrites any previous value
// under the same id; the last writer wins.
type Backend interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// Store is a sessions.Store whose values live in a Backend.
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options
	backend Backend
}

// NewStore creates a Store. keyPairs are passed to securecookie.CodecsFromPairs:
// a hash key, optionally followed by an encryption key, repeated for rotation.
func NewStore(backend Backend, opts sessions.Options, keyPairs ...[]byte) *Store {
	s := &Store{
		Codecs:  securecookie.CodecsFromPairs(keyPairs...),
		Options: &opts,
		backend: backend,
	}
	s.MaxAge(opts.MaxAge)
	return s
}

// MaxAge sets the lifetime of the cookie and of the codec timestamps.
// Stored values can be larger than a cookie, so the length cap is lifted.
func (s *Store) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, c := range s.Codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
			sc.MaxLength(0)
		}
	}
}

// Get returns the session cached in the request registry, loading it once.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the session named by the request cookie, or a fresh one.
//
// A cookie that fails to decode or points at a missing row yields a new,
// empty session; the decode error is returned alongside it like gorilla's
// own stores do.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &sess.ID, s.Codecs...); err != nil {
		sess.ID = ""
		return sess, err
	}
	if err := s.load(r.Context(), sess); err != nil {
		sess.ID = ""
		if errors.Is(err, ErrNotFound) {
			return sess, nil
		}
		return sess, err
	}
	sess.IsNew = false
	return sess, nil
}

// Save writes the session values to the backend and the id cookie to w.
// A negative MaxAge deletes the row and expires the cookie.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.backend.Delete(r.Context(), sess.ID); err != nil {
				return fmt.Errorf("session: deleting %s: %w", sess.ID, err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = newID()
	}
	data, err := securecookie.EncodeMulti(sess.Name(), sess.Values, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session: encoding values: %w", err)
	}
	expiresAt := time.Now().Add(time.Duration(sess.Options.MaxAge) * time.Second)
	if err := s.backend.Put(r.Context(), sess.ID, []byte(data), expiresAt); err != nil {
		return fmt.Errorf("session: storing %s: %w", sess.ID, err)
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session: encoding id: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

// Delete removes a stored session by id without touching any cookie.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.backend.Delete(ctx, id)
}

func (s *Store) load(ctx context.Context, sess *sessions.Session) error {
	data, err := s.backend.Get(ctx, sess.ID)
	if err != nil {
		return err
	}
	return securecookie.DecodeMulti(sess.Name(), string(data), &sess.Values, s.Codecs...)
}

func newID() string {
	return strings.TrimRight(
		base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}
