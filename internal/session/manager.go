package session

import (
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/sakif/agromarket/internal/model"
)

// ErrNoSession is returned by Load when the request carries no usable session.
var ErrNoSession = errors.New("session: no session")

const payloadKey = "payload"

func init() {
	gob.Register(Payload{})
}

// Payload is everything the server remembers about a browser between requests.
//
// IsLoggedIn gates authenticated routes. IsAutoLogin marks a session that may
// be revived by /auth/autologin after the app was closed.
type Payload struct {
	UserID      string
	UserEmail   string
	Roles       []string
	IsLoggedIn  bool
	IsAutoLogin bool
	Cart        []model.CartItem
}

// Manager runs the session lifecycle over a Store.
type Manager struct {
	store *Store
	name  string
}

// NewManager creates a Manager for the cookie called name.
func NewManager(store *Store, name string) *Manager {
	return &Manager{store: store, name: name}
}

// Load returns the payload of the request's session.
func (m *Manager) Load(r *http.Request) (*Payload, error) {
	sess, err := m.store.Get(r, m.name)
	if err != nil || sess.IsNew {
		return nil, ErrNoSession
	}
	p, ok := sess.Values[payloadKey].(Payload)
	if !ok {
		return nil, ErrNoSession
	}
	return &p, nil
}

// Create stores p under a freshly minted id and returns that id.
// Any session the request already had is left in the backend untouched.
func (m *Manager) Create(w http.ResponseWriter, r *http.Request, p Payload) (string, error) {
	sess, err := m.current(r)
	if err != nil {
		return "", err
	}
	sess.ID = ""
	sess.IsNew = true
	return m.write(w, r, sess, p)
}

// Regenerate discards the request's previous session, if any, and creates a
// new one. It runs on every privilege change so a pre-login id can never be
// promoted into a logged-in one.
func (m *Manager) Regenerate(w http.ResponseWriter, r *http.Request, p Payload) (string, error) {
	sess, err := m.current(r)
	if err != nil {
		return "", err
	}
	if err := m.store.Delete(r.Context(), sess.ID); err != nil {
		return "", fmt.Errorf("session: discarding previous session: %w", err)
	}
	sess.ID = ""
	sess.IsNew = true
	return m.write(w, r, sess, p)
}

// Save persists p under the existing id and renews its expiry.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, p Payload) error {
	sess, err := m.current(r)
	if err != nil {
		return err
	}
	_, err = m.write(w, r, sess, p)
	return err
}

// Destroy deletes the session and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sess, err := m.current(r)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	sess.Values = map[interface{}]interface{}{}
	if err := sess.Save(r, w); err != nil {
		return err
	}
	sess.ID = ""
	sess.IsNew = true
	sess.Options.MaxAge = m.store.Options.MaxAge
	return nil
}

// current returns the registry session, ignoring a cookie that failed to
// decode: such a request is treated as anonymous.
func (m *Manager) current(r *http.Request) (*sessions.Session, error) {
	sess, err := m.store.Get(r, m.name)
	if sess == nil {
		return nil, fmt.Errorf("session: loading: %w", err)
	}
	return sess, nil
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, sess *sessions.Session, p Payload) (string, error) {
	sess.Values[payloadKey] = p
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	sess.IsNew = false
	return sess.ID, nil
}
