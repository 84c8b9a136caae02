package sessions

import (
	"encoding/gob"
	"fmt"
	"net/http"

	gorilla "github.com/gorilla/sessions"

	"oidcrefresh/refresh"
)

func init() {
	// The cookie store serializes through encoding/gob; the state map is the
	// only non-primitive value the refresh package writes.
	gob.Register(map[string]refresh.StateEntry{})
	gob.Register(refresh.StateEntry{})
}

// CookieStore keeps the whole session in an authenticated encrypted cookie,
// so no server-side storage is needed. Session size is bounded by cookie
// limits; the refresh package's state-map cap keeps it within them.
type CookieStore struct {
	store *gorilla.CookieStore
}

// NewCookieStore builds the store from the given secret key pairs
// (authentication key, then optional encryption key, per gorilla/sessions).
func NewCookieStore(maxAge int, secure bool, keyPairs ...[]byte) *CookieStore {
	store := gorilla.NewCookieStore(keyPairs...)
	store.Options = &gorilla.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieStore{store: store}
}

// Load decodes the session cookie. Tampered or undecodable cookies start a
// fresh session rather than failing the request.
func (c *CookieStore) Load(_ http.ResponseWriter, r *http.Request) (refreshSession, error) {
	gs, err := c.store.Get(r, CookieName)
	if err != nil && gs == nil {
		return nil, fmt.Errorf("decode session cookie: %w", err)
	}
	return &cookieSession{gs: gs}, nil
}

// Save re-encodes the session into the response cookie.
func (c *CookieStore) Save(w http.ResponseWriter, r *http.Request, sess refreshSession) error {
	cs, ok := sess.(*cookieSession)
	if !ok {
		return fmt.Errorf("unexpected session type %T", sess)
	}
	if err := cs.gs.Save(r, w); err != nil {
		return fmt.Errorf("save session cookie: %w", err)
	}
	return nil
}

// cookieSession adapts gorilla's Values map to the refresh.Session view.
type cookieSession struct {
	gs *gorilla.Session
}

func (s *cookieSession) Get(key string) (any, bool) {
	v, ok := s.gs.Values[key]
	return v, ok
}

func (s *cookieSession) Set(key string, value any) {
	s.gs.Values[key] = value
}

func (s *cookieSession) Delete(key string) {
	delete(s.gs.Values, key)
}
