// Package sessions provides session-store backends for the refresh package:
// an in-memory store for development and tests, a Redis store for multi-node
// deployments, and a cookie store that keeps all state client-side. Every
// backend hands the request a refresh.Session view and persists mutations
// when the middleware saves.
package sessions

import (
	"encoding/json"

	"oidcrefresh/refresh"
)

// refreshSession aliases the interface the stores implement loaders for.
type refreshSession = refresh.Session

// CookieName is the session-ID cookie all server-side stores use.
const CookieName = "oidc_session"

// Session is the request-scoped key/value view server-side stores hand out.
// It is not safe for concurrent use; one session belongs to one request.
type Session struct {
	id     string
	values map[string]any
	isNew  bool
}

func newSession(id string, values map[string]any, isNew bool) *Session {
	if values == nil {
		values = make(map[string]any)
	}
	return &Session{id: id, values: values, isNew: isNew}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key string, value any) {
	s.values[key] = value
}

func (s *Session) Delete(key string) {
	delete(s.values, key)
}

// cloneValues deep-copies session values through JSON so a stored session and
// a live request never share mutable state. Numeric values intentionally take
// their JSON representation; the refresh package reads them either way.
func cloneValues(values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		return make(map[string]any), nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
