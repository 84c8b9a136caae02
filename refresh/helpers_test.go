package refresh

import (
	"io"
	"log/slog"
)

// mapSession is the minimal Session used throughout the package tests.
type mapSession map[string]any

func (m mapSession) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapSession) Set(key string, value any) {
	m[key] = value
}

func (m mapSession) Delete(key string) {
	delete(m, key)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AuthorizationEndpoint = "https://op.example.com/authorize"
	cfg.TokenEndpoint = "https://op.example.com/token"
	cfg.ClientID = "client-id"
	cfg.ClientSecret = "client-secret"
	cfg.PublicURL = "http://testserver"
	return cfg
}

func testResolver() *Resolver {
	r := NewResolver()
	r.Register("oidc-init", "/oidc/authenticate")
	r.Register("oidc-callback", "/oidc/callback")
	r.Register("oidc-logout", "/oidc/logout")
	return r
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authedSession returns a session for a logged-in user of the given backend.
func authedSession(backend string) mapSession {
	sess := mapSession{KeyUserID: "user-123"}
	if backend != "" {
		sess[KeyAuthBackend] = backend
	}
	return sess
}
