package refresh

import (
	"encoding/json"
	"time"
)

// Session keys shared between the refreshers and the authentication backend.
const (
	KeyUserID            = "user_id"
	KeyAuthBackend       = "auth_backend"
	KeyIDTokenExpiration = "oidc_id_token_expiration"
	KeyIDToken           = "oidc_id_token"
	KeyAccessToken       = "oidc_access_token"
	KeyRefreshToken      = "oidc_refresh_token"
	KeyLoginNext         = "oidc_login_next"
	KeyStates            = "oidc_states"
)

// Session is the mutable key/value view over one browser session. Values are
// persisted by the host's session backend after the request completes.
// Implementations need not be safe for concurrent use; a session belongs to
// exactly one in-flight request.
type Session interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Authenticated reports whether the session carries a logged-in user.
func Authenticated(sess Session) bool {
	return stringValue(sess, KeyUserID) != ""
}

// Logout clears every key this package and the authentication backend write,
// turning the session back into an anonymous one.
func Logout(sess Session) {
	for _, key := range []string{
		KeyUserID,
		KeyAuthBackend,
		KeyIDTokenExpiration,
		KeyIDToken,
		KeyAccessToken,
		KeyRefreshToken,
		KeyLoginNext,
		KeyStates,
	} {
		sess.Delete(key)
	}
}

// LogoutFunc invalidates the current login. The default implementation is
// Logout; hosts with additional authentication state can substitute their own.
type LogoutFunc func(Session)

// StateEntry records one in-flight authorization attempt, keyed by its state
// value so concurrent attempts across tabs do not collide.
type StateEntry struct {
	Nonce   string `json:"nonce"`
	AddedAt int64  `json:"added_at"`
}

// BindState associates a freshly generated state (and nonce, if any) with the
// session. The state map is capped at max entries; the oldest attempts are
// evicted first so an abandoned tab cannot grow the session without bound.
func BindState(sess Session, state, nonce string, now time.Time, max int) {
	states := States(sess)
	if states == nil {
		states = make(map[string]StateEntry)
	}
	states[state] = StateEntry{Nonce: nonce, AddedAt: now.UnixNano()}
	for max > 0 && len(states) > max {
		oldest := ""
		var oldestAt int64
		for s, entry := range states {
			if oldest == "" || entry.AddedAt < oldestAt {
				oldest = s
				oldestAt = entry.AddedAt
			}
		}
		delete(states, oldest)
	}
	sess.Set(KeyStates, states)
}

// ConsumeState validates a returning state against the session and removes it.
// Each state is single-use; a second lookup fails.
func ConsumeState(sess Session, state string) (StateEntry, bool) {
	states := States(sess)
	entry, ok := states[state]
	if !ok {
		return StateEntry{}, false
	}
	delete(states, state)
	sess.Set(KeyStates, states)
	return entry, true
}

// States returns the in-flight attempt map. Session backends that serialize
// through JSON hand the map back as generic values, so decode defensively.
func States(sess Session) map[string]StateEntry {
	v, ok := sess.Get(KeyStates)
	if !ok {
		return nil
	}
	if states, ok := v.(map[string]StateEntry); ok {
		return states
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var states map[string]StateEntry
	if err := json.Unmarshal(raw, &states); err != nil {
		return nil
	}
	return states
}

// intValue reads a numeric session value, tolerating the integer and float
// representations different session backends round-trip through.
func intValue(sess Session, key string) int64 {
	v, ok := sess.Get(key)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func stringValue(sess Session, key string) string {
	v, ok := sess.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
