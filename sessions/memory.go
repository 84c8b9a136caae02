package sessions

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Suitable for development and
// tests; state is lost on restart and not shared across nodes.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry

	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type memoryEntry struct {
	values    map[string]any
	expiresAt time.Time
}

// NewMemoryStore constructs the store. Sessions idle longer than ttl are
// dropped on next access.
func NewMemoryStore(ttl time.Duration, secure bool) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]memoryEntry),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Load returns the request's session, creating a fresh one when the cookie is
// absent, unknown, or expired.
func (m *MemoryStore) Load(_ http.ResponseWriter, r *http.Request) (refreshSession, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return newSession(uuid.NewString(), nil, true), nil
	}

	m.mu.RLock()
	entry, ok := m.data[cookie.Value]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.expiresAt) {
		if ok {
			m.mu.Lock()
			delete(m.data, cookie.Value)
			m.mu.Unlock()
		}
		return newSession(uuid.NewString(), nil, true), nil
	}

	values, err := cloneValues(entry.values)
	if err != nil {
		return nil, fmt.Errorf("clone session values: %w", err)
	}
	return newSession(cookie.Value, values, false), nil
}

// Save persists the session and sets the cookie on first use. Sliding
// expiration: every save extends the session's lifetime.
func (m *MemoryStore) Save(w http.ResponseWriter, _ *http.Request, sess refreshSession) error {
	s, ok := sess.(*Session)
	if !ok {
		return fmt.Errorf("unexpected session type %T", sess)
	}

	values, err := cloneValues(s.values)
	if err != nil {
		return fmt.Errorf("clone session values: %w", err)
	}

	m.mu.Lock()
	m.data[s.id] = memoryEntry{values: values, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()

	if s.isNew {
		http.SetCookie(w, m.cookie(s.id))
		s.isNew = false
	}
	return nil
}

func (m *MemoryStore) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	}
}
