package sessions

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oidcrefresh/refresh"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := store.Load(w, r)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	sess.Set(refresh.KeyUserID, "user-1")
	sess.Set(refresh.KeyIDTokenExpiration, int64(1_700_000_000))
	if err := store.Save(w, r, sess); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != CookieName {
		t.Fatalf("session cookie missing: %v", cookies)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	sess2, err := store.Load(httptest.NewRecorder(), r2)
	if err != nil {
		t.Fatalf("second Load returned error: %v", err)
	}
	if !refresh.Authenticated(sess2) {
		t.Fatalf("stored session lost the user")
	}
	if v, _ := sess2.Get(refresh.KeyIDTokenExpiration); int64(v.(float64)) != 1_700_000_000 {
		t.Fatalf("expiration lost: %v", v)
	}
}

func TestMemoryStoreUnknownCookieStartsFresh(t *testing.T) {
	store := NewMemoryStore(time.Hour, false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "no-such-session"})
	sess, err := store.Load(httptest.NewRecorder(), r)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if refresh.Authenticated(sess) {
		t.Fatalf("unknown cookie must produce an empty session")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute, false)
	current := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return current }

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, _ := store.Load(w, r)
	sess.Set(refresh.KeyUserID, "user-1")
	if err := store.Save(w, r, sess); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	cookie := w.Result().Cookies()[0]

	current = current.Add(2 * time.Minute)

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookie)
	sess2, err := store.Load(httptest.NewRecorder(), r2)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if refresh.Authenticated(sess2) {
		t.Fatalf("expired session should have been dropped")
	}
}

func TestMemoryStoreIsolatesStoredState(t *testing.T) {
	store := NewMemoryStore(time.Hour, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, _ := store.Load(w, r)
	sess.Set(refresh.KeyUserID, "user-1")
	refresh.BindState(sess, "state-1", "nonce-1", time.Now(), 10)
	if err := store.Save(w, r, sess); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	cookie := w.Result().Cookies()[0]

	// Mutating one request's view must not leak into another load.
	load := func() refreshSession {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		got, err := store.Load(httptest.NewRecorder(), req)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		return got
	}

	first := load()
	if _, ok := refresh.ConsumeState(first, "state-1"); !ok {
		t.Fatalf("state missing from first load")
	}

	second := load()
	if _, ok := refresh.ConsumeState(second, "state-1"); !ok {
		t.Fatalf("unsaved mutation leaked into the store")
	}
}
