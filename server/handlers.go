package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"oidcrefresh/refresh"
)

// handleAuthenticate starts an interactive login. An optional local "next"
// query parameter chooses where the callback lands afterwards.
func (a *App) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Loader.Load(w, r)
	if err != nil {
		a.Logger.Error("failed to load session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	req := refresh.FromHTTP(r, refresh.Authenticated(sess))
	req.FullPath = sanitizeNext(r.URL.Query().Get("next"))

	authURL, err := a.Reauth.LoginURL(req, sess)
	if err != nil {
		a.Logger.Error("failed to build authorization url", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := a.Loader.Save(w, r, sess); err != nil {
		a.Logger.Error("failed to save session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback completes the code flow. Silent handoffs that the provider
// could not answer come back here as error responses; those fall through to
// an interactive login so the user can re-establish the session themselves.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Loader.Load(w, r)
	if err != nil {
		a.Logger.Error("failed to load session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	if oidcErr := q.Get("error"); oidcErr != "" {
		a.Logger.Warn("authorization failed at the provider",
			"error", oidcErr, "description", q.Get("error_description"))
		next := sanitizeNext(stringSessionValue(sess, refresh.KeyLoginNext))
		refresh.Logout(sess)
		if err := a.Loader.Save(w, r, sess); err != nil {
			a.Logger.Error("failed to save session", "error", err)
		}
		http.Redirect(w, r, loginPath+"?next="+url.QueryEscape(next), http.StatusFound)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		http.Error(w, "code and state are required", http.StatusBadRequest)
		return
	}

	if err := a.Backend.Complete(r.Context(), sess, code, state); err != nil {
		a.Logger.Warn("login failed", "error", err)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	next := sanitizeNext(stringSessionValue(sess, refresh.KeyLoginNext))
	sess.Delete(refresh.KeyLoginNext)

	if err := a.Loader.Save(w, r, sess); err != nil {
		a.Logger.Error("failed to save session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, next, http.StatusFound)
}

// handleLogout drops the local session. Provider-side logout is the
// deployment's concern.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Loader.Load(w, r)
	if err != nil {
		a.Logger.Error("failed to load session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	refresh.Logout(sess)
	if err := a.Loader.Save(w, r, sess); err != nil {
		a.Logger.Error("failed to save session", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Loader.Load(w, r)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !refresh.Authenticated(sess) {
		fmt.Fprintf(w, "not logged in; visit %s\n", loginPath)
		return
	}
	fmt.Fprintf(w, "logged in as %s\n", stringSessionValue(sess, refresh.KeyUserID))
}

func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Loader.Load(w, r)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":    stringSessionValue(sess, refresh.KeyUserID),
		"backend": stringSessionValue(sess, refresh.KeyAuthBackend),
	})
}

func (a *App) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

// sanitizeNext keeps post-login redirects on this host. Anything that is not
// a plain local path collapses to the root.
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

func stringSessionValue(sess refresh.Session, key string) string {
	v, ok := sess.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
