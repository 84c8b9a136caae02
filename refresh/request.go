package refresh

import (
	"net/http"
	"strings"
)

// Request is the snapshot of an incoming request the refreshers evaluate.
// Building it once per request keeps the decision independent from later
// mutations of the underlying *http.Request.
type Request struct {
	Method string
	Path   string

	// FullPath is the path including the raw query string, stashed in the
	// session so the callback can return the user to their destination.
	FullPath string

	// Authenticated mirrors the host's logged-in flag for this request.
	Authenticated bool

	// Background marks XHR-style data requests that cannot usefully follow
	// a redirect and get a structured 403 signal instead.
	Background bool
}

// FromHTTP builds a Request snapshot from an *http.Request.
func FromHTTP(r *http.Request, authenticated bool) Request {
	full := r.URL.Path
	if r.URL.RawQuery != "" {
		full += "?" + r.URL.RawQuery
	}
	return Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		FullPath:      full,
		Authenticated: authenticated,
		Background:    IsBackground(r),
	}
}

// IsBackground reports whether the request identifies itself as an
// asynchronous data request.
func IsBackground(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}
