package refresh

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// RefreshURLHeader carries the authorization URL on structured 403 replies so
// client-side code can open it in a visible context.
const RefreshURLHeader = "Refresh-Url"

// SessionLoader resolves the session for a request and persists mutations
// after evaluation. Implementations live with the host's session backend.
type SessionLoader interface {
	Load(w http.ResponseWriter, r *http.Request) (Session, error)
	Save(w http.ResponseWriter, r *http.Request, sess Session) error
}

// Middleware adapts a Refresher into net/http middleware: it loads the
// session, evaluates the request, persists session mutations, and translates
// the outcome into a response or a pass-through.
func Middleware(ref Refresher, loader SessionLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := loader.Load(w, r)
			if err != nil {
				logger.Error("load session", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			outcome, err := ref.Check(r.Context(), FromHTTP(r, Authenticated(sess)), sess)
			if err != nil {
				if errors.Is(err, ErrMisconfigured) {
					logger.Error("session refresh misconfigured", "error", err)
				} else {
					logger.Error("session refresh failed", "error", err)
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			// Session mutations must land even when the request is being
			// redirected or denied: the bound state and cleared tokens are
			// what the callback and the next request rely on.
			if err := loader.Save(w, r, sess); err != nil {
				logger.Error("save session", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			switch outcome.Action {
			case ActionProceed:
				next.ServeHTTP(w, r)
			case ActionRedirect:
				http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
			case ActionChallenge:
				WriteChallenge(w, outcome.RedirectURL)
			case ActionDenied:
				logger.Info("session refresh denied request", "method", r.Method, "path", r.URL.Path, "reason", outcome.Reason)
				http.Error(w, outcome.Reason, http.StatusForbidden)
			default:
				logger.Error("unknown refresh outcome", "action", outcome.Action.String())
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		})
	}
}

// WriteChallenge writes the structured signal for background requests: 403,
// the refresh URL in a JSON body field, and the same URL in a header.
func WriteChallenge(w http.ResponseWriter, refreshURL string) {
	w.Header().Set(RefreshURLHeader, refreshURL)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"refresh_url": refreshURL})
}
