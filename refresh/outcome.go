// Package refresh keeps OIDC-authenticated sessions fresh. Per request it
// decides whether the session's tokens are still valid and, when they are
// not, either hands the browser off to the provider for a silent prompt=none
// re-authentication or exchanges the stored refresh token at the token
// endpoint. The verdict is returned as an Outcome the host interprets; the
// package never writes a response on its own except through the bundled
// net/http middleware.
package refresh

import "errors"

// ErrMisconfigured signals a deployment bug, such as a refresh attempt with
// no stored refresh token or a missing required setting. Hosts should surface
// it as an internal error, not as an access denial.
var ErrMisconfigured = errors.New("session refresh misconfigured")

// Action tells the host what to do with the request after evaluation.
type Action int

const (
	// ActionProceed lets the request continue unchanged.
	ActionProceed Action = iota
	// ActionRedirect sends the browser to RedirectURL (302).
	ActionRedirect
	// ActionChallenge answers a background request with a structured 403
	// carrying RedirectURL, since such requests cannot follow redirects.
	ActionChallenge
	// ActionDenied terminates the request with an access denial. The
	// session has already been logged out when this is returned.
	ActionDenied
)

func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionRedirect:
		return "redirect"
	case ActionChallenge:
		return "challenge"
	case ActionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Outcome is the verdict for one request.
type Outcome struct {
	Action      Action
	RedirectURL string
	Reason      string
}

// Proceed is the no-action outcome.
func Proceed() Outcome {
	return Outcome{Action: ActionProceed}
}

// Redirect sends a navigational request to the authorization endpoint.
func Redirect(url string) Outcome {
	return Outcome{Action: ActionRedirect, RedirectURL: url}
}

// Challenge signals a background request to re-authenticate out of band.
func Challenge(url string) Outcome {
	return Outcome{Action: ActionChallenge, RedirectURL: url}
}

// Denied rejects the request outright.
func Denied(reason string) Outcome {
	return Outcome{Action: ActionDenied, Reason: reason}
}
