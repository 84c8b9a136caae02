package refresh

import (
	"net/http"
	"sync"
)

// Eligibility decides whether refresh logic applies to a request at all.
// The exempt path set is computed once on first use and immutable afterwards,
// so the check is a pure predicate shared across concurrent requests.
type Eligibility struct {
	cfg      Config
	resolver *Resolver

	once      sync.Once
	exempt    map[string]struct{}
	exemptErr error
}

// NewEligibility builds the filter. The resolver must have every route name
// referenced by the configuration registered before the first request.
func NewEligibility(cfg Config, resolver *Resolver) *Eligibility {
	return &Eligibility{cfg: cfg.withDefaults(), resolver: resolver}
}

// Refreshable reports whether the request should be examined for refresh.
// With getOnly set, only safe (GET) requests qualify.
func (e *Eligibility) Refreshable(req Request, sess Session, getOnly bool) (bool, error) {
	if getOnly && req.Method != http.MethodGet {
		return false, nil
	}
	if !req.Authenticated {
		return false, nil
	}
	if !e.backendEligible(sess) {
		return false, nil
	}
	exempt, err := e.exemptPaths()
	if err != nil {
		return false, err
	}
	if _, skip := exempt[req.Path]; skip {
		return false, nil
	}
	return true, nil
}

// backendEligible checks the capability tag recorded at login. Sessions
// authenticated by a non-OIDC backend are never touched. Sessions without a
// tag predate tagging and follow the configured fail-open policy.
func (e *Eligibility) backendEligible(sess Session) bool {
	tag := stringValue(sess, KeyAuthBackend)
	if tag == "" {
		return e.cfg.FailOpenUnknownBackend
	}
	for _, backend := range e.cfg.OIDCBackends {
		if backend == tag {
			return true
		}
	}
	return false
}

// exemptPaths resolves the configured exempt list plus the three fixed
// authentication routes, once per process.
func (e *Eligibility) exemptPaths() (map[string]struct{}, error) {
	e.once.Do(func() {
		values := make([]string, 0, len(e.cfg.ExemptURLs)+3)
		values = append(values, e.cfg.ExemptURLs...)
		for _, name := range []string{e.cfg.LoginURLName, e.cfg.CallbackURLName, e.cfg.LogoutURLName} {
			if name != "" {
				values = append(values, name)
			}
		}

		set := make(map[string]struct{}, len(values))
		for _, value := range values {
			path, err := e.resolver.resolve(value)
			if err != nil {
				e.exemptErr = err
				return
			}
			set[path] = struct{}{}
		}
		e.exempt = set
	})
	return e.exempt, e.exemptErr
}
