package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Refresher evaluates one request against the session freshness policy.
// Implementations must be safe for concurrent use across requests; the only
// state they mutate is the session they are handed.
type Refresher interface {
	Check(ctx context.Context, req Request, sess Session) (Outcome, error)
}

// RedirectOnlyRefresher re-authenticates stale sessions exclusively through
// silent prompt=none handoffs. It never contacts the token endpoint and only
// examines safe (GET) requests, since every action it takes is a redirect.
type RedirectOnlyRefresher struct {
	eligibility *Eligibility
	reauth      *SilentReauthenticator
	logger      *slog.Logger
	now         func() time.Time
}

// NewRedirectOnlyRefresher assembles the redirect-only variant from its
// parts. The same reauthenticator may be shared with a token-exchange
// refresher.
func NewRedirectOnlyRefresher(eligibility *Eligibility, reauth *SilentReauthenticator, logger *slog.Logger) *RedirectOnlyRefresher {
	return &RedirectOnlyRefresher{
		eligibility: eligibility,
		reauth:      reauth,
		logger:      logger,
		now:         time.Now,
	}
}

// Check gates the request through eligibility and freshness, then hands
// expired sessions to the silent reauthenticator.
func (m *RedirectOnlyRefresher) Check(_ context.Context, req Request, sess Session) (Outcome, error) {
	ok, err := m.eligibility.Refreshable(req, sess, true)
	if err != nil {
		return Proceed(), err
	}
	if !ok {
		m.logger.Debug("request is not refreshable", "method", req.Method, "path", req.Path)
		return Proceed(), nil
	}

	now := m.now()
	if !Expired(sess, now) {
		m.logger.Debug("id token is still valid", "expiration", intValue(sess, KeyIDTokenExpiration), "now", now.Unix())
		return Proceed(), nil
	}

	m.logger.Debug("id token has expired", "path", req.Path)
	return m.reauth.Challenge(req, sess)
}
