package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxTokenResponseSize bounds how much of a token-endpoint reply is read.
const maxTokenResponseSize = 1 << 20

// tokenResponse is the subset of the token-endpoint reply the refresher
// stores. The provider may rotate the refresh token or omit it.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenExchangeRefresher renews stale sessions with a refresh_token grant at
// the token endpoint, avoiding the redirect round-trip. It applies to all
// HTTP methods; when the refresh token itself is spent it falls back to the
// silent reauthenticator (GET only, opt-in) or logs the session out.
type TokenExchangeRefresher struct {
	cfg         Config
	eligibility *Eligibility
	reauth      *SilentReauthenticator
	store       TokenStore
	logout      LogoutFunc
	client      *http.Client
	limiter     *rate.Limiter
	coordinator *coordinator
	logger      *slog.Logger
	now         func() time.Time
}

// NewTokenExchangeRefresher assembles the exchange variant. The silent
// reauthenticator is composed in as the fallback strategy, nil store and
// logout select the standard implementations, and a nil client gets one with
// the configured token timeout.
func NewTokenExchangeRefresher(cfg Config, eligibility *Eligibility, reauth *SilentReauthenticator, store TokenStore, logout LogoutFunc, client *http.Client, logger *slog.Logger) *TokenExchangeRefresher {
	cfg = cfg.withDefaults()
	if store == nil {
		store = StandardTokenStore{IDTokenExpirySeconds: cfg.IDTokenExpirySeconds}
	}
	if logout == nil {
		logout = Logout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.TokenTimeout}
	}

	m := &TokenExchangeRefresher{
		cfg:         cfg,
		eligibility: eligibility,
		reauth:      reauth,
		store:       store,
		logout:      logout,
		client:      client,
		logger:      logger,
		now:         time.Now,
	}
	if cfg.TokenRequestsPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(cfg.TokenRequestsPerSecond), 1)
	}
	if cfg.CoordinateRefreshes {
		m.coordinator = newCoordinator()
	}
	return m
}

// Check runs the full decision sequence for one request. A successful
// exchange mutates the session with the new token set and proceeds; every
// provider rejection folds into the expiry policy instead of surfacing.
func (m *TokenExchangeRefresher) Check(ctx context.Context, req Request, sess Session) (Outcome, error) {
	ok, err := m.eligibility.Refreshable(req, sess, false)
	if err != nil {
		return Proceed(), err
	}
	if !ok {
		m.logger.Debug("request is not refreshable", "method", req.Method, "path", req.Path)
		return Proceed(), nil
	}

	now := m.now()
	if !Expired(sess, now) {
		return Proceed(), nil
	}

	if m.refreshTokenExpired(sess, now) {
		return m.handleRefreshTokenExpired(req, sess)
	}

	refreshToken := stringValue(sess, KeyRefreshToken)
	if refreshToken == "" {
		m.logger.Debug("no refresh token stored")
		return Proceed(), fmt.Errorf("%w: refresh token missing", ErrMisconfigured)
	}

	resp, err := m.exchangeOnce(ctx, refreshToken)
	if err != nil {
		m.logger.Info("error renewing refresh token", "error", err)
		return m.handleRefreshTokenExpired(req, sess)
	}

	m.store.StoreExpirationTimes(sess, resp.IDToken, now)
	m.store.StoreTokens(sess, resp.AccessToken, resp.IDToken, resp.RefreshToken)
	return Proceed(), nil
}

// refreshTokenExpired applies the configured expiry window. With no window
// the refresh token never expires on our side; only the provider decides.
func (m *TokenExchangeRefresher) refreshTokenExpired(sess Session, now time.Time) bool {
	window := m.cfg.RefreshTokenExpirySeconds
	if window == 0 {
		return false
	}
	deadline := intValue(sess, KeyIDTokenExpiration) - m.cfg.IDTokenExpirySeconds + window
	if deadline > now.Unix() {
		m.logger.Debug("refresh token is still valid", "deadline", deadline, "now", now.Unix())
		return false
	}
	return true
}

// handleRefreshTokenExpired is the shared rejection-or-expiry branch. A GET
// request may fall back to a silent handoff when the deployment opted in;
// anything else cannot be salvaged with a redirect, so the session is
// terminated and the request denied.
func (m *TokenExchangeRefresher) handleRefreshTokenExpired(req Request, sess Session) (Outcome, error) {
	if m.cfg.RenewRefreshToken && req.Method == http.MethodGet {
		return m.reauth.Challenge(req, sess)
	}
	m.logout(sess)
	return Denied("refresh token expired, interactive login required"), nil
}

// exchangeOnce performs a single refresh_token grant, deduplicated per token
// when coordination is enabled. No retries: the next request re-evaluates
// freshness from scratch.
func (m *TokenExchangeRefresher) exchangeOnce(ctx context.Context, refreshToken string) (tokenResponse, error) {
	if m.coordinator != nil {
		return m.coordinator.do(refreshToken, func() (tokenResponse, error) {
			return m.exchange(ctx, refreshToken)
		})
	}
	return m.exchange(ctx, refreshToken)
}

func (m *TokenExchangeRefresher) exchange(ctx context.Context, refreshToken string) (tokenResponse, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return tokenResponse{}, fmt.Errorf("token endpoint rate limit: %w", err)
		}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("call token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return tokenResponse{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return tokenResponse{}, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}
	return tr, nil
}
