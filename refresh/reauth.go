package refresh

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// SilentReauthenticator builds authorization handoffs to the provider. With
// prompt=none the provider must confirm the user without showing UI and fail
// fast when it cannot, which lets a stale session re-establish itself behind
// the user's back.
type SilentReauthenticator struct {
	cfg      Config
	resolver *Resolver
	logger   *slog.Logger

	random func(int) (string, error)
	now    func() time.Time
}

// NewSilentReauthenticator wires the initiator. The resolver must know the
// callback route before the first handoff is built.
func NewSilentReauthenticator(cfg Config, resolver *Resolver, logger *slog.Logger) *SilentReauthenticator {
	return &SilentReauthenticator{
		cfg:      cfg.withDefaults(),
		resolver: resolver,
		logger:   logger,
		random:   RandomString,
		now:      time.Now,
	}
}

// Challenge prepares a silent re-authentication handoff for an expired
// session: fresh state (and nonce) bound to the session, the original path
// stashed for the post-login redirect, and the full authorization URL.
// Navigational requests get a redirect outcome, background requests the
// structured 403 signal.
func (s *SilentReauthenticator) Challenge(req Request, sess Session) (Outcome, error) {
	authURL, err := s.buildAuthURL(req, sess, true)
	if err != nil {
		return Proceed(), err
	}
	if req.Background {
		return Challenge(authURL), nil
	}
	return Redirect(authURL), nil
}

// LoginURL builds an interactive authorization URL for the login-initiation
// endpoint. Identical to the silent handoff except prompt=none is omitted, so
// the provider may show its login UI.
func (s *SilentReauthenticator) LoginURL(req Request, sess Session) (string, error) {
	return s.buildAuthURL(req, sess, false)
}

func (s *SilentReauthenticator) buildAuthURL(req Request, sess Session, silent bool) (string, error) {
	state, err := s.random(s.cfg.StateSize)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	callbackPath, err := s.resolver.resolve(s.cfg.CallbackURLName)
	if err != nil {
		return "", err
	}

	oauthCfg := &oauth2.Config{
		ClientID:    s.cfg.ClientID,
		RedirectURL: strings.TrimSuffix(s.cfg.PublicURL, "/") + callbackPath,
		Endpoint:    oauth2.Endpoint{AuthURL: s.cfg.AuthorizationEndpoint},
		Scopes:      s.cfg.scopeList(),
	}

	var opts []oauth2.AuthCodeOption
	if silent {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "none"))
	}

	nonce := ""
	if s.cfg.UseNonce {
		nonce, err = s.random(s.cfg.NonceSize)
		if err != nil {
			return "", fmt.Errorf("generate nonce: %w", err)
		}
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}

	BindState(sess, state, nonce, s.now(), s.cfg.MaxStates)
	sess.Set(KeyLoginNext, req.FullPath)

	authURL := oauthCfg.AuthCodeURL(state, opts...)
	s.logger.Debug("built authorization handoff", "silent", silent, "path", req.Path)
	return authURL, nil
}
