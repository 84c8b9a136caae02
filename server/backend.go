package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"oidcrefresh/refresh"
)

// Backend is the authentication backend collaborator: it completes the
// authorization-code handoffs the refreshers initiate and writes the session
// keys they consume. The refreshers themselves never touch it.
type Backend struct {
	name     string
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	store    refresh.TokenStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewBackend discovers the provider and prepares the code-exchange client.
// The callback path must already be registered with the resolver.
func NewBackend(ctx context.Context, cfg refresh.Config, resolver *refresh.Resolver, logger *slog.Logger) (*Backend, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("%w: issuer required for the authentication backend", refresh.ErrMisconfigured)
	}

	provider, err := oidc.NewProvider(ctx, strings.TrimSuffix(cfg.Issuer, "/"))
	if err != nil {
		return nil, fmt.Errorf("discover provider: %w", err)
	}

	callbackPath, err := resolver.Reverse(cfg.CallbackURLName)
	if err != nil {
		return nil, err
	}

	return &Backend{
		name: refresh.DefaultBackend,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  strings.TrimSuffix(cfg.PublicURL, "/") + callbackPath,
			Endpoint:     provider.Endpoint(),
			Scopes:       strings.Fields(cfg.Scopes),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		store:    refresh.StandardTokenStore{IDTokenExpirySeconds: cfg.IDTokenExpirySeconds},
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Complete validates the returning state against the session, exchanges the
// code, verifies the id token, and logs the user in by writing the session
// keys the refreshers read.
func (b *Backend) Complete(ctx context.Context, sess refresh.Session, code, state string) error {
	entry, ok := refresh.ConsumeState(sess, state)
	if !ok {
		return fmt.Errorf("state %q not bound to this session", state)
	}

	tok, err := b.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return fmt.Errorf("id_token missing in token response")
	}

	idToken, err := b.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return fmt.Errorf("verify id_token: %w", err)
	}

	if entry.Nonce != "" {
		var claims struct {
			Nonce string `json:"nonce"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return fmt.Errorf("parse claims: %w", err)
		}
		if claims.Nonce != entry.Nonce {
			return fmt.Errorf("nonce mismatch")
		}
	}

	sess.Set(refresh.KeyUserID, idToken.Subject)
	sess.Set(refresh.KeyAuthBackend, b.name)
	b.store.StoreExpirationTimes(sess, rawIDToken, b.now())
	b.store.StoreTokens(sess, tok.AccessToken, rawIDToken, tok.RefreshToken)

	b.logger.Info("login completed", "sub", idToken.Subject)
	return nil
}
