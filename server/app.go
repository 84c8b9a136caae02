package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"oidcrefresh/refresh"
	"oidcrefresh/sessions"
)

// Fixed paths of the authentication endpoints. They register with the
// resolver under the route names the refresh configuration references, so
// the exempt set and redirect URIs resolve without hardcoding paths twice.
const (
	loginPath    = "/oidc/authenticate"
	callbackPath = "/oidc/callback"
	logoutPath   = "/oidc/logout"
)

// App wires the session backend, the authentication backend, and the chosen
// refresher into one HTTP application.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Loader   refresh.SessionLoader
	Resolver *refresh.Resolver
	Reauth   *refresh.SilentReauthenticator
	Refresh  refresh.Refresher
	Backend  *Backend
}

// NewApp builds the application from validated configuration. Provider
// discovery runs once here; failures surface at startup, not per request.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	resolver := refresh.NewResolver()
	resolver.Register(cfg.OIDC.LoginURLName, loginPath)
	resolver.Register(cfg.OIDC.CallbackURLName, callbackPath)
	resolver.Register(cfg.OIDC.LogoutURLName, logoutPath)

	if err := cfg.OIDC.ResolveEndpoints(ctx); err != nil {
		return nil, err
	}

	loader, err := buildSessionStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	eligibility := refresh.NewEligibility(cfg.OIDC, resolver)
	reauth := refresh.NewSilentReauthenticator(cfg.OIDC, resolver, logger)

	var refresher refresh.Refresher
	switch cfg.Server.RefreshMode {
	case "exchange":
		refresher = refresh.NewTokenExchangeRefresher(cfg.OIDC, eligibility, reauth, nil, nil, nil, logger)
	default:
		refresher = refresh.NewRedirectOnlyRefresher(eligibility, reauth, logger)
	}

	backend, err := NewBackend(ctx, cfg.OIDC, resolver, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Loader:   loader,
		Resolver: resolver,
		Reauth:   reauth,
		Refresh:  refresher,
		Backend:  backend,
	}, nil
}

func buildSessionStore(cfg Config, logger *slog.Logger) (refresh.SessionLoader, error) {
	secure := !cfg.Server.DevMode
	ttl := cfg.Sessions.SessionTTL()

	switch cfg.Sessions.Backend {
	case "memory":
		return sessions.NewMemoryStore(ttl, secure), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sessions.RedisAddr,
			Password: cfg.Sessions.RedisPassword,
			DB:       cfg.Sessions.RedisDB,
		})
		logger.Info("using redis session backend", "addr", cfg.Sessions.RedisAddr)
		return sessions.NewRedisStore(client, ttl, secure), nil
	case "cookie":
		keys := [][]byte{[]byte(cfg.Sessions.CookieAuthKey)}
		if cfg.Sessions.CookieEncryptKey != "" {
			keys = append(keys, []byte(cfg.Sessions.CookieEncryptKey))
		}
		return sessions.NewCookieStore(int(ttl.Seconds()), secure, keys...), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}
