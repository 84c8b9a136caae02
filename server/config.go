package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"oidcrefresh/refresh"
)

// Hardcoded session defaults.
const (
	DefaultSessionTTL = 12 * time.Hour
)

// Config captures the full application configuration loaded from YAML and
// environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	OIDC     refresh.Config `yaml:"oidc"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL       string    `yaml:"public_url" validate:"required,url"`
	DevListenAddr   string    `yaml:"dev_listen_addr"`
	HTTPListenAddr  string    `yaml:"http_listen_addr"`
	HTTPSListenAddr string    `yaml:"https_listen_addr"`
	DevMode         bool      `yaml:"dev_mode"`
	TLS             TLSConfig `yaml:"tls"`

	// RefreshMode selects which refresher guards protected routes:
	// "redirect" only ever issues silent-reauth handoffs, "exchange" renews
	// tokens at the token endpoint first.
	RefreshMode string `yaml:"refresh_mode" validate:"oneof=redirect exchange"`
}

// TLSConfig defines autocert behaviour for production mode.
type TLSConfig struct {
	Domains    []string `yaml:"domains"`
	Email      string   `yaml:"email" validate:"omitempty,email"`
	CacheDir   string   `yaml:"cache_dir"`
	HSTSMaxAge int      `yaml:"hsts_max_age"`
}

// SessionsConfig selects and tunes the session backend.
type SessionsConfig struct {
	// Backend is one of "memory", "redis", or "cookie".
	Backend string `yaml:"backend" validate:"oneof=memory redis cookie"`

	// TTL is a Go duration string, for example "12h".
	TTL string `yaml:"ttl"`

	// RedisAddr is required for the redis backend.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// CookieAuthKey and CookieEncryptKey configure the cookie backend.
	// The auth key is required there; 32 or 64 bytes.
	CookieAuthKey    string `yaml:"cookie_auth_key"`
	CookieEncryptKey string `yaml:"cookie_encrypt_key"`
}

// LoadConfig reads the YAML config file, applies environment overrides, and
// validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			slog.Error("failed to parse configuration", "error", err, "file", path)
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("configuration validation failed", "error", err)
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	oidcDefaults := refresh.DefaultConfig()
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:8080",
			DevListenAddr:   "127.0.0.1:8080",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			DevMode:         true,
			RefreshMode:     "redirect",
			TLS: TLSConfig{
				CacheDir:   ".secrets/tls",
				HSTSMaxAge: 31536000,
			},
		},
		OIDC: oidcDefaults,
		Sessions: SessionsConfig{
			Backend: "memory",
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"OIDCREFRESH_PUBLIC_URL":      func(v string) { cfg.Server.PublicURL = v },
		"OIDCREFRESH_DEV_LISTEN_ADDR": func(v string) { cfg.Server.DevListenAddr = v },
		"OIDCREFRESH_DEV_MODE":        func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"OIDCREFRESH_REFRESH_MODE":    func(v string) { cfg.Server.RefreshMode = v },
		"OIDC_OP_ISSUER":              func(v string) { cfg.OIDC.Issuer = v },
		"OIDC_OP_AUTHORIZATION_ENDPOINT": func(v string) {
			cfg.OIDC.AuthorizationEndpoint = v
		},
		"OIDC_OP_TOKEN_ENDPOINT":  func(v string) { cfg.OIDC.TokenEndpoint = v },
		"OIDC_RP_CLIENT_ID":       func(v string) { cfg.OIDC.ClientID = v },
		"OIDC_RP_CLIENT_SECRET":   func(v string) { cfg.OIDC.ClientSecret = v },
		"OIDC_RP_SCOPES":          func(v string) { cfg.OIDC.Scopes = v },
		"OIDCREFRESH_REDIS_ADDR":  func(v string) { cfg.Sessions.RedisAddr = v },
		"OIDCREFRESH_COOKIE_AUTH": func(v string) { cfg.Sessions.CookieAuthKey = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}

	// The refresher builds redirect URIs from its own public URL; keep the
	// two in sync unless explicitly split in the file.
	if cfg.OIDC.PublicURL == "" {
		cfg.OIDC.PublicURL = cfg.Server.PublicURL
	}
}

// Validate runs struct-tag validation plus the cross-field checks.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.OIDC.Validate(); err != nil {
		return err
	}
	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		return fmt.Errorf("server.tls.domains must be provided in production")
	}
	switch c.Sessions.Backend {
	case "redis":
		if strings.TrimSpace(c.Sessions.RedisAddr) == "" {
			return fmt.Errorf("sessions.redis_addr required for the redis backend")
		}
	case "cookie":
		if n := len(c.Sessions.CookieAuthKey); n != 32 && n != 64 {
			return fmt.Errorf("sessions.cookie_auth_key must be 32 or 64 bytes, got %d", n)
		}
	}
	return nil
}

// SessionTTL parses the configured session lifetime, falling back to the
// default on absent or malformed values.
func (s SessionsConfig) SessionTTL() time.Duration {
	return parseDuration(s.TTL, DefaultSessionTTL)
}

func parseDuration(val string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
