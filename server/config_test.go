package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://app.example.com
  dev_mode: true
  refresh_mode: exchange
oidc:
  issuer: https://op.example.com
  client_id: my-client
  client_secret: hunter2
sessions:
  backend: memory
  ttl: 2h
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.RefreshMode != "exchange" {
		t.Fatalf("refresh_mode: got %q", cfg.Server.RefreshMode)
	}
	if cfg.OIDC.ClientID != "my-client" {
		t.Fatalf("client_id: got %q", cfg.OIDC.ClientID)
	}
	// The refresher's public URL follows the server's when unset.
	if cfg.OIDC.PublicURL != "https://app.example.com" {
		t.Fatalf("oidc public_url: got %q", cfg.OIDC.PublicURL)
	}
	if got := cfg.Sessions.SessionTTL(); got != 2*time.Hour {
		t.Fatalf("session ttl: got %v", got)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://app.example.com
  listen_addrr: ":9999"
`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected strict decode to fail on unknown key")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  public_url: https://app.example.com
oidc:
  issuer: https://op.example.com
  client_id: file-client
`)

	t.Setenv("OIDC_RP_CLIENT_ID", "env-client")
	t.Setenv("OIDC_RP_CLIENT_SECRET", "env-secret")
	t.Setenv("OIDCREFRESH_REFRESH_MODE", "exchange")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OIDC.ClientID != "env-client" {
		t.Fatalf("client_id override: got %q", cfg.OIDC.ClientID)
	}
	if cfg.OIDC.ClientSecret != "env-secret" {
		t.Fatalf("client_secret override: got %q", cfg.OIDC.ClientSecret)
	}
	if cfg.Server.RefreshMode != "exchange" {
		t.Fatalf("refresh_mode override: got %q", cfg.Server.RefreshMode)
	}
}

func TestValidateRejectsBadRefreshMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OIDC.Issuer = "https://op.example.com"
	cfg.OIDC.ClientID = "client"
	cfg.OIDC.PublicURL = cfg.Server.PublicURL
	cfg.Server.RefreshMode = "eager"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure for refresh_mode")
	}
}

func TestValidateProductionNeedsTLSDomains(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OIDC.Issuer = "https://op.example.com"
	cfg.OIDC.ClientID = "client"
	cfg.OIDC.PublicURL = cfg.Server.PublicURL
	cfg.Server.DevMode = false

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure without tls domains")
	}

	cfg.Server.TLS.Domains = []string{"app.example.com"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
}

func TestValidateSessionBackends(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.OIDC.Issuer = "https://op.example.com"
		cfg.OIDC.ClientID = "client"
		cfg.OIDC.PublicURL = cfg.Server.PublicURL
		return cfg
	}

	cfg := base()
	cfg.Sessions.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("redis backend without addr should fail")
	}
	cfg.Sessions.RedisAddr = "127.0.0.1:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("redis backend: %v", err)
	}

	cfg = base()
	cfg.Sessions.Backend = "cookie"
	cfg.Sessions.CookieAuthKey = "too-short"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("short cookie key should fail")
	}
	cfg.Sessions.CookieAuthKey = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("cookie backend: %v", err)
	}
}

func TestSessionTTLFallback(t *testing.T) {
	var s SessionsConfig
	if got := s.SessionTTL(); got != DefaultSessionTTL {
		t.Fatalf("empty ttl: got %v", got)
	}
	s.TTL = "nonsense"
	if got := s.SessionTTL(); got != DefaultSessionTTL {
		t.Fatalf("malformed ttl: got %v", got)
	}
}
