package refresh

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Defaults applied by DefaultConfig and withDefaults.
const (
	DefaultScopes    = "openid email"
	DefaultStateSize = 32
	DefaultNonceSize = 32
	DefaultMaxStates = 50

	DefaultTokenTimeout = 15 * time.Second
)

// DefaultBackend is the capability tag the bundled authentication backend
// writes into sessions it creates.
const DefaultBackend = "oidc"

// Config holds the relying-party settings the refreshers operate on. It is
// read-only after startup and safe to share across concurrent requests.
type Config struct {
	// Issuer enables endpoint discovery. Either it or both explicit
	// endpoints must be set.
	Issuer                string `yaml:"issuer" validate:"omitempty,url"`
	AuthorizationEndpoint string `yaml:"authorization_endpoint" validate:"omitempty,url"`
	TokenEndpoint         string `yaml:"token_endpoint" validate:"omitempty,url"`

	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret"`

	// PublicURL is the externally visible base URL of the application,
	// used to fully qualify the callback redirect_uri.
	PublicURL string `yaml:"public_url" validate:"required,url"`

	// Scopes is the space-separated scope string sent on authorization
	// requests.
	Scopes string `yaml:"scopes"`

	StateSize int  `yaml:"state_size" validate:"gte=0"`
	UseNonce  bool `yaml:"use_nonce"`
	NonceSize int  `yaml:"nonce_size" validate:"gte=0"`

	// MaxStates caps how many in-flight authorization attempts a single
	// session may accumulate; the oldest entries are evicted first.
	MaxStates int `yaml:"max_states" validate:"gte=0"`

	// ExemptURLs lists extra paths (or registered route names) that never
	// trigger refresh examination. The login, callback, and logout routes
	// are always exempt.
	ExemptURLs []string `yaml:"exempt_urls"`

	LoginURLName    string `yaml:"login_url_name"`
	CallbackURLName string `yaml:"callback_url_name"`
	LogoutURLName   string `yaml:"logout_url_name"`

	// RenewRefreshToken allows an expired refresh token on a GET request to
	// fall back to a silent re-authentication handoff instead of logout.
	RenewRefreshToken bool `yaml:"renew_refresh_token"`

	// RefreshTokenExpirySeconds bounds the lifetime of the stored refresh
	// token. Zero means the token never expires on our side and only the
	// provider decides.
	RefreshTokenExpirySeconds int64 `yaml:"refresh_token_expiry_seconds" validate:"gte=0"`

	// IDTokenExpirySeconds is the id-token lifetime used both as the
	// fallback expiration window and in the refresh-token deadline
	// computation. Required when RefreshTokenExpirySeconds is set.
	IDTokenExpirySeconds int64 `yaml:"id_token_expiry_seconds" validate:"gte=0"`

	// OIDCBackends lists the backend capability tags eligible for refresh.
	OIDCBackends []string `yaml:"oidc_backends"`

	// FailOpenUnknownBackend treats sessions without a recorded backend tag
	// as OIDC sessions, matching legacy behaviour.
	FailOpenUnknownBackend bool `yaml:"fail_open_unknown_backend"`

	// CoordinateRefreshes deduplicates concurrent refresh-token exchanges
	// for the same token so a rotating token is spent at most once.
	CoordinateRefreshes bool `yaml:"coordinate_refreshes"`

	// TokenTimeout bounds each token-endpoint call. Set programmatically;
	// deployments tune it through the host's config layer.
	TokenTimeout time.Duration `yaml:"-"`

	// TokenRequestsPerSecond rate-limits outbound token-endpoint calls.
	// Zero disables the limiter.
	TokenRequestsPerSecond float64 `yaml:"token_requests_per_second" validate:"gte=0"`
}

// DefaultConfig returns the configuration baseline new deployments start from.
func DefaultConfig() Config {
	return Config{
		Scopes:                 DefaultScopes,
		StateSize:              DefaultStateSize,
		UseNonce:               true,
		NonceSize:              DefaultNonceSize,
		MaxStates:              DefaultMaxStates,
		LoginURLName:           "oidc-init",
		CallbackURLName:        "oidc-callback",
		LogoutURLName:          "oidc-logout",
		OIDCBackends:           []string{DefaultBackend},
		FailOpenUnknownBackend: true,
		TokenTimeout:           DefaultTokenTimeout,
	}
}

// withDefaults fills zero values that have non-zero defaults so a partially
// populated Config behaves like DefaultConfig.
func (c Config) withDefaults() Config {
	if c.Scopes == "" {
		c.Scopes = DefaultScopes
	}
	if c.StateSize == 0 {
		c.StateSize = DefaultStateSize
	}
	if c.NonceSize == 0 {
		c.NonceSize = DefaultNonceSize
	}
	if c.MaxStates == 0 {
		c.MaxStates = DefaultMaxStates
	}
	if c.CallbackURLName == "" {
		c.CallbackURLName = "oidc-callback"
	}
	if len(c.OIDCBackends) == 0 {
		c.OIDCBackends = []string{DefaultBackend}
	}
	if c.TokenTimeout == 0 {
		c.TokenTimeout = DefaultTokenTimeout
	}
	return c
}

// Validate checks the cross-field constraints the struct tags cannot express.
func (c Config) Validate() error {
	if c.Issuer == "" && (c.AuthorizationEndpoint == "" || c.TokenEndpoint == "") {
		return fmt.Errorf("%w: issuer or both authorization_endpoint and token_endpoint required", ErrMisconfigured)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: client_id required", ErrMisconfigured)
	}
	if c.PublicURL == "" {
		return fmt.Errorf("%w: public_url required", ErrMisconfigured)
	}
	if c.RefreshTokenExpirySeconds > 0 && c.IDTokenExpirySeconds == 0 {
		return fmt.Errorf("%w: id_token_expiry_seconds required when refresh_token_expiry_seconds is set", ErrMisconfigured)
	}
	return nil
}

// ResolveEndpoints fills the endpoint URLs through OIDC discovery when only
// the issuer is configured. Explicitly configured endpoints win.
func (c *Config) ResolveEndpoints(ctx context.Context) error {
	if c.AuthorizationEndpoint != "" && c.TokenEndpoint != "" {
		return nil
	}
	if c.Issuer == "" {
		return fmt.Errorf("%w: issuer required for endpoint discovery", ErrMisconfigured)
	}
	provider, err := oidc.NewProvider(ctx, strings.TrimSuffix(c.Issuer, "/"))
	if err != nil {
		return fmt.Errorf("discover provider: %w", err)
	}
	endpoint := provider.Endpoint()
	if c.AuthorizationEndpoint == "" {
		c.AuthorizationEndpoint = endpoint.AuthURL
	}
	if c.TokenEndpoint == "" {
		c.TokenEndpoint = endpoint.TokenURL
	}
	return nil
}

// scopeList splits the configured scope string for oauth2.Config.
func (c Config) scopeList() []string {
	return strings.Fields(c.Scopes)
}
