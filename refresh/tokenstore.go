package refresh

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore writes a replacement token set into the session. Every code path
// that swaps tokens must also update the expiration, so the two operations
// live on one interface.
type TokenStore interface {
	// StoreExpirationTimes records when the id token goes stale. The raw
	// id token is passed so implementations can derive the expiry from its
	// exp claim.
	StoreExpirationTimes(sess Session, idToken string, now time.Time)

	// StoreTokens persists the token set. An empty refresh token means the
	// provider did not rotate it and the stored one stays valid.
	StoreTokens(sess Session, accessToken, idToken, refreshToken string)
}

// StandardTokenStore derives the id-token expiry from the token's exp claim,
// falling back to a fixed window measured from now. The signature is not
// verified here; the authentication backend already did that before the token
// entered the session.
type StandardTokenStore struct {
	// IDTokenExpirySeconds is the fallback lifetime when the id token
	// carries no usable exp claim.
	IDTokenExpirySeconds int64
}

func (s StandardTokenStore) StoreExpirationTimes(sess Session, idToken string, now time.Time) {
	expiration := now.Unix() + s.IDTokenExpirySeconds
	if exp, ok := idTokenExpiry(idToken); ok {
		expiration = exp
	}
	sess.Set(KeyIDTokenExpiration, expiration)
}

func (s StandardTokenStore) StoreTokens(sess Session, accessToken, idToken, refreshToken string) {
	sess.Set(KeyAccessToken, accessToken)
	sess.Set(KeyIDToken, idToken)
	if refreshToken != "" {
		sess.Set(KeyRefreshToken, refreshToken)
	}
}

func idTokenExpiry(idToken string) (int64, bool) {
	if idToken == "" {
		return 0, false
	}
	token, _, err := jwt.NewParser().ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		return 0, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}
