package server

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
)

const fakeOPKeyID = "test-key"

type fakeGrant struct {
	sub   string
	nonce string
}

// fakeOP is an in-process OpenID provider: discovery, JWKS, and a token
// endpoint that exchanges pre-issued codes for RS256-signed id tokens. The
// authorize endpoint is never served; tests inspect the handoff URL and mint
// codes directly.
type fakeOP struct {
	t      *testing.T
	srv    *httptest.Server
	key    *rsa.PrivateKey
	signer jose.Signer

	// idTokenTTL controls the exp claim of issued id tokens. Negative
	// values produce already-expired sessions.
	idTokenTTL time.Duration

	mu     sync.Mutex
	codes  map[string]fakeGrant
	tokens int
}

func newFakeOP(t *testing.T) *fakeOP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	opts := (&jose.SignerOptions{}).WithHeader("kid", fakeOPKeyID)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, opts)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}

	op := &fakeOP{
		t:          t,
		key:        key,
		signer:     signer,
		idTokenTTL: time.Hour,
		codes:      make(map[string]fakeGrant),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", op.handleDiscovery)
	mux.HandleFunc("/jwks.json", op.handleJWKS)
	mux.HandleFunc("/token", op.handleToken)
	op.srv = httptest.NewServer(mux)
	t.Cleanup(op.srv.Close)
	return op
}

func (op *fakeOP) URL() string { return op.srv.URL }

// issueCode binds a code to a subject and nonce, as the provider would after
// a successful authorize round trip.
func (op *fakeOP) issueCode(sub, nonce string) string {
	op.mu.Lock()
	defer op.mu.Unlock()
	code := fmt.Sprintf("code-%d", len(op.codes)+1)
	op.codes[code] = fakeGrant{sub: sub, nonce: nonce}
	return code
}

// tokenRequests reports how many token-endpoint calls it served.
func (op *fakeOP) tokenRequests() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.tokens
}

func (op *fakeOP) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                op.srv.URL,
		"authorization_endpoint":                op.srv.URL + "/authorize",
		"token_endpoint":                        op.srv.URL + "/token",
		"jwks_uri":                              op.srv.URL + "/jwks.json",
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
	})
}

func (op *fakeOP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &op.key.PublicKey,
		KeyID:     fakeOPKeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(set)
}

func (op *fakeOP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	op.mu.Lock()
	op.tokens++
	var grant fakeGrant
	var ok bool
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		grant, ok = op.codes[code]
		delete(op.codes, code)
	case "refresh_token":
		sub := r.PostForm.Get("refresh_token")
		grant, ok = fakeGrant{sub: sub}, sub != ""
	}
	op.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}

	idToken := op.signIDToken(grant.sub, grant.nonce)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-" + grant.sub,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": grant.sub,
		"id_token":      idToken,
	})
}

func (op *fakeOP) signIDToken(sub, nonce string) string {
	op.t.Helper()

	now := time.Now()
	claims := map[string]any{
		"iss": op.srv.URL,
		"aud": "test-client",
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(op.idTokenTTL).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		op.t.Fatalf("marshal claims: %v", err)
	}
	jws, err := op.signer.Sign(payload)
	if err != nil {
		op.t.Fatalf("sign id token: %v", err)
	}
	raw, err := jws.CompactSerialize()
	if err != nil {
		op.t.Fatalf("serialize id token: %v", err)
	}
	return raw
}
