package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/eventrentals/portal/internal/ports"
)

const testKeyID = "test-key"

// testSigner signs ID tokens with a throwaway RSA key.
type testSigner struct {
	key    *rsa.PrivateKey
	signer jose.Signer
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testKeyID),
	)
	require.NoError(t, err)
	return &testSigner{key: key, signer: signer}
}

func (s *testSigner) sign(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	obj, err := s.signer.Sign(payload)
	require.NoError(t, err)
	raw, err := obj.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func (s *testSigner) jwks() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &s.key.PublicKey,
		KeyID:     testKeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
}

// oidcServer serves discovery, JWKS and a token endpoint that returns idToken.
type oidcServer struct {
	*httptest.Server
	idToken string
}

func newOIDCServer(t *testing.T, signer *testSigner) *oidcServer {
	t.Helper()
	s := &oidcServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(DiscoveryDocument{
			Issuer:                s.URL,
			AuthorizationEndpoint: s.URL + "/auth",
			TokenEndpoint:         s.URL + "/token",
			UserinfoEndpoint:      s.URL + "/userinfo",
			JwksURI:               s.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(signer.jwks())
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     s.idToken,
		})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newGoogleStyleProvider(t *testing.T, srv *oidcServer) *Provider {
	t.Helper()
	cfg := GoogleConfig("test-client", "test-secret", "http://localhost:8080/auth/google/callback")
	cfg.DiscoveryURL = srv.URL
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	return p
}

func TestNewProvider_Discovery(t *testing.T) {
	srv := newOIDCServer(t, newTestSigner(t))
	p := newGoogleStyleProvider(t, srv)

	assert.Equal(t, "google", p.Name())
	assert.Equal(t, srv.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Equal(t, srv.URL+"/token", p.config.Endpoint.TokenURL)
	assert.NotNil(t, p.verifier)
}

func TestNewProvider_FacebookUsesFixedEndpoint(t *testing.T) {
	p, err := NewProvider(context.Background(), FacebookConfig("id", "secret", "http://localhost/auth/facebook/callback"))
	require.NoError(t, err)
	assert.Equal(t, "facebook", p.Name())
	assert.Nil(t, p.verifier)
	assert.Contains(t, p.config.Endpoint.AuthURL, "facebook.com")
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{name: "missing name", config: ProviderConfig{ClientID: "c"}, errMsg: "provider name is required"},
		{name: "missing client ID", config: ProviderConfig{Name: "google"}, errMsg: "client ID is required"},
		{
			name:   "missing client secret",
			config: ProviderConfig{Name: "google", ClientID: "client"},
			errMsg: "client secret is required",
		},
		{
			name:   "missing redirect URL",
			config: ProviderConfig{Name: "google", ClientID: "client", ClientSecret: "secret"},
			errMsg: "redirect URL is required",
		},
		{
			name: "missing endpoint",
			config: ProviderConfig{
				Name:         "google",
				ClientID:     "client",
				ClientSecret: "secret",
				RedirectURL:  "http://localhost/callback",
			},
			errMsg: "discovery URL or OAuth2 endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Begin(t *testing.T) {
	srv := newOIDCServer(t, newTestSigner(t))
	provider := newGoogleStyleProvider(t, srv)

	authURL, state, nonce, err := provider.Begin(context.Background(), ports.BeginInput{RedirectURL: "http://localhost:8080/auth/google/callback"})
	require.NoError(t, err)
	assert.Len(t, state, 32)
	assert.Len(t, nonce, 32)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, nonce, q.Get("nonce"))
	assert.Equal(t, "select_account", q.Get("prompt"))
}

func TestProvider_Begin_EmptyRedirectURL(t *testing.T) {
	p, err := NewProvider(context.Background(), FacebookConfig("id", "secret", "http://localhost/cb"))
	require.NoError(t, err)

	_, _, _, err = p.Begin(context.Background(), ports.BeginInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URL is required")
}

func TestProvider_Exchange_ValidationErrors(t *testing.T) {
	p, err := NewProvider(context.Background(), FacebookConfig("id", "secret", "http://localhost/cb"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  ports.ExchangeInput
		errMsg string
	}{
		{name: "missing code", input: ports.ExchangeInput{State: "state", Nonce: "nonce"}, errMsg: "authorization code is required"},
		{name: "missing state", input: ports.ExchangeInput{Code: "code", Nonce: "nonce"}, errMsg: "state is required"},
		{name: "missing nonce", input: ports.ExchangeInput{Code: "code", State: "state"}, errMsg: "nonce is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Exchange(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Exchange_VerifiesIDTokenAndNonce(t *testing.T) {
	signer := newTestSigner(t)
	srv := newOIDCServer(t, signer)
	p := newGoogleStyleProvider(t, srv)

	srv.idToken = signer.sign(t, map[string]any{
		"iss":   srv.URL,
		"aud":   "test-client",
		"sub":   "google-user-1",
		"email": "host@example.com",
		"nonce": "nonce-1",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	cred, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "nonce-1"})
	require.NoError(t, err)
	assert.Equal(t, "google.com", cred.ProviderID)
	assert.Equal(t, srv.idToken, cred.IDToken)
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cred.RequestURI)

	_, err = p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "other"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid nonce")
}

func TestProvider_Exchange_PlainOAuth2(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fb-access","token_type":"bearer"}`))
	}))
	defer tokenSrv.Close()

	cfg := FacebookConfig("id", "secret", "http://localhost/auth/facebook/callback")
	cfg.Endpoint = oauth2.Endpoint{AuthURL: tokenSrv.URL + "/auth", TokenURL: tokenSrv.URL + "/token"}
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	cred, err := p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.Equal(t, "facebook.com", cred.ProviderID)
	assert.Equal(t, "fb-access", cred.AccessToken)
	assert.Empty(t, cred.IDToken)
}

func TestProvider_Exchange_TokenEndpointError(t *testing.T) {
	cfg := FacebookConfig("id", "secret", "http://localhost/cb")
	cfg.Endpoint = oauth2.Endpoint{AuthURL: "http://127.0.0.1:1/auth", TokenURL: "http://127.0.0.1:1/token"}
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)

	_, err = p.Exchange(context.Background(), ports.ExchangeInput{Code: "c", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange code for token")
}

func TestGenerateRandomString(t *testing.T) {
	str1, err := generateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, str1, 16)

	str2, err := generateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, str2, 32)
	assert.NotEqual(t, str1, str2)

	empty, err := generateRandomString(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetIDTokenFromToken(t *testing.T) {
	tok := (&oauth2.Token{}).WithExtra(map[string]any{"id_token": "abc.def.ghi"})
	idTok, err := getIDTokenFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", idTok)

	_, err = getIDTokenFromToken((&oauth2.Token{}).WithExtra(map[string]any{"not_id": "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id_token")

	_, err = getIDTokenFromToken(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil token")
}

// Test that the provider implements the SocialProvider interface.
func TestProvider_ImplementsInterface(t *testing.T) {
	var _ ports.SocialProvider = (*Provider)(nil)
	var _ ports.TokenVerifier = (*TokenVerifier)(nil)
}
