package oidc

// Package oidc provides OIDC/OAuth adapters for social sign-in and ID-token verification.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/eventrentals/portal/internal/ports"
)

const (
	googleIssuer = "https://accounts.google.com"

	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// Provider implements ports.SocialProvider using OAuth2, with OIDC ID-token
// verification when the provider supports discovery.
type Provider struct {
	name       string
	providerID string
	config     *oauth2.Config
	httpClient *http.Client

	// nil for plain OAuth2 providers
	verifier *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for a social provider.
type ProviderConfig struct {
	Name         string // google, facebook
	ProviderID   string // identity-provider id, e.g. google.com
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string          // OIDC providers
	Endpoint     oauth2.Endpoint // plain OAuth2 providers
	HTTPClient   *http.Client    // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// GoogleConfig returns the configuration of Google sign-in.
func GoogleConfig(clientID, clientSecret, redirectURL string) ProviderConfig {
	return ProviderConfig{
		Name:         ProviderGoogle,
		ProviderID:   "google.com",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scope:        "openid email profile",
		DiscoveryURL: googleIssuer,
	}
}

// FacebookConfig returns the configuration of Facebook login.
func FacebookConfig(clientID, clientSecret, redirectURL string) ProviderConfig {
	return ProviderConfig{
		Name:         ProviderFacebook,
		ProviderID:   "facebook.com",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scope:        "email public_profile",
		Endpoint:     facebook.Endpoint,
	}
}

// NewProvider creates a social provider. OIDC discovery runs once when DiscoveryURL is set.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, errors.New("provider name is required")
	}
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" && (config.Endpoint.AuthURL == "" || config.Endpoint.TokenURL == "") {
		return nil, errors.New("discovery URL or OAuth2 endpoint is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	providerID := config.ProviderID
	if providerID == "" {
		providerID = config.Name + ".com"
	}

	p := &Provider{
		name:       strings.ToLower(config.Name),
		providerID: providerID,
		httpClient: httpClient,
	}

	endpoint := config.Endpoint
	if config.DiscoveryURL != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
		issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
		issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
		op, err := gooidc.NewProvider(ctx, issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc new provider: %w", err)
		}
		p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})
		endpoint = op.Endpoint()
	}

	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     endpoint,
	}

	return p, nil
}

// Name returns the short provider name used in routes.
func (p *Provider) Name() string { return p.name }

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}

	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri stays the configured one; providers match it exactly.
	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("response_type", "code")}
	if p.verifier != nil {
		opts = append(opts,
			oauth2.SetAuthURLParam("nonce", nonce),
			oauth2.SetAuthURLParam("prompt", "select_account"),
		)
	}
	authURL := p.config.AuthCodeURL(state, opts...)

	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.IdPCredential, error) {
	if in.Code == "" {
		return ports.IdPCredential{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return ports.IdPCredential{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return ports.IdPCredential{}, errors.New("nonce is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return ports.IdPCredential{}, fmt.Errorf("exchange code for token: %w", err)
	}

	cred := ports.IdPCredential{
		ProviderID:  p.providerID,
		AccessToken: token.AccessToken,
		RequestURI:  p.config.RedirectURL,
	}

	if p.verifier != nil {
		rawID, verifyErr := p.verifyIDToken(ctx, token, in.Nonce)
		if verifyErr != nil {
			return ports.IdPCredential{}, fmt.Errorf("extract id_token: %w", verifyErr)
		}
		cred.IDToken = rawID
		return cred, nil
	}

	if cred.AccessToken == "" {
		return ports.IdPCredential{}, errors.New("missing access_token in token response")
	}
	return cred, nil
}

type idTokenClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Nonce string `json:"nonce"`
}

func (p *Provider) verifyIDToken(ctx context.Context, tok *oauth2.Token, expectedNonce string) (string, error) {
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return "", err
	}
	idTok, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return "", fmt.Errorf("verify id_token: %w", err)
	}
	var claims idTokenClaims
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return "", fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if expectedNonce != "" && claims.Nonce != expectedNonce {
		return "", errors.New("invalid nonce")
	}
	return rawID, nil
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
