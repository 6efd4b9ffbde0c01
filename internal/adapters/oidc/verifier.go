package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
)

// SecureTokenJWKSURL serves the signing keys of hosted-identity ID tokens.
const SecureTokenJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// VerifierConfig configures ID-token verification.
type VerifierConfig struct {
	Issuer     string // e.g. https://securetoken.google.com/<project>
	Audience   string // e.g. <project>
	JWKSURL    string // Optional: discovery on Issuer is used when empty
	HTTPClient *http.Client
}

// TokenVerifier implements ports.TokenVerifier with go-oidc.
type TokenVerifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewTokenVerifier builds a verifier for tokens issued by cfg.Issuer for cfg.Audience.
func NewTokenVerifier(ctx context.Context, cfg VerifierConfig) (*TokenVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = gooidc.ClientContext(ctx, httpClient)

	oidcCfg := &gooidc.Config{ClientID: cfg.Audience}
	if cfg.JWKSURL != "" {
		keys := gooidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		return &TokenVerifier{verifier: gooidc.NewVerifier(cfg.Issuer, keys, oidcCfg)}, nil
	}

	op, err := gooidc.NewProvider(context.WithValue(ctx, oauth2.HTTPClient, httpClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return &TokenVerifier{verifier: op.Verifier(oidcCfg)}, nil
}

// NewTokenVerifierWithKeySet builds a verifier over a fixed key set. now may be nil.
func NewTokenVerifierWithKeySet(issuer, audience string, keys gooidc.KeySet, now func() time.Time) *TokenVerifier {
	return &TokenVerifier{verifier: gooidc.NewVerifier(issuer, keys, &gooidc.Config{ClientID: audience, Now: now})}
}

// Verify checks signature, issuer, audience and expiry, then maps the claims.
func (v *TokenVerifier) Verify(ctx context.Context, rawIDToken string) (domainauth.Principal, domainauth.Claims, error) {
	if rawIDToken == "" {
		return domainauth.Principal{}, nil, fmt.Errorf("%w: empty token", ports.ErrInvalidToken)
	}
	idTok, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domainauth.Principal{}, nil, fmt.Errorf("%w: %w", ports.ErrInvalidToken, err)
	}

	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Principal{}, nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}

	return principalFromClaims(idTok.Subject, idTok.Expiry, claims), domainauth.Claims(claims), nil
}

func principalFromClaims(subject string, expiry time.Time, claims map[string]any) domainauth.Principal {
	p := domainauth.Principal{
		UserID:      firstNonEmpty(stringClaim(claims, "user_id"), subject),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
		ExpiresAt:   expiry,
	}
	if fb, ok := claims["firebase"].(map[string]any); ok {
		p.Provider = stringClaim(fb, "sign_in_provider")
	}
	return p
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
