package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// IdentityMode selects the identity provider implementation.
type IdentityMode string

const (
	// IdentityModeOIDC talks to the hosted identity service and verifies its ID tokens.
	IdentityModeOIDC IdentityMode = "oidc"
	// IdentityModeMock uses an in-process identity provider (for development only).
	IdentityModeMock IdentityMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for IdentityMode.
func (m *IdentityMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "mock":
		*m = IdentityMode(v)
		return nil
	default:
		return fmt.Errorf("invalid IdentityMode: %q (valid options: oidc, mock)", v)
	}
}

// IdentityConfig points at the hosted identity service.
type IdentityConfig struct {
	Mode       IdentityMode `env:"MODE"         envDefault:"oidc"`
	Issuer     string       `env:"ISSUER"`       // e.g. https://securetoken.google.com/<project>
	Audience   string       `env:"AUDIENCE"`     // project id
	JWKSURL    string       `env:"JWKS_URL"`     // optional: skips discovery
	APIKey     string       `env:"API_KEY"`      // web API key of the REST sign-in API
	APIBaseURL string       `env:"API_BASE_URL"` // optional: emulator or proxy
	TokenURL   string       `env:"TOKEN_URL"`    // optional: refresh-token endpoint
}

// SocialProviderConfig holds the OAuth client of one social provider.
// A provider with an empty ClientID is disabled.
type SocialProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Enabled reports whether the provider is configured.
func (c SocialProviderConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// DevAuthConfig seeds the mock identity provider.
// Used when IDENTITY_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID      string `env:"USER_ID"      envDefault:"dev-user"`
	Email       string `env:"EMAIL"        envDefault:"dev@example.com"`
	Password    string `env:"PASSWORD"     envDefault:"dev"`
	DisplayName string `env:"DISPLAY_NAME" envDefault:"Dev User"`
	Admin       bool   `env:"ADMIN"        envDefault:"false"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Identity IdentityConfig       `envPrefix:"IDENTITY_"`
	Google   SocialProviderConfig `envPrefix:"OAUTH_GOOGLE_"`
	Facebook SocialProviderConfig `envPrefix:"OAUTH_FACEBOOK_"`
	DevAuth  DevAuthConfig        `envPrefix:"DEV_AUTH_"`

	// AdminClaimExpr is a JMESPath expression over the ID-token claims that
	// yields true for admins.
	AdminClaimExpr string `env:"ADMIN_CLAIM_EXPR" envDefault:"admin"`

	// RoleResolutionTimeout bounds the claim check and directory lookup together.
	RoleResolutionTimeout time.Duration `env:"ROLE_RESOLUTION_TIMEOUT" envDefault:"5s"`

	// AdminCacheTTL is how long a directory answer is reused.
	AdminCacheTTL time.Duration `env:"ADMIN_CACHE_TTL" envDefault:"30s"`

	// SessionTTL is the lifetime of a server session.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	// CookieName is the auth cookie whose presence the edge gate checks.
	CookieName string `env:"AUTH_COOKIE_NAME" envDefault:"firebase-authed-token"`
}

// Sanitize trims values and restores defaults for non-positive durations.
func (a *AuthConfig) Sanitize() {
	a.Identity.Issuer = strings.TrimSpace(a.Identity.Issuer)
	a.Identity.Audience = strings.TrimSpace(a.Identity.Audience)
	a.Identity.APIKey = strings.TrimSpace(a.Identity.APIKey)
	a.AdminClaimExpr = strings.TrimSpace(a.AdminClaimExpr)
	if a.AdminClaimExpr == "" {
		a.AdminClaimExpr = "admin"
	}
	if a.RoleResolutionTimeout <= 0 {
		a.RoleResolutionTimeout = 5 * time.Second
	}
	if a.AdminCacheTTL <= 0 {
		a.AdminCacheTTL = 30 * time.Second
	}
	if a.SessionTTL <= 0 {
		a.SessionTTL = 12 * time.Hour
	}
	if a.CookieName = strings.TrimSpace(a.CookieName); a.CookieName == "" {
		a.CookieName = "firebase-authed-token"
	}
}

// Validate checks that the selected identity mode is fully configured.
func (a *AuthConfig) Validate(isDev bool) error {
	switch a.Identity.Mode {
	case IdentityModeMock:
		if !isDev {
			return errors.New("IDENTITY_MODE=mock requires DEV=true")
		}
		return nil
	case IdentityModeOIDC, "":
		var missing []string
		if a.Identity.Issuer == "" {
			missing = append(missing, "IDENTITY_ISSUER")
		}
		if a.Identity.Audience == "" {
			missing = append(missing, "IDENTITY_AUDIENCE")
		}
		if a.Identity.APIKey == "" {
			missing = append(missing, "IDENTITY_API_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("identity mode oidc requires %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported identity mode %q", a.Identity.Mode)
	}
}
