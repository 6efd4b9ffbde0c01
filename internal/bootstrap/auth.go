package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eventrentals/portal/config"
	"github.com/eventrentals/portal/internal/adapters/devauth"
	"github.com/eventrentals/portal/internal/adapters/identitytoolkit"
	"github.com/eventrentals/portal/internal/adapters/oidc"
	"github.com/eventrentals/portal/internal/ports"
)

// IdentityStack is the identity provider, token verifier and social providers
// selected by IDENTITY_MODE.
type IdentityStack struct {
	Identity ports.IdentityProvider
	Verifier ports.TokenVerifier
	Social   []ports.SocialProvider
}

// IdentityConfig contains configuration for BuildIdentity.
type IdentityConfig struct {
	Auth   config.AuthConfig
	HTTP   config.HTTPConfig
	Logger *slog.Logger
}

// BuildIdentity creates the identity stack for the configured mode.
func BuildIdentity(ctx context.Context, cfg IdentityConfig) (*IdentityStack, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Identity.Mode {
	case config.IdentityModeMock:
		return buildDevIdentity(cfg, logger)
	case config.IdentityModeOIDC, "":
		return buildOIDCIdentity(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported identity mode %q", cfg.Auth.Identity.Mode)
	}
}

func buildDevIdentity(cfg IdentityConfig, logger *slog.Logger) (*IdentityStack, error) {
	dev := cfg.Auth.DevAuth
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:          dev.UserID,
		Email:           dev.Email,
		Password:        dev.Password,
		DisplayName:     dev.DisplayName,
		Admin:           dev.Admin,
		SessionDuration: cfg.Auth.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("dev identity provider: %w", err)
	}
	logger.Warn("using mock identity provider", "user_id", dev.UserID, "admin_claim", dev.Admin)

	return &IdentityStack{
		Identity: prov,
		Verifier: prov,
		Social:   []ports.SocialProvider{prov.Social(oidc.ProviderGoogle), prov.Social(oidc.ProviderFacebook)},
	}, nil
}

func buildOIDCIdentity(ctx context.Context, cfg IdentityConfig, logger *slog.Logger) (*IdentityStack, error) {
	id := cfg.Auth.Identity
	client, err := identitytoolkit.NewClient(identitytoolkit.Config{
		APIKey:   id.APIKey,
		BaseURL:  id.APIBaseURL,
		TokenURL: id.TokenURL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}

	verifier, err := oidc.NewTokenVerifier(ctx, oidc.VerifierConfig{
		Issuer:   id.Issuer,
		Audience: id.Audience,
		JWKSURL:  id.JWKSURL,
	})
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	social, err := buildSocialProviders(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &IdentityStack{Identity: client, Verifier: verifier, Social: social}, nil
}

// buildSocialProviders sets up each configured social provider. A provider
// that fails discovery is skipped so password sign-in keeps working.
func buildSocialProviders(ctx context.Context, cfg IdentityConfig, logger *slog.Logger) ([]ports.SocialProvider, error) {
	type candidate struct {
		name    string
		client  config.SocialProviderConfig
		factory func(clientID, clientSecret, redirectURL string) oidc.ProviderConfig
	}
	candidates := []candidate{
		{name: oidc.ProviderGoogle, client: cfg.Auth.Google, factory: oidc.GoogleConfig},
		{name: oidc.ProviderFacebook, client: cfg.Auth.Facebook, factory: oidc.FacebookConfig},
	}

	var (
		out  []ports.SocialProvider
		errs []error
	)
	for _, c := range candidates {
		if !c.client.Enabled() {
			continue
		}
		callback, err := cfg.HTTP.CallbackURL(c.name)
		if err != nil {
			return nil, fmt.Errorf("%s callback url: %w", c.name, err)
		}
		prov, err := oidc.NewProvider(ctx, c.factory(c.client.ClientID, c.client.ClientSecret, callback))
		if err != nil {
			logger.Warn("social provider disabled", "provider", c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		out = append(out, prov)
	}
	if len(out) == 0 && len(errs) > 0 {
		logger.Warn("no social providers available", "error", errors.Join(errs...))
	}
	return out, nil
}

func (s *IdentityStack) socialOrNil() []ports.SocialProvider {
	if s == nil {
		return nil
	}
	return s.Social
}
