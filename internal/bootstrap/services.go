package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/eventrentals/portal/config"
	"github.com/eventrentals/portal/internal/adapters/authroles"
	redisadapter "github.com/eventrentals/portal/internal/adapters/redis"
	"github.com/eventrentals/portal/internal/data"
	"github.com/eventrentals/portal/internal/observability/metrics"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

// ServiceContainer holds the application services shared by the HTTP runtime
// and the admin CLI.
type ServiceContainer struct {
	Auth      *service.AuthService
	Contexts  *service.SessionContextFactory
	Resolver  *service.RoleResolver
	Admins    *service.CachedAdminDirectory
	AdminRepo *data.AdminRepo
	Cache     *data.RedisCacheRepo
	Identity  *IdentityStack
	Metrics   *metrics.Metrics
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Identity    *IdentityStack        // Optional: BuildIdentity is called when nil
	Registry    prometheus.Registerer // Optional: defaults to prometheus.DefaultRegisterer
	Gatherer    prometheus.Gatherer   // Optional: defaults to prometheus.DefaultGatherer
	Logger      *slog.Logger
}

// NewServices wires repositories, role resolution and the auth flows.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database is required")
	}
	if deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	identity := deps.Identity
	if identity == nil {
		var err error
		identity, err = BuildIdentity(ctx, IdentityConfig{Auth: cfg.Auth, HTTP: cfg.HTTP, Logger: logger})
		if err != nil {
			return ServiceContainer{}, err
		}
	}

	var m *metrics.Metrics
	if cfg.Observability.Metrics.Enabled {
		m = metrics.New(metrics.Config{
			Namespace: cfg.Observability.Metrics.Namespace,
			Registry:  deps.Registry,
			Gatherer:  deps.Gatherer,
		})
	}

	adminRepo := data.NewAdminRepo(deps.DB)
	cache := data.NewRedisCacheRepo(deps.RedisClient)

	admins, err := service.NewCachedAdminDirectory(service.CachedAdminDirectoryOptions{
		Directory: adminRepo,
		Cache:     cache,
		TTL:       cfg.Auth.AdminCacheTTL,
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("admin directory: %w", err)
	}

	claims, err := authroles.NewClaimEvaluator(cfg.Auth.AdminClaimExpr)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("admin claim expression: %w", err)
	}

	resolverOpts := service.RoleResolverOptions{
		Directory: admins,
		Verifier:  identity.Verifier,
		Claims:    claims,
		Identity:  identity.Identity,
		Timeout:   cfg.Auth.RoleResolutionTimeout,
		Logger:    logger,
	}
	// A nil *Metrics stored in the interface would not compare equal to nil.
	if m != nil {
		resolverOpts.Observer = m
	}
	resolver, err := service.NewRoleResolver(resolverOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("role resolver: %w", err)
	}

	auth, err := service.NewAuthService(service.AuthServiceOptions{
		Identity:   identity.Identity,
		Verifier:   identity.Verifier,
		Sessions:   redisadapter.NewSessionStore(deps.RedisClient),
		Resolver:   resolver,
		Social:     identity.Social,
		States:     cache,
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("auth service: %w", err)
	}

	contexts, err := service.NewSessionContextFactory(service.SessionContextFactoryOptions{
		Resolver: resolver,
		Identity: identity.Identity,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("session contexts: %w", err)
	}

	return ServiceContainer{
		Auth:      auth,
		Contexts:  contexts,
		Resolver:  resolver,
		Admins:    admins,
		AdminRepo: adminRepo,
		Cache:     cache,
		Identity:  identity,
		Metrics:   m,
	}, nil
}

// socialNames lists the configured social provider names for startup logs.
func socialNames(providers []ports.SocialProvider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
