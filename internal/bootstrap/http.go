package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eventrentals/portal/config"
	httpx "github.com/eventrentals/portal/internal/http"
	"github.com/eventrentals/portal/internal/ports"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB // Optional: readiness check
	Logger   *slog.Logger
}

// BuildHTTPHandler assembles the router for the portal.
func BuildHTTPHandler(cfg *HTTPServerConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	pages := httpx.PlaceholderPages()
	if appCfg.HTTP.PagesUpstream != "" {
		upstream, err := url.Parse(appCfg.HTTP.PagesUpstream)
		if err != nil {
			return nil, fmt.Errorf("parse pages upstream: %w", err)
		}
		pages = httpx.NewPagesProxy(upstream, logger)
	}

	return httpx.NewRouter(httpx.RouterServices{
		Auth:      cfg.Services.Auth,
		Contexts:  cfg.Services.Contexts,
		Pages:     pages,
		Cookies:   httpx.Cookies{AuthName: appCfg.Auth.CookieName, Domain: appCfg.HTTP.CookieDomain},
		Metrics:   cfg.Services.Metrics,
		Readiness: readinessChecks(cfg.DB, sessionCache(cfg.Services)),
		CSRF:      appCfg.HTTP.CSRFEnabled,
		Logger:    logger,
	}), nil
}

// sessionCache returns the container's cache, or nil when none was built.
func sessionCache(s ServiceContainer) ports.CacheRepository {
	if s.Cache == nil {
		return nil
	}
	return s.Cache
}

func readinessChecks(db *sql.DB, cache ports.CacheRepository) []httpx.ReadinessCheck {
	var checks []httpx.ReadinessCheck
	if db != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "postgres", Check: db.PingContext})
	}
	if cache != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "redis", Check: cache.Health})
	}
	return checks
}

// NewHTTPServer builds an unstarted server from the HTTP configuration.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// ServiceOrchestrationConfig groups dependencies for RunServicesWithShutdown.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves HTTP until SIGINT/SIGTERM and then drains
// in-flight requests within the configured shutdown timeout.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := BuildHTTPHandler(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		DB:       cfg.DB,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	server := NewHTTPServer(cfg.Config.HTTP, handler)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "starting HTTP server",
			"addr", server.Addr,
			"social_providers", socialNames(cfg.Services.Identity.socialOrNil()),
		)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", serveErr)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Server:  server,
			Timeout: cfg.Config.HTTP.ShutdownTimeout,
			Logger:  logger,
		})
	})
	return g.Wait()
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// The parent context is already canceled at this point.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
