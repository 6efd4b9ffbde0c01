// Command portal-admin manages admin memberships and the membership schema.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/eventrentals/portal/internal/bootstrap"
	"github.com/eventrentals/portal/internal/data"
	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/migrate"
	"github.com/eventrentals/portal/internal/service"
)

func main() {
	logger := bootstrap.InitLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(openInfra(logger)).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal failure to shell scripts
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "portal-admin",
		Short:         "Manage portal admins and the membership database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(open),
		grantCmd(open),
		revokeCmd(open),
		deleteCmd(open),
		listCmd(open),
		showCmd(open),
		checkAccessCmd(open),
	)
	return root
}

// infra is what a subcommand needs. Cache is nil when Redis is unreachable.
type infra struct {
	Admins   adminStore
	Cache    cacheInvalidator
	Resolver roleResolver
	Migrator migrator
	Close    func()
}

type opener func(ctx context.Context) (*infra, error)

type adminStore interface {
	GetAdmin(ctx context.Context, userID string) (domainauth.AdminMembership, error)
	Grant(ctx context.Context, userID, actor string) (domainauth.AdminMembership, error)
	Revoke(ctx context.Context, userID, actor string) (domainauth.AdminMembership, error)
	Delete(ctx context.Context, userID, actor string) (bool, error)
	List(ctx context.Context, opts data.AdminListOptions) ([]domainauth.AdminMembership, error)
	AuditTrail(ctx context.Context, userID string, limit int) ([]domainauth.AdminAuditEntry, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type roleResolver interface {
	Resolve(ctx context.Context, in service.ResolveInput) domainauth.Resolution
}

type migrator interface {
	Run(ctx context.Context) error
	Pending(ctx context.Context) ([]string, error)
}

type sqlMigrator struct{ db *sql.DB }

func (m sqlMigrator) Run(ctx context.Context) error { return migrate.Run(ctx, m.db) }

func (m sqlMigrator) Pending(ctx context.Context) ([]string, error) {
	return migrate.Pending(ctx, m.db)
}

// openInfra loads configuration and connects to Postgres and, best effort, Redis.
func openInfra(logger *slog.Logger) opener {
	return func(ctx context.Context) (*infra, error) {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			return nil, err
		}
		dbCfg := bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

		db, err := bootstrap.ConnectDB(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		repo := data.NewAdminRepo(db)

		resolver, err := service.NewRoleResolver(service.RoleResolverOptions{
			Directory: repo,
			Timeout:   cfg.Auth.RoleResolutionTimeout,
			Logger:    logger,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		out := &infra{
			Admins:   repo,
			Resolver: resolver,
			Migrator: sqlMigrator{db: db},
		}
		var client redis.UniversalClient
		client, err = bootstrap.ConnectRedis(ctx, dbCfg)
		if err != nil {
			logger.WarnContext(ctx, "redis unavailable; cached memberships expire on their own",
				"ttl", cfg.Auth.AdminCacheTTL, "error", err)
		} else {
			cache, cacheErr := service.NewCachedAdminDirectory(service.CachedAdminDirectoryOptions{
				Directory: repo,
				Cache:     data.NewRedisCacheRepo(client),
				TTL:       cfg.Auth.AdminCacheTTL,
				Logger:    logger,
			})
			if cacheErr != nil {
				_ = client.Close()
				_ = db.Close()
				return nil, cacheErr
			}
			out.Cache = cache
		}

		out.Close = func() {
			if client != nil {
				if cerr := client.Close(); cerr != nil {
					logger.Error("close redis failed", "error", cerr)
				}
			}
			if cerr := db.Close(); cerr != nil {
				logger.Error("close database failed", "error", cerr)
			}
		}
		return out, nil
	}
}

// withInfra opens the infrastructure for the duration of fn.
func withInfra(cmd *cobra.Command, open opener, fn func(ctx context.Context, in *infra) error) error {
	ctx := cmd.Context()
	in, err := open(ctx)
	if err != nil {
		return err
	}
	if in.Close != nil {
		defer in.Close()
	}
	return fn(ctx, in)
}
