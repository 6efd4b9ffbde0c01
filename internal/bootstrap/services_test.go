package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrentals/portal/config"
	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/testutil"
)

func TestNewServices_RequiresInfrastructure(t *testing.T) {
	_, err := NewServices(context.Background(), nil)
	require.EqualError(t, err, "service config is required")

	_, err = NewServices(context.Background(), &ServiceDeps{Config: &config.AppConfig{}})
	require.EqualError(t, err, "database is required")
}

func TestNewServices_DirectoryGrantPromotesDevUser(t *testing.T) {
	db := testutil.SetupEphemeralSchemaDB(t)
	rdb := testutil.SetupTestRedis(t)
	ctx := context.Background()

	auth := mockAuthConfig()
	auth.DevAuth.Admin = false
	auth.AdminClaimExpr = "admin"
	auth.AdminCacheTTL = time.Minute
	auth.RoleResolutionTimeout = 5 * time.Second
	cfg := &config.AppConfig{IsDev: true, Auth: auth}
	cfg.Observability.Metrics.Enabled = true

	reg := prometheus.NewRegistry()
	svc, err := NewServices(ctx, &ServiceDeps{
		Config:      cfg,
		DB:          db,
		RedisClient: rdb,
		Registry:    reg,
		Gatherer:    reg,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, svc.Metrics)

	login, err := svc.Auth.SignInWithPassword(ctx, "dev@example.com", "dev")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleHost, login.Session.Role)
	assert.Equal(t, "/app/home", login.RedirectTo)

	_, err = svc.AdminRepo.Grant(ctx, "dev-user", "test")
	require.NoError(t, err)
	// The host answer above is cached until invalidated.
	require.NoError(t, svc.Admins.Invalidate(ctx, "dev-user"))

	login, err = svc.Auth.SignInWithPassword(ctx, "dev@example.com", "dev")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, login.Session.Role)
	assert.Equal(t, "/admin/dashboard", login.RedirectTo)

	stored, err := svc.Auth.GetSession(ctx, login.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, stored.Role)
}
