package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrentals/portal/internal/data"
	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memoryAdmins struct {
	rows  map[string]domainauth.AdminMembership
	audit []domainauth.AdminAuditEntry
}

func newMemoryAdmins() *memoryAdmins {
	return &memoryAdmins{rows: map[string]domainauth.AdminMembership{}}
}

func (m *memoryAdmins) record(userID string, action domainauth.AdminAction, actor string) {
	m.audit = append(m.audit, domainauth.AdminAuditEntry{
		ID: int64(len(m.audit) + 1), UserID: userID, Action: action, Actor: actor, CreatedAt: fixedTime,
	})
}

func (m *memoryAdmins) GetAdmin(_ context.Context, userID string) (domainauth.AdminMembership, error) {
	row, ok := m.rows[userID]
	if !ok {
		return domainauth.AdminMembership{}, ports.ErrAdminNotFound
	}
	return row, nil
}

func (m *memoryAdmins) Grant(_ context.Context, userID, actor string) (domainauth.AdminMembership, error) {
	active := true
	row := domainauth.AdminMembership{UserID: userID, Active: &active, CreatedAt: fixedTime, UpdatedAt: fixedTime}
	m.rows[userID] = row
	m.record(userID, domainauth.AdminGranted, actor)
	return row, nil
}

func (m *memoryAdmins) Revoke(_ context.Context, userID, actor string) (domainauth.AdminMembership, error) {
	row, ok := m.rows[userID]
	if !ok {
		return domainauth.AdminMembership{}, ports.ErrAdminNotFound
	}
	inactive := false
	row.Active = &inactive
	m.rows[userID] = row
	m.record(userID, domainauth.AdminRevoked, actor)
	return row, nil
}

func (m *memoryAdmins) Delete(_ context.Context, userID, actor string) (bool, error) {
	if _, ok := m.rows[userID]; !ok {
		return false, nil
	}
	delete(m.rows, userID)
	m.record(userID, domainauth.AdminDeleted, actor)
	return true, nil
}

func (m *memoryAdmins) List(_ context.Context, opts data.AdminListOptions) ([]domainauth.AdminMembership, error) {
	var out []domainauth.AdminMembership
	for _, row := range m.rows {
		if opts.ActiveOnly && !row.Grants() {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memoryAdmins) AuditTrail(_ context.Context, userID string, limit int) ([]domainauth.AdminAuditEntry, error) {
	var out []domainauth.AdminAuditEntry
	for _, e := range m.audit {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingCache struct {
	invalidated []string
	err         error
}

func (c *recordingCache) Invalidate(_ context.Context, userID string) error {
	c.invalidated = append(c.invalidated, userID)
	return c.err
}

type fakeMigrator struct {
	pending []string
	ran     bool
}

func (f *fakeMigrator) Run(context.Context) error {
	f.ran = true
	f.pending = nil
	return nil
}

func (f *fakeMigrator) Pending(context.Context) ([]string, error) { return f.pending, nil }

type testEnv struct {
	admins   *memoryAdmins
	cache    *recordingCache
	migrator *fakeMigrator
	in       *infra
	closed   int
}

func newTestEnv() *testEnv {
	env := &testEnv{
		admins:   newMemoryAdmins(),
		cache:    &recordingCache{},
		migrator: &fakeMigrator{},
	}
	env.in = &infra{
		Admins:   env.admins,
		Cache:    env.cache,
		Resolver: service.MustNewRoleResolver(service.RoleResolverOptions{Directory: env.admins}),
		Migrator: env.migrator,
		Close:    func() { env.closed++ },
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(func(context.Context) (*infra, error) { return e.in, nil })
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestGrantRevokeDelete_InvalidateCache(t *testing.T) {
	env := newTestEnv()

	out, _, err := env.run(t, "grant", "user-1", "--actor", "ops")
	require.NoError(t, err)
	assert.Equal(t, "granted admin to user-1\n", out)

	out, _, err = env.run(t, "revoke", "user-1", "--actor", "ops")
	require.NoError(t, err)
	assert.Equal(t, "revoked admin from user-1\n", out)
	assert.False(t, env.admins.rows["user-1"].Grants())

	out, _, err = env.run(t, "delete", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "deleted admin membership of user-1\n", out)

	assert.Equal(t, []string{"user-1", "user-1", "user-1"}, env.cache.invalidated)
	assert.Equal(t, 3, env.closed)
	require.Len(t, env.admins.audit, 3)
	assert.Equal(t, "ops", env.admins.audit[0].Actor)
}

func TestRevoke_UnknownUser(t *testing.T) {
	env := newTestEnv()

	_, _, err := env.run(t, "revoke", "ghost")
	require.EqualError(t, err, "user ghost has no admin membership")
	assert.Empty(t, env.cache.invalidated)
}

func TestDelete_MissingRecordSkipsInvalidation(t *testing.T) {
	env := newTestEnv()

	out, _, err := env.run(t, "delete", "ghost")
	require.NoError(t, err)
	assert.Equal(t, "no admin membership for ghost\n", out)
	assert.Empty(t, env.cache.invalidated)
}

func TestGrant_WarnsWithoutCache(t *testing.T) {
	env := newTestEnv()
	env.in.Cache = nil

	_, stderr, err := env.run(t, "grant", "user-1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "admin cache not invalidated for user-1")
}

func TestGrant_CacheFailureIsAWarning(t *testing.T) {
	env := newTestEnv()
	env.cache.err = errors.New("redis down")

	_, stderr, err := env.run(t, "grant", "user-1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "invalidate admin cache for user-1: redis down")
}

func TestGrant_RequiresUserID(t *testing.T) {
	env := newTestEnv()

	_, _, err := env.run(t, "grant")
	require.Error(t, err)
	assert.Equal(t, 0, env.closed)
}

func TestList(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.run(t, "grant", "user-1")
	require.NoError(t, err)

	out, _, err := env.run(t, "list", "--json")
	require.NoError(t, err)
	var views []membershipView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "user-1", views[0].UserID)
	assert.True(t, views[0].Active)

	_, _, err = env.run(t, "revoke", "user-1")
	require.NoError(t, err)
	out, _, err = env.run(t, "list", "--active")
	require.NoError(t, err)
	assert.Equal(t, "no admin memberships\n", out)
}

func TestShow_IncludesAuditTrail(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.run(t, "grant", "user-1", "--actor", "ops")
	require.NoError(t, err)

	out, _, err := env.run(t, "show", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "user-1")
	assert.Contains(t, out, "grant")
	assert.Contains(t, out, "ops")

	out, _, err = env.run(t, "show", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "ghost: no admin membership")
	assert.Contains(t, out, "no audit entries")
}

func TestCheckAccess(t *testing.T) {
	env := newTestEnv()

	out, _, err := env.run(t, "check-access", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1: role=host source=directory landing=/app/home\n", out)

	_, _, err = env.run(t, "grant", "user-1")
	require.NoError(t, err)
	out, _, err = env.run(t, "check-access", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1: role=admin source=directory landing=/admin/dashboard\n", out)
}

func TestMigrate(t *testing.T) {
	env := newTestEnv()
	env.migrator.pending = []string{"0001_admins", "0002_admin_audit"}

	out, _, err := env.run(t, "migrate", "--status")
	require.NoError(t, err)
	assert.Equal(t, "pending 0001_admins\npending 0002_admin_audit\n", out)
	assert.False(t, env.migrator.ran)

	out, _, err = env.run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "applied 2 migration(s)\n", out)
	assert.True(t, env.migrator.ran)

	out, _, err = env.run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema is up to date\n", out)
}
