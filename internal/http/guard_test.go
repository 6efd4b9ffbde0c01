package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
)

type recordingGuardObserver struct {
	states []portal.GuardState
}

func (o *recordingGuardObserver) ObserveGuard(_ portal.Portal, s portal.GuardState) {
	o.states = append(o.states, s)
}

type failingSessions struct{}

func (failingSessions) GetSession(context.Context, string) (*domainauth.Session, error) {
	return nil, errors.New("redis: connection refused")
}

func serveGuard(t *testing.T, cfg GuardConfig, req *http.Request) (*httptest.ResponseRecorder, *domainauth.Session, bool) {
	t.Helper()
	var (
		called bool
		seen   *domainauth.Session
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen = GetSessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	PortalGuard(cfg)(next).ServeHTTP(rec, req)
	return rec, seen, called
}

func TestPortalGuard_SettlesMatchingRole(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "host-1", domainauth.RoleHost, domainauth.SourceDirectory)
	obs := &recordingGuardObserver{}

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/app/my-events", nil), sess.ID)
	rec, seen, called := serveGuard(t, GuardConfig{Sessions: f.svc, Observer: obs}, req)

	require.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "host-1", seen.UserID)
	assert.Equal(t, []portal.GuardState{portal.StateSettled}, obs.states)
}

func TestPortalGuard_AdminOnHostPortalGoesToDashboard(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "admin-1", domainauth.RoleAdmin, domainauth.SourceDirectory)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/app/home", nil), sess.ID)
	rec, _, called := serveGuard(t, GuardConfig{Sessions: f.svc}, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
}

func TestPortalGuard_HostOnAdminPortalGoesHome(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "host-1", domainauth.RoleHost, domainauth.SourceDirectory)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), sess.ID)
	rec, _, called := serveGuard(t, GuardConfig{Sessions: f.svc}, req)

	assert.False(t, called)
	assert.Equal(t, "/app/home", rec.Header().Get("Location"))
}

func TestPortalGuard_UnknownRoleGoesToLogin(t *testing.T) {
	f := newPortalFixture(t)

	rec, _, called := serveGuard(t, GuardConfig{Sessions: f.svc}, httptest.NewRequest(http.MethodGet, "/app/my-events", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/login", rec.Header().Get("Location"))
}

func TestPortalGuard_APIClientsGetJSONRedirect(t *testing.T) {
	f := newPortalFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Accept", "application/json")
	rec, _, _ := serveGuard(t, GuardConfig{Sessions: f.svc}, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"redirect_to":"/admin/login"}`, rec.Body.String())
}

func TestPortalGuard_StaleSessionIsCleared(t *testing.T) {
	f := newPortalFixture(t)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/app/home", nil), "missing")
	rec, _, called := serveGuard(t, GuardConfig{Sessions: f.svc}, req)

	assert.False(t, called)
	assert.Equal(t, "/app/login", rec.Header().Get("Location"))
	ck := findCookie(rec.Result(), DefaultAuthCookieName)
	require.NotNil(t, ck)
	assert.Negative(t, ck.MaxAge)
}

func TestPortalGuard_PendingWhenStoreUnavailable(t *testing.T) {
	obs := &recordingGuardObserver{}
	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), "sess-1")
	rec, _, called := serveGuard(t, GuardConfig{Sessions: failingSessions{}, Observer: obs}, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, []portal.GuardState{portal.StatePending}, obs.states)
}

func TestPortalGuard_PublicAndForeignPathsPass(t *testing.T) {
	for _, path := range []string{"/admin/login", "/app/login", "/app/register", "/", "/pricing"} {
		t.Run(path, func(t *testing.T) {
			req := withSessionCookie(httptest.NewRequest(http.MethodGet, path, nil), "sess-1")
			rec, _, called := serveGuard(t, GuardConfig{Sessions: failingSessions{}}, req)
			assert.True(t, called)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}
