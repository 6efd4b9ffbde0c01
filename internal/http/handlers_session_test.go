package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSetRole_RejectsUnknownRoleWithoutCookie(t *testing.T) {
	f := newPortalFixture(t)
	h := f.sessionHandlers()

	for _, role := range []string{"client", "", "ADMIN "} {
		t.Run(role, func(t *testing.T) {
			req := postJSON("/api/session/set-role", `{"role":"`+role+`"}`)
			req.Header.Set("Authorization", "Bearer host-token")
			rec := httptest.NewRecorder()
			h.SetRole(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_role", decodeBody(t, rec)["error"])
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestSetRole_WithVerifiedToken(t *testing.T) {
	f := newPortalFixture(t)
	h := f.sessionHandlers()

	req := postJSON("/api/session/set-role", `{"role":"admin"}`)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	h.SetRole(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, "/admin/dashboard", body["redirect_to"])

	ck := findCookie(rec.Result(), DefaultAuthCookieName)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	stored, err := f.sessions.Get(req.Context(), ck.Value)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, stored.Role)
}

func TestSetRole_HostCannotClaimAdmin(t *testing.T) {
	f := newPortalFixture(t)
	h := f.sessionHandlers()

	req := postJSON("/api/session/set-role", `{"role":"admin"}`)
	req.Header.Set("Authorization", "Bearer host-token")
	rec := httptest.NewRecorder()
	h.SetRole(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "role_mismatch", decodeBody(t, rec)["error"])
	assert.Nil(t, findCookie(rec.Result(), DefaultAuthCookieName))
}

func TestSetRole_RequiresIdentity(t *testing.T) {
	f := newPortalFixture(t)
	rec := httptest.NewRecorder()
	f.sessionHandlers().SetRole(rec, postJSON("/api/session/set-role", `{"role":"host"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetRole_UsesExistingSession(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "host-1", domainauth.RoleHost, domainauth.SourceDirectory)

	req := withSessionCookie(postJSON("/api/session/set-role", `{"role":"host"}`), sess.ID)
	rec := httptest.NewRecorder()
	f.sessionHandlers().SetRole(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	ck := findCookie(rec.Result(), DefaultAuthCookieName)
	require.NotNil(t, ck)
	assert.Equal(t, sess.ID, ck.Value)
}

func TestClearRole_IsIdempotent(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "host-1", domainauth.RoleHost, domainauth.SourceDirectory)
	h := f.sessionHandlers()

	for i := 0; i < 2; i++ {
		req := withSessionCookie(httptest.NewRequest(http.MethodPost, "/api/session/clear-role", nil), sess.ID)
		rec := httptest.NewRecorder()
		h.ClearRole(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"cleared"}`, rec.Body.String())
		ck := findCookie(rec.Result(), DefaultAuthCookieName)
		require.NotNil(t, ck)
		assert.Negative(t, ck.MaxAge)
	}
	assert.Equal(t, 0, f.sessions.Len())
}

func TestSessionState(t *testing.T) {
	f := newPortalFixture(t)
	h := f.sessionHandlers()

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.State(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["authenticated"])
		assert.Equal(t, "unknown", body["role"])
		assert.Equal(t, true, body["role_loaded"])
		assert.Equal(t, false, body["loading"])
	})

	t.Run("signed in", func(t *testing.T) {
		sess := f.seedSession(t, "admin-1", domainauth.RoleAdmin, domainauth.SourceDirectory)
		rec := httptest.NewRecorder()
		h.State(rec, withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/session", nil), sess.ID))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, "admin", body["role"])
		user, ok := body["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "admin-1", user["id"])
	})
}

func TestSessionGuardEndpoint(t *testing.T) {
	f := newPortalFixture(t)
	admin := f.seedSession(t, "admin-1", domainauth.RoleAdmin, domainauth.SourceDirectory)
	h := f.sessionHandlers()

	tests := []struct {
		name    string
		path    string
		session string
		want    string
	}{
		{name: "admin on host portal", path: "/app/home", session: admin.ID, want: `{"portal":"app","state":"redirecting","redirect_to":"/admin/dashboard"}`},
		{name: "admin on admin portal", path: "/admin/users", session: admin.ID, want: `{"portal":"admin","state":"settled"}`},
		{name: "anonymous", path: "/app/my-events", want: `{"portal":"app","state":"redirecting","redirect_to":"/app/login"}`},
		{name: "public page", path: "/admin/login", want: `{"portal":"admin","state":"settled"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/session/guard?path="+tt.path, nil)
			if tt.session != "" {
				req = withSessionCookie(req, tt.session)
			}
			rec := httptest.NewRecorder()
			h.Guard(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}

	t.Run("outside portals", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Guard(rec, httptest.NewRequest(http.MethodGet, "/api/session/guard?path=/pricing", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefresh_PicksUpRevokedAdmin(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "admin-1", domainauth.RoleAdmin, domainauth.SourceDirectory)
	inactive := false
	f.dir.Put(domainauth.AdminMembership{UserID: "admin-1", Active: &inactive})

	req := withSessionCookie(postJSON("/api/session/refresh", `{"path":"/admin/dashboard"}`), sess.ID)
	rec := httptest.NewRecorder()
	f.sessionHandlers().Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "host", body["role"])
	assert.Equal(t, "/app/home", body["redirect_to"])

	stored, err := f.sessions.Get(req.Context(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleHost, stored.Role)
}

func TestRefresh_KeepsClaimGrantedRoleWithoutToken(t *testing.T) {
	f := newPortalFixture(t)
	sess := f.seedSession(t, "claims-admin", domainauth.RoleAdmin, domainauth.SourceClaim)

	req := withSessionCookie(httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil), sess.ID)
	rec := httptest.NewRecorder()
	f.sessionHandlers().Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeBody(t, rec)["role"])
	assert.Equal(t, 0, f.dir.Calls())
}

func TestRefresh_RequiresSession(t *testing.T) {
	f := newPortalFixture(t)
	rec := httptest.NewRecorder()
	f.sessionHandlers().Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/session/refresh", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
