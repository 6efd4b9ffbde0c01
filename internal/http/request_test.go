package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBrowserRequest(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    bool
	}{
		{name: "page without accept", path: "/app/home", want: true},
		{name: "html navigation", path: "/admin/users", headers: map[string]string{"Accept": "text/html,application/xhtml+xml"}, want: true},
		{name: "api path", path: "/api/session", want: false},
		{name: "htmx", path: "/app/home", headers: map[string]string{"Hx-Request": "true"}, want: false},
		{name: "json accept", path: "/auth/logout", headers: map[string]string{"Accept": "application/json"}, want: false},
		{name: "xhr", path: "/auth/logout", headers: map[string]string{"X-Requested-With": "XMLHttpRequest"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, IsBrowserRequest(req))
		})
	}
}

func TestRespondRedirect(t *testing.T) {
	rec := httptest.NewRecorder()
	respondRedirect(rec, httptest.NewRequest(http.MethodGet, "/app/home", nil), "/admin/dashboard", http.StatusForbidden)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/app/home", nil)
	req.Header.Set("Hx-Request", "true")
	rec = httptest.NewRecorder()
	respondRedirect(rec, req, "/admin/dashboard", http.StatusForbidden)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Hx-Redirect"))
	assert.JSONEq(t, `{"redirect_to":"/admin/dashboard"}`, rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "bearer abc.def")
	assert.Equal(t, "abc.def", bearerToken(req))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, bearerToken(req))
}

func TestSafeRedirectPath(t *testing.T) {
	cases := map[string]string{
		"":                     "/",
		"/app/home":            "/app/home",
		"/admin/users?page=2":  "/admin/users?page=2",
		"https://evil.example": "/",
		"//evil.example/x":     "/",
		"relative":             "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeRedirectPath(in), in)
	}
}
