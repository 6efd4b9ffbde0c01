package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventrentals/portal/internal/domain/auth"
)

func TestForPath(t *testing.T) {
	cases := map[string]Portal{
		"/admin":              Admin,
		"/admin/":             Admin,
		"/admin/dashboard":    Admin,
		"/admin/users/42":     Admin,
		"/administrator":      None,
		"/app":                Host,
		"/app/home":           Host,
		"/app/my-events":      Host,
		"/apple":              None,
		"/":                   None,
		"/products/tents":     None,
		"/api/session/status": None,
	}
	for path, want := range cases {
		assert.Equal(t, want, ForPath(path), path)
	}
}

func TestIsPublicPath(t *testing.T) {
	public := []string{
		"/admin/login", "/admin/forgot-password", "/admin/login/",
		"/app/login", "/app/register", "/app/forgot-password", "/app/register/",
	}
	for _, p := range public {
		assert.True(t, IsPublicPath(p), p)
	}

	private := []string{
		"/admin", "/admin/register", "/admin/dashboard", "/admin/login/extra",
		"/app", "/app/home", "/app/logins", "/", "/login",
	}
	for _, p := range private {
		assert.False(t, IsPublicPath(p), p)
	}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/admin/login", LoginPath(Admin))
	assert.Equal(t, "/app/login", LoginPath(Host))
	assert.Equal(t, "/admin/dashboard", LandingPath(Admin))
	assert.Equal(t, "/app/home", LandingPath(Host))
	assert.Equal(t, HomePath, LandingPath(None))
	assert.Equal(t, "/admin/dashboard", LandingPathForRole(auth.RoleAdmin))
	assert.Equal(t, "/app/home", LandingPathForRole(auth.RoleHost))
	assert.Equal(t, HomePath, LandingPathForRole(auth.RoleUnknown))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Admin, Parse("admin"))
	assert.Equal(t, Host, Parse("app"))
	assert.Equal(t, Host, Parse("HOST"))
	assert.Equal(t, None, Parse("client"))
}

func TestPublicPaths_ReturnsCopy(t *testing.T) {
	paths := PublicPaths(Host)
	paths[0] = "/mutated"
	assert.Equal(t, "/app/login", PublicPaths(Host)[0])
}
