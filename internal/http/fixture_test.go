package httpx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	authmocks "github.com/eventrentals/portal/internal/mocks/auth"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

type portalFixture struct {
	svc      *service.AuthService
	idp      *authmocks.MockIdentityProvider
	sessions *authmocks.MemorySessionStore
	dir      *authmocks.MemoryAdminDirectory
	verifier *authmocks.StaticTokenVerifier
	google   *authmocks.MockSocialProvider
	contexts *service.SessionContextFactory
	cookies  Cookies
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	idp := authmocks.NewMockIdentityProvider()
	sessions := authmocks.NewMemorySessionStore()
	dir := authmocks.NewMemoryAdminDirectory(domainauth.AdminMembership{UserID: "admin-1"})
	verifier := &authmocks.StaticTokenVerifier{Tokens: map[string]authmocks.VerifiedToken{
		"admin-token": {Principal: domainauth.Principal{UserID: "admin-1", Email: "boss@example.com"}},
		"host-token":  {Principal: domainauth.Principal{UserID: "host-1", Email: "host@example.com"}},
	}}
	google := authmocks.NewMockSocialProvider("google")

	resolver := service.MustNewRoleResolver(service.RoleResolverOptions{Directory: dir})
	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Identity:   idp,
		Verifier:   verifier,
		Sessions:   sessions,
		Resolver:   resolver,
		Social:     []ports.SocialProvider{google},
		SessionTTL: time.Hour,
	})
	require.NoError(t, err)
	contexts, err := service.NewSessionContextFactory(service.SessionContextFactoryOptions{Resolver: resolver, Identity: idp})
	require.NoError(t, err)

	return &portalFixture{
		svc:      svc,
		idp:      idp,
		sessions: sessions,
		dir:      dir,
		verifier: verifier,
		google:   google,
		contexts: contexts,
	}
}

// seedSession stores a live session for userID with the given role.
func (f *portalFixture) seedSession(t *testing.T, userID string, role domainauth.Role, source domainauth.ResolutionSource) domainauth.Session {
	t.Helper()
	sess := domainauth.Session{
		ID:         "sess-" + userID,
		UserID:     userID,
		Email:      userID + "@example.com",
		Role:       role,
		RoleSource: source,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	require.NoError(t, f.sessions.Save(context.Background(), sess))
	return sess
}

func (f *portalFixture) sessionHandlers() *SessionHandlers {
	return &SessionHandlers{Svc: f.svc, Contexts: f.contexts, Cookies: f.cookies}
}

func (f *portalFixture) authHandlers() *AuthHandlers {
	return &AuthHandlers{Svc: f.svc, Cookies: f.cookies}
}

func withSessionCookie(r *http.Request, id string) *http.Request {
	r.AddCookie(&http.Cookie{Name: DefaultAuthCookieName, Value: id})
	return r
}
