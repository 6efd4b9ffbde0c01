package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	authmocks "github.com/eventrentals/portal/internal/mocks/auth"
)

type resolverFunc func(ctx context.Context, in ResolveInput) domainauth.Resolution

func (f resolverFunc) Resolve(ctx context.Context, in ResolveInput) domainauth.Resolution {
	return f(ctx, in)
}

type sessionFixture struct {
	sc        *SessionContext
	idp       *authmocks.MockIdentityProvider
	clearer   *authmocks.RecordingClearer
	navigator *authmocks.RecordingNavigator
	dir       *authmocks.MemoryAdminDirectory
}

func newSessionFixture(t *testing.T, members ...domainauth.AdminMembership) *sessionFixture {
	t.Helper()
	dir := authmocks.NewMemoryAdminDirectory(members...)
	idp := authmocks.NewMockIdentityProvider()
	resolver := MustNewRoleResolver(RoleResolverOptions{Directory: dir})
	factory, err := NewSessionContextFactory(SessionContextFactoryOptions{Resolver: resolver, Identity: idp})
	require.NoError(t, err)

	clearer := &authmocks.RecordingClearer{}
	navigator := &authmocks.RecordingNavigator{}
	return &sessionFixture{
		sc:        factory.New(SessionHooks{Clearer: clearer, Navigator: navigator}),
		idp:       idp,
		clearer:   clearer,
		navigator: navigator,
		dir:       dir,
	}
}

func signedIn(id string) domainauth.AuthEvent {
	return domainauth.AuthEvent{Principal: &domainauth.Principal{UserID: id, Email: id + "@example.com"}}
}

func TestNewSessionContextFactory_RequiresResolver(t *testing.T) {
	_, err := NewSessionContextFactory(SessionContextFactoryOptions{})
	require.Error(t, err)
}

func TestSessionContext_InitialStateIsLoading(t *testing.T) {
	f := newSessionFixture(t)
	st := f.sc.Snapshot()
	assert.True(t, st.Loading)
	assert.False(t, st.RoleLoaded)
	assert.Nil(t, st.User)
	assert.Equal(t, domainauth.RoleUnknown, st.Role)
}

func TestSessionContext_ResolvesOnSignIn(t *testing.T) {
	f := newSessionFixture(t, domainauth.AdminMembership{UserID: "a1"})

	var states []SessionState
	f.sc.Subscribe(func(st SessionState) { states = append(states, st) })

	st := f.sc.HandleAuthStateChange(context.Background(), signedIn("a1"))
	assert.Equal(t, domainauth.RoleAdmin, st.Role)
	assert.False(t, st.Loading)
	assert.True(t, st.RoleLoaded)
	require.NotNil(t, st.User)
	assert.Equal(t, "a1", st.User.UserID)

	require.Len(t, states, 2)
	assert.True(t, states[0].Loading, "pending state is published first")
	assert.False(t, states[0].RoleLoaded)
	assert.Equal(t, domainauth.RoleAdmin, states[1].Role)
	assert.Equal(t, 0, f.clearer.Calls())
}

func TestSessionContext_SignedOutEventClearsOnce(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.sc.HandleAuthStateChange(ctx, signedIn("h1"))
	st := f.sc.HandleAuthStateChange(ctx, domainauth.AuthEvent{})
	assert.Equal(t, domainauth.RoleUnknown, st.Role)
	assert.Nil(t, st.User)
	assert.True(t, st.RoleLoaded)
	assert.False(t, st.Loading)

	f.sc.HandleAuthStateChange(ctx, domainauth.AuthEvent{})
	assert.Equal(t, 1, f.clearer.Calls())
}

func TestSessionContext_SignOut(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.sc.HandleAuthStateChange(ctx, signedIn("h1"))

	require.NoError(t, f.sc.SignOut(ctx))

	st := f.sc.Snapshot()
	assert.Equal(t, domainauth.RoleUnknown, st.Role)
	assert.Nil(t, st.User)
	assert.Equal(t, 1, f.clearer.Calls(), "session-clearing call is made exactly once")
	assert.Equal(t, 1, f.idp.SignOutCalls())
	assert.Equal(t, []string{"/"}, f.navigator.Paths())

	// The identity provider echoing the sign-out must not clear again.
	f.sc.HandleAuthStateChange(ctx, domainauth.AuthEvent{})
	assert.Equal(t, 1, f.clearer.Calls())
}

func TestSessionContext_SignOutReportsIdentityError(t *testing.T) {
	f := newSessionFixture(t)
	f.idp.SignOutFunc = func(context.Context, string) error { return errors.New("offline") }
	ctx := context.Background()
	f.sc.HandleAuthStateChange(ctx, signedIn("h1"))

	err := f.sc.SignOut(ctx)
	require.Error(t, err)
	assert.Equal(t, domainauth.RoleUnknown, f.sc.Snapshot().Role, "local sign-out still happens")
	assert.Equal(t, 1, f.clearer.Calls())
}

func TestSessionContext_CheckIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, domainauth.AdminMembership{UserID: "a1"})
	ctx := context.Background()
	f.sc.HandleAuthStateChange(ctx, signedIn("a1"))

	first := f.sc.Check(ctx)
	second := f.sc.Check(ctx)
	assert.Equal(t, domainauth.RoleAdmin, first.Role)
	assert.Equal(t, first.Role, second.Role)
	assert.Equal(t, first.Resolution, second.Resolution)
}

func TestSessionContext_CheckWithoutUser(t *testing.T) {
	f := newSessionFixture(t)
	st := f.sc.Check(context.Background())
	assert.True(t, st.Loading)
	assert.Equal(t, 0, f.dir.Calls())
}

func TestSessionContext_RedirectsMisplacedUser(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		members []domainauth.AdminMembership
		dirErr  error
		want    []string
	}{
		{name: "admin on host page", path: "/app/home", members: []domainauth.AdminMembership{{UserID: "u1"}}, want: []string{"/admin/dashboard"}},
		{name: "host on admin page", path: "/admin/dashboard", want: []string{"/app/home"}},
		{name: "host on host page", path: "/app/my-events", want: nil},
		{name: "admin on admin page", path: "/admin/users", members: []domainauth.AdminMembership{{UserID: "u1"}}, want: nil},
		{name: "failure on admin page", path: "/admin/dashboard", dirErr: errors.New("down"), want: []string{"/app/home"}},
		{name: "failure on host page", path: "/app/home", dirErr: errors.New("down"), want: nil},
		{name: "marketing page", path: "/products", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, tt.members...)
			f.dir.Err = tt.dirErr
			f.sc.SetCurrentPath(tt.path)

			f.sc.HandleAuthStateChange(context.Background(), signedIn("u1"))
			assert.Equal(t, tt.want, f.navigator.Paths())
		})
	}
}

func TestSessionContext_DiscardsStaleResolution(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	resolver := resolverFunc(func(_ context.Context, in ResolveInput) domainauth.Resolution {
		if in.Principal.UserID == "slow" {
			close(entered)
			<-release
			return domainauth.ResolveAdmin(domainauth.SourceDirectory)
		}
		return domainauth.ResolveHost(domainauth.SourceDirectory)
	})
	factory, err := NewSessionContextFactory(SessionContextFactoryOptions{Resolver: resolver})
	require.NoError(t, err)
	sc := factory.New(SessionHooks{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sc.HandleAuthStateChange(ctx, signedIn("slow"))
	}()
	<-entered

	sc.HandleAuthStateChange(ctx, signedIn("fast"))
	close(release)
	wg.Wait()

	st := sc.Snapshot()
	require.NotNil(t, st.User)
	assert.Equal(t, "fast", st.User.UserID)
	assert.Equal(t, domainauth.RoleHost, st.Role)
}

func TestSessionContext_BindFollowsAuthStateSource(t *testing.T) {
	f := newSessionFixture(t)
	feed := authmocks.NewAuthStateFeed()
	unbind := f.sc.Bind(context.Background(), feed)

	feed.Publish(signedIn("h1"))
	assert.Equal(t, domainauth.RoleHost, f.sc.Snapshot().Role)

	feed.Publish(domainauth.AuthEvent{})
	assert.Equal(t, domainauth.RoleUnknown, f.sc.Snapshot().Role)
	assert.Equal(t, 1, f.clearer.Calls())

	unbind()
	assert.Equal(t, 0, feed.Subscribers())
}

func TestSessionContext_Adopt(t *testing.T) {
	f := newSessionFixture(t)
	st := f.sc.Adopt(&domainauth.Principal{UserID: "a1"}, domainauth.RoleAdmin)

	assert.Equal(t, domainauth.RoleAdmin, st.Role)
	assert.True(t, st.RoleLoaded)
	assert.False(t, st.Loading)
	assert.Equal(t, domainauth.SourceSession, st.Resolution.Source)
	assert.Equal(t, 0, f.dir.Calls(), "adopting does not resolve")
}

func TestSessionContext_SnapshotIsACopy(t *testing.T) {
	f := newSessionFixture(t)
	f.sc.HandleAuthStateChange(context.Background(), signedIn("h1"))

	st := f.sc.Snapshot()
	st.User.UserID = "mutated"
	assert.Equal(t, "h1", f.sc.Snapshot().User.UserID)
}
