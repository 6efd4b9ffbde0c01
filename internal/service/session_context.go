package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
)

// SessionState is a value snapshot of a SessionContext.
type SessionState struct {
	User       *domainauth.Principal
	Role       domainauth.Role
	Loading    bool
	RoleLoaded bool
	Resolution domainauth.Resolution
}

// SessionHooks are the side effects a SessionContext may trigger.
type SessionHooks struct {
	Clearer   ports.SessionClearer // session-clearing call on sign-out
	Navigator ports.Navigator      // client-side redirect
}

// SessionContextFactory builds SessionContexts that share a resolver and identity provider.
// It is constructed once at start and injected where contexts are needed.
type SessionContextFactory struct {
	resolver Resolver
	identity ports.IdentityProvider
	logger   *slog.Logger
}

// SessionContextFactoryOptions groups dependencies for SessionContextFactory.
type SessionContextFactoryOptions struct {
	Resolver Resolver               // Required
	Identity ports.IdentityProvider // Optional: used by SignOut
	Logger   *slog.Logger           // Optional
}

// NewSessionContextFactory constructs a SessionContextFactory.
func NewSessionContextFactory(opts SessionContextFactoryOptions) (*SessionContextFactory, error) {
	if opts.Resolver == nil {
		return nil, errors.New("Resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionContextFactory{resolver: opts.Resolver, identity: opts.Identity, logger: logger}, nil
}

// New returns a SessionContext for one client, wired to hooks.
func (f *SessionContextFactory) New(hooks SessionHooks) *SessionContext {
	return newSessionContext(f.resolver, f.identity, hooks, f.logger)
}

// SessionContext holds the identity and resolved role of one client and keeps
// them current as auth-state events arrive.
//
// Every auth-state change drops the context back to loading, resolves the role
// and publishes the new state to subscribers. Results from a resolution that was
// overtaken by a newer event are discarded.
type SessionContext struct {
	resolver Resolver
	identity ports.IdentityProvider
	hooks    SessionHooks
	logger   *slog.Logger

	mu      sync.Mutex
	state   SessionState
	input   ResolveInput
	path    string
	gen     uint64
	cleared bool
	guards  int
	subs    map[int]func(SessionState)
	nextSub int
}

func newSessionContext(resolver Resolver, identity ports.IdentityProvider, hooks SessionHooks, logger *slog.Logger) *SessionContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionContext{
		resolver: resolver,
		identity: identity,
		hooks:    hooks,
		logger:   logger.With("component", "session_context"),
		state:    SessionState{Loading: true, Resolution: domainauth.ResolveUnknown()},
		subs:     make(map[int]func(SessionState)),
	}
}

// Snapshot returns the current state.
func (s *SessionContext) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// SetCurrentPath records the path the client is viewing.
func (s *SessionContext) SetCurrentPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

// Subscribe registers fn for state changes. fn is called outside the lock and must not block.
func (s *SessionContext) Subscribe(fn func(SessionState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// attachGuard marks the current path as owned by a mounted layout guard. While
// any guard is attached the context leaves redirects to it.
func (s *SessionContext) attachGuard() (detach func()) {
	s.mu.Lock()
	s.guards++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.guards--
			s.mu.Unlock()
		})
	}
}

// Bind subscribes the context to an auth-state source.
func (s *SessionContext) Bind(ctx context.Context, src ports.AuthStateSource) (unbind func()) {
	return src.Subscribe(func(ev domainauth.AuthEvent) {
		s.HandleAuthStateChange(ctx, ev)
	})
}

// Adopt installs an already-resolved identity, typically restored from a server session.
func (s *SessionContext) Adopt(user *domainauth.Principal, role domainauth.Role) SessionState {
	s.mu.Lock()
	s.gen++
	u := copyPrincipal(user)
	s.input = ResolveInput{Principal: u}
	s.cleared = u == nil
	s.state = SessionState{
		User:       u,
		Role:       role,
		RoleLoaded: true,
		Resolution: domainauth.ResolutionForRole(role, domainauth.SourceSession),
	}
	st, subs := s.publishLocked()
	s.mu.Unlock()

	notify(subs, st)
	return st
}

// HandleAuthStateChange processes a login, logout or token refresh.
func (s *SessionContext) HandleAuthStateChange(ctx context.Context, ev domainauth.AuthEvent) SessionState {
	user := copyPrincipal(ev.Principal)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.input = ResolveInput{Principal: user, IDToken: ev.IDToken, RefreshToken: ev.RefreshToken}

	if user == nil {
		shouldClear := !s.cleared
		s.cleared = true
		s.state = SessionState{RoleLoaded: true, Resolution: domainauth.ResolveUnknown()}
		st, subs := s.publishLocked()
		s.mu.Unlock()

		notify(subs, st)
		if shouldClear {
			s.clearRole(ctx)
		}
		return st
	}

	s.cleared = false
	s.state = SessionState{User: user, Loading: true, Resolution: domainauth.ResolveUnknown()}
	pending, subs := s.publishLocked()
	in := s.input
	s.mu.Unlock()
	notify(subs, pending)

	return s.finishResolve(ctx, gen, in)
}

// Check re-resolves the role of the current user without an auth-state change.
func (s *SessionContext) Check(ctx context.Context) SessionState {
	s.mu.Lock()
	if s.input.Principal == nil {
		st := copyState(s.state)
		s.mu.Unlock()
		return st
	}
	s.gen++
	gen := s.gen
	in := s.input
	s.mu.Unlock()

	return s.finishResolve(ctx, gen, in)
}

func (s *SessionContext) finishResolve(ctx context.Context, gen uint64, in ResolveInput) SessionState {
	res := s.resolver.Resolve(ctx, in)

	s.mu.Lock()
	if gen != s.gen {
		st := copyState(s.state)
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale role resolution", "user_id", in.Principal.UserID)
		return st
	}
	s.state = SessionState{
		User:       copyPrincipal(in.Principal),
		Role:       res.Role(),
		RoleLoaded: true,
		Resolution: res,
	}
	path := s.path
	guarded := s.guards > 0
	st, subs := s.publishLocked()
	s.mu.Unlock()

	notify(subs, st)
	if !guarded {
		s.redirectIfMisplaced(ctx, path, res)
	}
	return st
}

// SignOut signs the user out at the identity provider, drops the role and
// navigates home. The session-clearing call is made at most once.
func (s *SessionContext) SignOut(ctx context.Context) error {
	var err error
	if user := s.Snapshot().User; user != nil && s.identity != nil {
		if signOutErr := s.identity.SignOut(ctx, user.UserID); signOutErr != nil {
			s.logger.WarnContext(ctx, "identity provider sign-out failed", "user_id", user.UserID, "error", signOutErr)
			err = fmt.Errorf("identity sign-out: %w", signOutErr)
		}
	}

	s.HandleAuthStateChange(ctx, domainauth.AuthEvent{})
	s.navigate(ctx, portal.HomePath)
	return err
}

// redirectIfMisplaced sends the client to the landing page of its role when the
// current path belongs to the other portal. It only runs when no layout guard
// is mounted.
func (s *SessionContext) redirectIfMisplaced(ctx context.Context, path string, res domainauth.Resolution) {
	viewing := portal.ForPath(path)
	if viewing == portal.None {
		return
	}
	if res.Failed() {
		if viewing == portal.Admin {
			s.navigate(ctx, portal.LandingPath(portal.Host))
		}
		return
	}
	target := portal.ForRole(res.Role())
	if target == portal.None || target == viewing {
		return
	}
	s.navigate(ctx, portal.LandingPath(target))
}

func (s *SessionContext) clearRole(ctx context.Context) {
	if s.hooks.Clearer == nil {
		return
	}
	if err := s.hooks.Clearer.ClearRole(ctx); err != nil {
		s.logger.WarnContext(ctx, "clear role failed", "error", err)
	}
}

func (s *SessionContext) navigate(ctx context.Context, path string) {
	if s.hooks.Navigator != nil {
		s.hooks.Navigator.Navigate(ctx, path)
	}
}

// publishLocked returns the state and subscriber list to notify. Caller holds s.mu.
func (s *SessionContext) publishLocked() (SessionState, []func(SessionState)) {
	subs := make([]func(SessionState), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	return copyState(s.state), subs
}

func notify(subs []func(SessionState), st SessionState) {
	for _, fn := range subs {
		fn(copyState(st))
	}
}

func copyState(st SessionState) SessionState {
	st.User = copyPrincipal(st.User)
	return st
}

func copyPrincipal(p *domainauth.Principal) *domainauth.Principal {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
