package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.TokenVerifier    = (*StaticTokenVerifier)(nil)
	_ ports.SocialProvider   = (*MockSocialProvider)(nil)
	_ ports.AdminDirectory   = (*MemoryAdminDirectory)(nil)
	_ ports.ClaimEvaluator   = BoolClaimEvaluator{}
	_ ports.SessionStore     = (*MemorySessionStore)(nil)
	_ ports.AuthStateSource  = (*AuthStateFeed)(nil)
	_ ports.SessionClearer   = (*RecordingClearer)(nil)
	_ ports.Navigator        = (*RecordingNavigator)(nil)
)

// MockIdentityProvider simulates the hosted account service. Unset funcs fall
// back to a permissive default that signs in DefaultUser.
type MockIdentityProvider struct {
	SignInFunc    func(ctx context.Context, email, password string) (ports.SignInResult, error)
	SignUpFunc    func(ctx context.Context, in ports.SignUpInput) (ports.SignInResult, error)
	ResetFunc     func(ctx context.Context, email string) error
	RefreshFunc   func(ctx context.Context, refreshToken string) (string, error)
	SignInIdPFunc func(ctx context.Context, cred ports.IdPCredential) (ports.SignInResult, error)
	SignOutFunc   func(ctx context.Context, userID string) error

	DefaultUser domainauth.Principal

	mu           sync.Mutex
	signOutCalls int
	resetCalls   []string
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		DefaultUser: domainauth.Principal{
			UserID:   "mock-user-1",
			Email:    "mock.user@example.com",
			Provider: "password",
		},
	}
}

func (m *MockIdentityProvider) defaultResult() ports.SignInResult {
	user := m.DefaultUser
	if user.UserID == "" {
		user = domainauth.Principal{UserID: "mock-user-1", Email: "mock.user@example.com", Provider: "password"}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)
	return ports.SignInResult{Principal: user, IDToken: "id-" + user.UserID, RefreshToken: "refresh-" + user.UserID}
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (ports.SignInResult, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	return m.defaultResult(), nil
}

func (m *MockIdentityProvider) SignUpWithPassword(ctx context.Context, in ports.SignUpInput) (ports.SignInResult, error) {
	if m.SignUpFunc != nil {
		return m.SignUpFunc(ctx, in)
	}
	res := m.defaultResult()
	res.Principal.Email = in.Email
	res.Principal.DisplayName = in.DisplayName
	return res, nil
}

func (m *MockIdentityProvider) SendPasswordReset(ctx context.Context, email string) error {
	m.mu.Lock()
	m.resetCalls = append(m.resetCalls, email)
	m.mu.Unlock()
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, email)
	}
	return nil
}

func (m *MockIdentityProvider) RefreshIDToken(ctx context.Context, refreshToken string) (string, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return "", errors.New("refresh not configured")
}

func (m *MockIdentityProvider) SignInWithIdP(ctx context.Context, cred ports.IdPCredential) (ports.SignInResult, error) {
	if m.SignInIdPFunc != nil {
		return m.SignInIdPFunc(ctx, cred)
	}
	res := m.defaultResult()
	res.Principal.Provider = cred.ProviderID
	return res, nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context, userID string) error {
	m.mu.Lock()
	m.signOutCalls++
	m.mu.Unlock()
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx, userID)
	}
	return nil
}

// SignOutCalls returns how many times SignOut ran.
func (m *MockIdentityProvider) SignOutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

// ResetRequests returns the emails passed to SendPasswordReset.
func (m *MockIdentityProvider) ResetRequests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resetCalls...)
}

// VerifiedToken is the canned result for one raw token.
type VerifiedToken struct {
	Principal domainauth.Principal
	Claims    domainauth.Claims
}

// StaticTokenVerifier verifies tokens from a fixed table.
type StaticTokenVerifier struct {
	Tokens map[string]VerifiedToken
	Err    error
}

func (v *StaticTokenVerifier) Verify(_ context.Context, raw string) (domainauth.Principal, domainauth.Claims, error) {
	if v.Err != nil {
		return domainauth.Principal{}, nil, v.Err
	}
	tok, ok := v.Tokens[raw]
	if !ok {
		return domainauth.Principal{}, nil, ports.ErrInvalidToken
	}
	return tok.Principal, tok.Claims, nil
}

// MockSocialProvider simulates a social IdP with deterministic state/nonce handling.
type MockSocialProvider struct {
	ProviderName string
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (ports.IdPCredential, error)

	AuthURL     string
	StatePrefix string
	NoncePrefix string

	mu        sync.Mutex
	callCount int
}

// NewMockSocialProvider creates a MockSocialProvider with sensible defaults.
func NewMockSocialProvider(name string) *MockSocialProvider {
	return &MockSocialProvider{
		ProviderName: name,
		AuthURL:      "https://mock-idp/auth",
		StatePrefix:  "state",
		NoncePrefix:  "nonce",
	}
}

func (m *MockSocialProvider) Name() string {
	if m.ProviderName == "" {
		return "google"
	}
	return m.ProviderName
}

func (m *MockSocialProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockSocialProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.IdPCredential, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return ports.IdPCredential{
		ProviderID: m.Name() + ".com",
		IDToken:    "social-" + in.Code,
		RequestURI: in.RedirectURL,
	}, nil
}

// MemoryAdminDirectory is an in-memory admin directory that counts lookups.
type MemoryAdminDirectory struct {
	mu      sync.Mutex
	members map[string]domainauth.AdminMembership
	calls   int

	// Err, when set, is returned from every lookup.
	Err error
}

// NewMemoryAdminDirectory returns a directory holding the given memberships.
func NewMemoryAdminDirectory(members ...domainauth.AdminMembership) *MemoryAdminDirectory {
	d := &MemoryAdminDirectory{members: make(map[string]domainauth.AdminMembership)}
	for _, m := range members {
		d.members[m.UserID] = m
	}
	return d
}

func (d *MemoryAdminDirectory) GetAdmin(ctx context.Context, userID string) (domainauth.AdminMembership, error) {
	d.mu.Lock()
	d.calls++
	err := d.Err
	m, ok := d.members[userID]
	d.mu.Unlock()

	if err != nil {
		return domainauth.AdminMembership{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domainauth.AdminMembership{}, ctxErr
	}
	if !ok {
		return domainauth.AdminMembership{}, ports.ErrAdminNotFound
	}
	return m, nil
}

// Put inserts or replaces a membership.
func (d *MemoryAdminDirectory) Put(m domainauth.AdminMembership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.UserID] = m
}

// Calls returns the number of lookups served.
func (d *MemoryAdminDirectory) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// BoolClaimEvaluator grants admin when Claims[Key] is boolean true.
type BoolClaimEvaluator struct {
	Key string
	Err error
}

func (e BoolClaimEvaluator) IsAdmin(claims domainauth.Claims) (bool, error) {
	if e.Err != nil {
		return false, e.Err
	}
	key := e.Key
	if key == "" {
		key = "admin"
	}
	v, ok := claims[key].(bool)
	return ok && v, nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Session),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ErrNotFound is returned by mocks when a session is not present.
var ErrNotFound = ports.ErrSessionNotFound

// AuthStateFeed is a push source of auth events driven by tests.
type AuthStateFeed struct {
	mu   sync.Mutex
	next int
	subs map[int]func(domainauth.AuthEvent)
}

// NewAuthStateFeed returns an empty feed.
func NewAuthStateFeed() *AuthStateFeed {
	return &AuthStateFeed{subs: make(map[int]func(domainauth.AuthEvent))}
}

func (f *AuthStateFeed) Subscribe(fn func(domainauth.AuthEvent)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Publish delivers ev to every subscriber synchronously.
func (f *AuthStateFeed) Publish(ev domainauth.AuthEvent) {
	f.mu.Lock()
	fns := make([]func(domainauth.AuthEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers returns the number of active subscriptions.
func (f *AuthStateFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// RecordingClearer counts session-clearing calls.
type RecordingClearer struct {
	mu    sync.Mutex
	calls int
	Err   error
}

func (c *RecordingClearer) ClearRole(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.Err
}

// Calls returns how many times ClearRole ran.
func (c *RecordingClearer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// RecordingNavigator records navigations in order.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *RecordingNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns a copy of the recorded navigations.
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}
