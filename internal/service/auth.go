package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
)

const (
	// DefaultSessionTTL is the lifetime of a server session when none is configured.
	DefaultSessionTTL = 12 * time.Hour
	// socialStateTTL covers the round trip through the social provider.
	socialStateTTL    = 10 * time.Minute
	socialStatePrefix = "portal:oauth-state:"
)

var (
	// ErrSessionExpired is returned by GetSession for a session past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthenticated is returned when no verified identity backs a request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRoleMismatch is returned when a requested role differs from the resolved one.
	ErrRoleMismatch = errors.New("requested role does not match resolved role")
	// ErrRoleUnavailable is returned when role resolution failed.
	ErrRoleUnavailable = errors.New("role could not be resolved")
	// ErrUnknownProvider is returned for a social provider that is not configured.
	ErrUnknownProvider = errors.New("unknown sign-in provider")
	// ErrStateReused is returned when a social-login callback replays a consumed state.
	ErrStateReused = errors.New("sign-in state already used")
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Identity   ports.IdentityProvider // Required: hosted account service
	Verifier   ports.TokenVerifier    // Required: ID-token verification
	Sessions   ports.SessionStore     // Required: server sessions
	Resolver   Resolver               // Required: role resolution
	Social     []ports.SocialProvider // Optional: google, facebook
	States     ports.CacheRepository  // Optional: rejects replayed social-login callbacks
	SessionTTL time.Duration          // Optional: defaults to DefaultSessionTTL
	Clock      func() time.Time       // Optional: defaults to time.Now
	Logger     *slog.Logger           // Optional
}

// AuthService orchestrates sign-in flows by coordinating the identity provider,
// role resolution and session persistence.
type AuthService struct {
	identity ports.IdentityProvider
	verifier ports.TokenVerifier
	sessions ports.SessionStore
	resolver Resolver
	social   map[string]ports.SocialProvider
	states   ports.CacheRepository
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	switch {
	case opts.Identity == nil:
		return nil, errors.New("IdentityProvider is required")
	case opts.Verifier == nil:
		return nil, errors.New("TokenVerifier is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionStore is required")
	case opts.Resolver == nil:
		return nil, errors.New("Resolver is required")
	}

	social := make(map[string]ports.SocialProvider, len(opts.Social))
	for _, p := range opts.Social {
		if p != nil {
			social[strings.ToLower(p.Name())] = p
		}
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		identity: opts.Identity,
		verifier: opts.Verifier,
		sessions: opts.Sessions,
		resolver: opts.Resolver,
		social:   social,
		states:   opts.States,
		ttl:      ttl,
		now:      now,
		logger:   logger.With("component", "auth_service"),
	}, nil
}

// LoginResult is the outcome of a completed sign-in.
type LoginResult struct {
	Session    domainauth.Session
	RedirectTo string
}

// SignInWithPassword signs in at the identity provider, resolves the role and
// persists a session. The redirect always targets the landing page of the
// resolved role, whichever portal the form was submitted from.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ports.ErrInvalidCredentials
	}

	res, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return s.completeSignIn(ctx, res)
}

// Register creates a host account and signs it in.
func (s *AuthService) Register(ctx context.Context, in ports.SignUpInput) (*LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.Email == "" || in.Password == "" {
		return nil, errors.New("email and password are required")
	}

	res, err := s.identity.SignUpWithPassword(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if res.Principal.DisplayName == "" {
		res.Principal.DisplayName = in.DisplayName
	}

	sess, err := s.createSession(ctx, res.Principal, domainauth.ResolveHost(domainauth.SourceNone))
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess, RedirectTo: portal.LandingPath(portal.Host)}, nil
}

// SendPasswordReset asks the identity provider to email a reset link.
func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	if err := s.identity.SendPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

// BeginLoginResult contains the result of beginning a social login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginSocialLogin initiates a social sign-in and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginSocialLogin(ctx context.Context, provider, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	p, err := s.socialProvider(provider)
	if err != nil {
		return nil, err
	}

	authURL, state, nonce, err := p.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin %s login: %w", p.Name(), err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a social login flow.
type CompleteLoginInput struct {
	Provider    string
	Code        string
	State       string
	Nonce       string
	RedirectURL string
}

// CompleteSocialLogin exchanges the authorization code, signs in at the identity
// provider with the federated credential and persists a session.
func (s *AuthService) CompleteSocialLogin(ctx context.Context, input CompleteLoginInput) (*LoginResult, error) {
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}
	p, err := s.socialProvider(input.Provider)
	if err != nil {
		return nil, err
	}
	if err := s.consumeState(ctx, input.State); err != nil {
		return nil, err
	}

	cred, err := p.Exchange(ctx, ports.ExchangeInput{
		Code:        input.Code,
		State:       input.State,
		Nonce:       input.Nonce,
		RedirectURL: input.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if cred.RequestURI == "" {
		cred.RequestURI = input.RedirectURL
	}

	res, err := s.identity.SignInWithIdP(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("sign in with %s: %w", cred.ProviderID, err)
	}
	return s.completeSignIn(ctx, res)
}

// consumeState marks a social-login state as used. A state is accepted once.
func (s *AuthService) consumeState(ctx context.Context, state string) error {
	if s.states == nil {
		return nil
	}
	fresh, err := s.states.SetIfNotExists(ctx, socialStatePrefix+state, []byte("1"), socialStateTTL)
	if err != nil {
		return fmt.Errorf("record sign-in state: %w", err)
	}
	if !fresh {
		s.logger.WarnContext(ctx, "social login state replayed")
		return ErrStateReused
	}
	return nil
}

func (s *AuthService) completeSignIn(ctx context.Context, res ports.SignInResult) (*LoginResult, error) {
	principal := res.Principal
	resolution := s.resolver.Resolve(ctx, ResolveInput{
		Principal:    &principal,
		IDToken:      res.IDToken,
		RefreshToken: res.RefreshToken,
	})
	if resolution.Failed() {
		return nil, errors.Join(ErrRoleUnavailable, resolution.Err)
	}

	sess, err := s.createSession(ctx, principal, resolution)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess, RedirectTo: portal.LandingPathForRole(sess.Role)}, nil
}

// EstablishInput groups parameters for EstablishSession.
type EstablishInput struct {
	IDToken   string              // bearer token from the client, verified here
	Existing  *domainauth.Session // current server session, used when no token is sent
	Requested domainauth.Role
}

// EstablishSession persists the routing role for a verified identity. The
// requested role must equal the role resolved on the server.
func (s *AuthService) EstablishSession(ctx context.Context, in EstablishInput) (*domainauth.Session, error) {
	if !in.Requested.Valid() {
		return nil, domainauth.ErrInvalidRole
	}

	var principal domainauth.Principal
	switch {
	case in.IDToken != "":
		p, _, err := s.verifier.Verify(ctx, in.IDToken)
		if err != nil {
			return nil, errors.Join(ErrUnauthenticated, err)
		}
		principal = p
	case in.Existing != nil:
		principal = in.Existing.Principal()
	default:
		return nil, ErrUnauthenticated
	}

	resolution := s.resolver.Resolve(ctx, ResolveInput{Principal: &principal, IDToken: in.IDToken})
	if resolution.Failed() {
		return nil, errors.Join(ErrRoleUnavailable, resolution.Err)
	}
	if resolution.Role() != in.Requested {
		return nil, fmt.Errorf("%w: requested %s", ErrRoleMismatch, in.Requested)
	}

	if in.Existing != nil && in.Existing.UserID == principal.UserID {
		sess := *in.Existing
		sess.Role = resolution.Role()
		sess.RoleSource = resolution.Source
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		return &sess, nil
	}

	sess, err := s.createSession(ctx, principal, resolution)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSessionRole stores a re-resolved role on an existing session.
func (s *AuthService) UpdateSessionRole(ctx context.Context, sess domainauth.Session, res domainauth.Resolution) (domainauth.Session, error) {
	sess.Role = res.Role()
	sess.RoleSource = res.Source
	if err := s.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if s.now().After(session.ExpiresAt) {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Logout removes a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Providers returns the names of the configured social providers.
func (s *AuthService) Providers() []string {
	out := make([]string, 0, len(s.social))
	for name := range s.social {
		out = append(out, name)
	}
	return out
}

func (s *AuthService) socialProvider(name string) (ports.SocialProvider, error) {
	p, ok := s.social[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func (s *AuthService) createSession(ctx context.Context, principal domainauth.Principal, res domainauth.Resolution) (domainauth.Session, error) {
	if principal.UserID == "" {
		return domainauth.Session{}, ErrUnauthenticated
	}
	sess := domainauth.Session{
		ID:          generateSessionID(),
		UserID:      principal.UserID,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		Provider:    principal.Provider,
		Role:        res.Role(),
		RoleSource:  res.Source,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.logger.InfoContext(ctx, "session created", "user_id", sess.UserID, "role", sess.Role.String(), "role_source", string(sess.RoleSource))
	return sess, nil
}

// generateSessionID creates a random, URL-safe session ID.
func generateSessionID() string {
	return uuid.New().String()
}
