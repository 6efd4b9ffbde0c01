package ports

// Package ports defines interfaces (hexagonal ports) for identity, role and session behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
)

var (
	// ErrAdminNotFound is returned by an AdminDirectory when the user has no membership record.
	ErrAdminNotFound = errors.New("admin membership not found")
	// ErrInvalidCredentials is returned when the identity provider rejects an email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned on sign-up when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidToken is returned when an ID token fails verification.
	ErrInvalidToken = errors.New("invalid id token")
	// ErrSessionNotFound is returned by a SessionStore for a missing or expired session.
	ErrSessionNotFound = errors.New("session not found")
)

// SignInResult is what the identity provider hands back after a successful sign-in.
type SignInResult struct {
	Principal    domainauth.Principal
	IDToken      string
	RefreshToken string
}

// SignUpInput groups the fields of a new host account.
type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// IdPCredential is a federated credential obtained from a social provider and
// exchanged for a first-party session at the identity provider.
type IdPCredential struct {
	ProviderID  string // google.com, facebook.com
	IDToken     string
	AccessToken string
	RequestURI  string
}

// IdentityProvider is the hosted account service. It owns users and passwords.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (SignInResult, error)
	SignUpWithPassword(ctx context.Context, in SignUpInput) (SignInResult, error)
	SendPasswordReset(ctx context.Context, email string) error
	// RefreshIDToken exchanges a refresh token for a fresh ID token so that recently
	// changed custom claims are visible.
	RefreshIDToken(ctx context.Context, refreshToken string) (string, error)
	SignInWithIdP(ctx context.Context, cred IdPCredential) (SignInResult, error)
	SignOut(ctx context.Context, userID string) error
}

// TokenVerifier verifies a raw ID token and returns the identity and claims it carries.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (domainauth.Principal, domainauth.Claims, error)
}

// BeginInput carries inputs for initiating a social sign-in.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code        string
	State       string
	Nonce       string
	RedirectURL string
}

// SocialProvider runs the redirect flow of a third-party sign-in (google, facebook).
type SocialProvider interface {
	Name() string
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)
	// Exchange completes the login flow and returns the federated credential.
	Exchange(ctx context.Context, in ExchangeInput) (IdPCredential, error)
}

// AdminDirectory is the admin membership collection keyed by user id.
type AdminDirectory interface {
	GetAdmin(ctx context.Context, userID string) (domainauth.AdminMembership, error)
}

// ClaimEvaluator decides whether verified claims carry the admin grant.
type ClaimEvaluator interface {
	IsAdmin(claims domainauth.Claims) (bool, error)
}

// SessionStore persists and retrieves user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// AuthStateSource pushes auth-state changes (login, logout, token refresh).
type AuthStateSource interface {
	Subscribe(fn func(domainauth.AuthEvent)) (unsubscribe func())
}

// SessionClearer performs the session-clearing call made when a user signs out.
type SessionClearer interface {
	ClearRole(ctx context.Context) error
}

// SessionClearerFunc adapts a function to SessionClearer.
type SessionClearerFunc func(ctx context.Context) error

func (f SessionClearerFunc) ClearRole(ctx context.Context) error { return f(ctx) }

// Navigator performs a client-side navigation.
type Navigator interface {
	Navigate(ctx context.Context, path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, path string)

func (f NavigatorFunc) Navigate(ctx context.Context, path string) { f(ctx, path) }
