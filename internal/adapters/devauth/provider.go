package devauth

// Package devauth provides a simple, config-driven identity provider for local development.

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
)

const (
	idTokenPrefix      = "dev."
	refreshTokenPrefix = "devrefresh."
)

// Config controls the dev identity provider behavior.
// UserID, Email and Password are required; the seeded user may sign in with
// the password or through any social provider.
type Config struct {
	UserID          string
	Email           string
	Password        string
	DisplayName     string
	Admin           bool          // sets the admin custom claim on the seeded user
	SessionDuration time.Duration // default 8h when zero
}

type user struct {
	principal domainauth.Principal
	password  string
	admin     bool
}

// Provider implements ports.IdentityProvider and ports.TokenVerifier for local
// development. ID tokens are opaque "dev.<uid>" strings and carry no signature.
type Provider struct {
	seedID          string
	sessionDuration time.Duration

	mu      sync.RWMutex
	byID    map[string]*user
	byEmail map[string]*user
	resets  []string
}

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dev auth: Password is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}

	p := &Provider{
		seedID:          cfg.UserID,
		sessionDuration: dur,
		byID:            make(map[string]*user),
		byEmail:         make(map[string]*user),
	}
	p.addLocked(&user{
		principal: domainauth.Principal{
			UserID:      cfg.UserID,
			Email:       cfg.Email,
			DisplayName: cfg.DisplayName,
			Provider:    "password",
		},
		password: cfg.Password,
		admin:    cfg.Admin,
	})
	return p, nil
}

func (p *Provider) addLocked(u *user) {
	p.byID[u.principal.UserID] = u
	p.byEmail[strings.ToLower(u.principal.Email)] = u
}

func (p *Provider) result(u *user, provider string) ports.SignInResult {
	principal := u.principal
	principal.Provider = provider
	principal.ExpiresAt = time.Now().Add(p.sessionDuration)
	return ports.SignInResult{
		Principal:    principal,
		IDToken:      idTokenPrefix + principal.UserID,
		RefreshToken: refreshTokenPrefix + principal.UserID,
	}
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (ports.SignInResult, error) {
	p.mu.RLock()
	u, ok := p.byEmail[strings.ToLower(email)]
	p.mu.RUnlock()
	if !ok || subtle.ConstantTimeCompare([]byte(u.password), []byte(password)) != 1 {
		return ports.SignInResult{}, ports.ErrInvalidCredentials
	}
	return p.result(u, "password"), nil
}

func (p *Provider) SignUpWithPassword(_ context.Context, in ports.SignUpInput) (ports.SignInResult, error) {
	if in.Email == "" || in.Password == "" {
		return ports.SignInResult{}, errors.New("dev auth: email and password are required")
	}
	suffix, err := randomString(12)
	if err != nil {
		return ports.SignInResult{}, fmt.Errorf("generate user id: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[strings.ToLower(in.Email)]; exists {
		return ports.SignInResult{}, ports.ErrAccountExists
	}
	u := &user{
		principal: domainauth.Principal{
			UserID:      "dev-" + suffix,
			Email:       in.Email,
			DisplayName: in.DisplayName,
			Provider:    "password",
		},
		password: in.Password,
	}
	p.addLocked(u)
	return p.result(u, "password"), nil
}

// SendPasswordReset records the request; no email is sent.
func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets = append(p.resets, email)
	return nil
}

// ResetRequests returns the emails that asked for a reset.
func (p *Provider) ResetRequests() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.resets...)
}

func (p *Provider) RefreshIDToken(_ context.Context, refreshToken string) (string, error) {
	uid, ok := strings.CutPrefix(refreshToken, refreshTokenPrefix)
	if !ok || uid == "" {
		return "", errors.New("dev auth: invalid refresh token")
	}
	p.mu.RLock()
	_, known := p.byID[uid]
	p.mu.RUnlock()
	if !known {
		return "", errors.New("dev auth: unknown user")
	}
	return idTokenPrefix + uid, nil
}

// SignInWithIdP signs in the seeded user regardless of the credential.
func (p *Provider) SignInWithIdP(_ context.Context, cred ports.IdPCredential) (ports.SignInResult, error) {
	p.mu.RLock()
	u := p.byID[p.seedID]
	p.mu.RUnlock()
	return p.result(u, cred.ProviderID), nil
}

func (p *Provider) SignOut(context.Context, string) error { return nil }

// Verify accepts tokens minted by this provider.
func (p *Provider) Verify(_ context.Context, rawIDToken string) (domainauth.Principal, domainauth.Claims, error) {
	uid, ok := strings.CutPrefix(rawIDToken, idTokenPrefix)
	if !ok || uid == "" {
		return domainauth.Principal{}, nil, fmt.Errorf("%w: not a dev token", ports.ErrInvalidToken)
	}
	p.mu.RLock()
	u, known := p.byID[uid]
	p.mu.RUnlock()
	if !known {
		return domainauth.Principal{}, nil, fmt.Errorf("%w: unknown user", ports.ErrInvalidToken)
	}

	principal := u.principal
	principal.ExpiresAt = time.Now().Add(p.sessionDuration)
	claims := domainauth.Claims{
		"sub":   uid,
		"email": principal.Email,
		"admin": u.admin,
	}
	return principal, claims, nil
}

// Social returns a social provider that short-circuits the OAuth flow by
// redirecting straight back to our own callback.
func (p *Provider) Social(name string) ports.SocialProvider {
	return &socialProvider{name: strings.ToLower(name), idp: p}
}

type socialProvider struct {
	name string
	idp  *Provider
}

func (s *socialProvider) Name() string { return s.name }

// Begin returns a local callback URL and cryptographically secure state and nonce.
func (s *socialProvider) Begin(_ context.Context, _ ports.BeginInput) (string, string, string, error) {
	state, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomString(24)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}
	authURL := "/auth/" + s.name + "/callback?code=dev&state=" + url.QueryEscape(state)
	return authURL, state, nonce, nil
}

// Exchange ignores the provided code/state/nonce (validation handled by handler).
func (s *socialProvider) Exchange(_ context.Context, in ports.ExchangeInput) (ports.IdPCredential, error) {
	return ports.IdPCredential{
		ProviderID: s.name + ".com",
		IDToken:    idTokenPrefix + s.idp.seedID,
		RequestURI: in.RedirectURL,
	}, nil
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:n], nil
}
