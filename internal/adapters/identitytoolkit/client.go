// Package identitytoolkit implements ports.IdentityProvider against the hosted
// account service REST API (accounts:signInWithPassword and friends).
package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
)

const (
	DefaultBaseURL  = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenURL = "https://securetoken.googleapis.com/v1/token"

	maxErrorBody = 64 << 10
)

// ErrAPI is wrapped by every non-credential failure returned by the service.
var ErrAPI = errors.New("identity service error")

// Config configures the REST client.
type Config struct {
	APIKey     string       // Required: web API key
	BaseURL    string       // Optional: defaults to DefaultBaseURL
	TokenURL   string       // Optional: defaults to DefaultTokenURL
	HTTPClient *http.Client // Optional: defaults to a client with a 10s timeout
	Logger     *slog.Logger // Optional
}

// Client talks to the identity REST API.
type Client struct {
	apiKey  string
	baseURL string
	token   oauth2.Config
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.IdentityProvider = (*Client)(nil)

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("identitytoolkit: APIKey is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		token: oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  withKey(tokenURL, cfg.APIKey),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		http:   hc,
		logger: logger.With("component", "identitytoolkit"),
	}, nil
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

func (r signInResponse) result(provider string) ports.SignInResult {
	secs, err := strconv.Atoi(r.ExpiresIn)
	if err != nil || secs <= 0 {
		secs = 3600
	}
	if r.ProviderID != "" {
		provider = r.ProviderID
	}
	return ports.SignInResult{
		Principal: domainauth.Principal{
			UserID:      r.LocalID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			Provider:    provider,
			ExpiresAt:   time.Now().Add(time.Duration(secs) * time.Second),
		},
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
	}
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (ports.SignInResult, error) {
	var out signInResponse
	err := c.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return ports.SignInResult{}, err
	}
	return out.result("password"), nil
}

func (c *Client) SignUpWithPassword(ctx context.Context, in ports.SignUpInput) (ports.SignInResult, error) {
	body := map[string]any{
		"email":             in.Email,
		"password":          in.Password,
		"returnSecureToken": true,
	}
	if in.DisplayName != "" {
		body["displayName"] = in.DisplayName
	}
	var out signInResponse
	if err := c.call(ctx, "accounts:signUp", body, &out); err != nil {
		return ports.SignInResult{}, err
	}
	if out.DisplayName == "" {
		out.DisplayName = in.DisplayName
	}
	return out.result("password"), nil
}

// SendPasswordReset asks the service to email a reset link.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// RefreshIDToken exchanges a refresh token at the secure token endpoint.
func (c *Client) RefreshIDToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", errors.New("identitytoolkit: refresh token is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.token.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: refresh id token: %w", ErrAPI, err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("%w: refresh response missing id_token", ErrAPI)
	}
	return raw, nil
}

// SignInWithIdP exchanges a federated credential for a first-party session.
func (c *Client) SignInWithIdP(ctx context.Context, cred ports.IdPCredential) (ports.SignInResult, error) {
	post := url.Values{"providerId": {cred.ProviderID}}
	switch {
	case cred.IDToken != "":
		post.Set("id_token", cred.IDToken)
	case cred.AccessToken != "":
		post.Set("access_token", cred.AccessToken)
	default:
		return ports.SignInResult{}, errors.New("identitytoolkit: credential carries no token")
	}
	requestURI := cred.RequestURI
	if requestURI == "" {
		requestURI = "http://localhost"
	}

	var out signInResponse
	err := c.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &out)
	if err != nil {
		return ports.SignInResult{}, err
	}
	return out.result(cred.ProviderID), nil
}

// SignOut has nothing to revoke with a web API key; tokens expire on their own
// and the server session is deleted by the caller.
func (c *Client) SignOut(ctx context.Context, userID string) error {
	c.logger.DebugContext(ctx, "sign out", "user_id", userID)
	return nil
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	endpoint := withKey(c.baseURL+"/"+method, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAPI, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(ctx, method, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrAPI, method, err)
	}
	return nil
}

func (c *Client) decodeError(ctx context.Context, method string, resp *http.Response) error {
	var apiErr apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = json.Unmarshal(raw, &apiErr)

	// Messages look like "INVALID_PASSWORD" or "WEAK_PASSWORD : Password should be at least 6 characters".
	code, _, _ := strings.Cut(apiErr.Error.Message, " ")
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED", "INVALID_EMAIL":
		return ports.ErrInvalidCredentials
	case "EMAIL_EXISTS":
		return ports.ErrAccountExists
	}
	c.logger.WarnContext(ctx, "identity api call failed", "method", method, "status", resp.StatusCode, "code", code)
	if code == "" {
		code = resp.Status
	}
	return fmt.Errorf("%w: %s: %s", ErrAPI, method, code)
}

func withKey(endpoint, key string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "key=" + url.QueryEscape(key)
}
