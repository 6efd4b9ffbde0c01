package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

// forgotPasswordMessage is returned whether or not the account exists.
const forgotPasswordMessage = "If an account exists for that email, a reset link is on its way."

// AuthServiceInterface defines the auth service operations used by the HTTP layer.
type AuthServiceInterface interface {
	SignInWithPassword(ctx context.Context, email, password string) (*service.LoginResult, error)
	Register(ctx context.Context, in ports.SignUpInput) (*service.LoginResult, error)
	SendPasswordReset(ctx context.Context, email string) error
	BeginSocialLogin(ctx context.Context, provider, redirectURL string) (*service.BeginLoginResult, error)
	CompleteSocialLogin(ctx context.Context, input service.CompleteLoginInput) (*service.LoginResult, error)
	EstablishSession(ctx context.Context, in service.EstablishInput) (*domainauth.Session, error)
	UpdateSessionRole(ctx context.Context, sess domainauth.Session, res domainauth.Resolution) (domainauth.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Cookies Cookies
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Portal   string `json:"portal"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type forgotPasswordRequest struct {
	Email  string `json:"email"`
	Portal string `json:"portal"`
}

// PasswordLogin signs in with email and password.
// POST /api/auth/login.
//
// The response always points at the landing page of the resolved role, so an
// admin signing in on the host form still ends up on the admin dashboard.
func (h *AuthHandlers) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeSignInError(w, r, err)
		return
	}

	h.Cookies.SetSession(w, r, result.Session)
	WriteJSON(w, http.StatusOK, loginResponse(result))
}

// Register creates a host account and signs it in.
// POST /api/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_fields",
			Err:     errors.New("email and password are required"),
		})
		return
	}

	result, err := h.Svc.Register(r.Context(), ports.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	switch {
	case errors.Is(err, ports.ErrAccountExists):
		WriteError(w, ErrorParams{
			Code:    http.StatusConflict,
			ErrCode: "account_exists",
			Err:     errors.New("an account with this email already exists"),
		})
		return
	case err != nil:
		h.logger().ErrorContext(r.Context(), "registration failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusBadGateway,
			ErrCode: "registration_failed",
			Err:     errors.New("registration failed, please try again"),
		})
		return
	}

	h.Cookies.SetSession(w, r, result.Session)
	WriteJSON(w, http.StatusCreated, loginResponse(result))
}

// ForgotPassword requests a password-reset email.
// POST /api/auth/forgot-password.
//
// The answer is the same for unknown emails and provider failures so that the
// endpoint cannot be used to discover accounts.
func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.Svc.SendPasswordReset(r.Context(), req.Email); err != nil {
		h.logger().WarnContext(r.Context(), "password reset request failed", "error", err)
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": forgotPasswordMessage})
}

// SocialLogin starts a social sign-in.
// GET /auth/{provider}/login?portal=<admin|app>&redirect_uri=<optional>.
func (h *AuthHandlers) SocialLogin(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = portal.LandingPath(portalOrHost(r.URL.Query().Get("portal")))
	}
	redirectURI = safeRedirectPath(redirectURI)

	callback := absoluteURL(r, "/auth/"+url.PathEscape(provider)+"/callback")
	result, err := h.Svc.BeginSocialLogin(r.Context(), provider, callback)
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "unknown_provider", Err: err})
		return
	case err != nil:
		h.logger().ErrorContext(r.Context(), "begin social login failed", "provider", provider, "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: errors.New("could not start sign-in")})
		return
	}

	h.Cookies.setOAuth(w, r, oauthCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// SocialCallback completes a social sign-in.
// GET /auth/{provider}/callback?code=<code>&state=<state>.
func (h *AuthHandlers) SocialCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_code", Err: errors.New("authorization code is required")})
		return
	}
	if state == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_state", Err: errors.New("state parameter is required")})
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_state", Err: errors.New("invalid or missing state parameter")})
		return
	}
	nonceCookie, err := r.Cookie(oauthNonceCookie)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_nonce", Err: errors.New("missing nonce parameter")})
		return
	}

	result, err := h.Svc.CompleteSocialLogin(r.Context(), service.CompleteLoginInput{
		Provider:    r.PathValue("provider"),
		Code:        code,
		State:       state,
		Nonce:       nonceCookie.Value,
		RedirectURL: absoluteURL(r, r.URL.Path),
	})
	if err != nil {
		h.logger().WarnContext(r.Context(), "social login failed", "provider", r.PathValue("provider"), "error", err)
		h.Cookies.clearOAuth(w, r)
		status, errCode := signInErrorStatus(err)
		WriteError(w, ErrorParams{Code: status, ErrCode: errCode, Err: errors.New("sign-in could not be completed")})
		return
	}

	target := postLoginTarget(r, result)
	h.Cookies.clearOAuth(w, r)
	h.Cookies.SetSession(w, r, result.Session)
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout ends the server session.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := h.Cookies.SessionID(r); sid != "" {
		if err := h.Svc.Logout(r.Context(), sid); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}
	h.Cookies.ClearSession(w, r)

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "redirect_to": portal.HomePath})
		return
	}
	http.Redirect(w, r, portal.HomePath, http.StatusSeeOther)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sid := h.Cookies.SessionID(r)
	if sid == "" {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	session, err := h.Svc.GetSession(r.Context(), sid)
	if err != nil {
		h.Cookies.ClearSession(w, r)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":           session.UserID,
			"email":        session.Email,
			"display_name": session.DisplayName,
			"role":         session.Role,
		},
		"expires_at": session.ExpiresAt,
	})
}

func (h *AuthHandlers) writeSignInError(w http.ResponseWriter, r *http.Request, err error) {
	status, errCode := signInErrorStatus(err)
	msg := "sign-in is temporarily unavailable, please try again"
	switch status {
	case http.StatusUnauthorized:
		msg = "invalid email or password"
	default:
		h.logger().ErrorContext(r.Context(), "sign-in failed", "error", err)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: errCode, Err: errors.New(msg)})
}

func signInErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ports.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrStateReused):
		return http.StatusBadRequest, "invalid_state"
	case errors.Is(err, service.ErrUnknownProvider):
		return http.StatusNotFound, "unknown_provider"
	case errors.Is(err, service.ErrRoleUnavailable):
		return http.StatusServiceUnavailable, "role_unavailable"
	default:
		return http.StatusBadGateway, "login_failed"
	}
}

func loginResponse(result *service.LoginResult) map[string]any {
	return map[string]any{
		"redirect_to": result.RedirectTo,
		"role":        result.Session.Role,
		"expires_at":  result.Session.ExpiresAt,
	}
}

// postLoginTarget honours the remembered destination only when it lies in the
// portal of the signed-in role; otherwise the role's landing page wins.
func postLoginTarget(r *http.Request, result *service.LoginResult) string {
	ck, err := r.Cookie(postLoginCookie)
	if err != nil {
		return result.RedirectTo
	}
	candidate := safeRedirectPath(ck.Value)
	u, err := url.Parse(candidate)
	if err != nil {
		return result.RedirectTo
	}
	if portal.ForPath(u.Path) != portal.ForRole(result.Session.Role) || portal.IsPublicPath(u.Path) {
		return result.RedirectTo
	}
	return candidate
}

// absoluteURL builds the external URL of path on the host that served r.
func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: path}).String()
}

func portalOrHost(s string) portal.Portal {
	if p := portal.Parse(s); p != portal.None {
		return p
	}
	return portal.Host
}
