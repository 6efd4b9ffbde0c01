package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

// SessionHandlers serve the session endpoints the portal layouts talk to.
type SessionHandlers struct {
	Svc      AuthServiceInterface
	Contexts *service.SessionContextFactory // Required by State, Guard and Refresh
	Cookies  Cookies
	Logger   *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type refreshRequest struct {
	Path string `json:"path"`
}

type sessionUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type sessionStateResponse struct {
	Authenticated bool            `json:"authenticated"`
	User          *sessionUser    `json:"user,omitempty"`
	Role          domainauth.Role `json:"role"`
	Loading       bool            `json:"loading"`
	RoleLoaded    bool            `json:"role_loaded"`
	RoleSource    string          `json:"role_source,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	RedirectTo    string          `json:"redirect_to,omitempty"`
}

type guardResponse struct {
	Portal     string `json:"portal"`
	State      string `json:"state"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// SetRole records the routing role of the caller.
// POST /api/session/set-role {"role":"admin"|"host"}.
//
// The caller proves its identity with a bearer ID token or an existing session
// and may only claim the role the server resolves for it.
func (h *SessionHandlers) SetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	role, err := domainauth.ParseRole(req.Role)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_role", Err: err})
		return
	}

	existing, _ := h.currentSession(r)
	sess, err := h.Svc.EstablishSession(r.Context(), service.EstablishInput{
		IDToken:   bearerToken(r),
		Existing:  existing,
		Requested: role,
	})
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthenticated):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	case errors.Is(err, service.ErrRoleMismatch):
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "role_mismatch", Err: errors.New("requested role is not granted to this account")})
		return
	case errors.Is(err, service.ErrRoleUnavailable):
		h.logger().WarnContext(r.Context(), "set role: resolution failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "role_unavailable", Err: errors.New("role could not be checked, please retry")})
		return
	default:
		h.logger().ErrorContext(r.Context(), "set role failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "set_role_failed", Err: errors.New("session could not be saved")})
		return
	}

	h.Cookies.SetSession(w, r, *sess)
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"role":        sess.Role,
		"redirect_to": portal.LandingPathForRole(sess.Role),
	})
}

// ClearRole drops the server session and its cookies. It is idempotent.
// POST /api/session/clear-role.
func (h *SessionHandlers) ClearRole(w http.ResponseWriter, r *http.Request) {
	if sid := h.Cookies.SessionID(r); sid != "" {
		if err := h.Svc.Logout(r.Context(), sid); err != nil {
			h.logger().WarnContext(r.Context(), "clear role: delete session failed", "error", err)
		}
	}
	h.Cookies.ClearSession(w, r)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// State returns the session context snapshot of the caller.
// GET /api/session.
func (h *SessionHandlers) State(w http.ResponseWriter, r *http.Request) {
	sess, err := h.currentSession(r)
	if isStaleSession(err) {
		h.Cookies.ClearSession(w, r)
	}
	sc := h.restore(sess, service.SessionHooks{})
	WriteJSON(w, http.StatusOK, stateResponse(sc.Snapshot(), sess, ""))
}

// Guard evaluates the layout guard of the portal owning path for the caller.
// GET /api/session/guard?path=/app/home.
func (h *SessionHandlers) Guard(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	p := portal.ForPath(path)
	if p == portal.None {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("path must be under /admin or /app")})
		return
	}

	sess, err := h.currentSession(r)
	if err != nil && !isStaleSession(err) {
		h.logger().WarnContext(r.Context(), "guard: session lookup failed", "error", err)
		WriteJSON(w, http.StatusOK, guardResponse{Portal: p.String(), State: portal.StatePending.String()})
		return
	}

	var nav navigationRecorder
	sc := h.restore(sess, service.SessionHooks{})
	g := service.MountLayoutGuard(r.Context(), sc, p, path, &nav)
	defer g.Unmount()

	d := g.Decision()
	WriteJSON(w, http.StatusOK, guardResponse{Portal: p.String(), State: d.State.String(), RedirectTo: d.RedirectTo})
}

// Refresh re-resolves the role of the session without a new sign-in, picking
// up admin grants and revocations. A bearer ID token, when sent, lets the
// admin claim be re-checked too. When path is given and now belongs to the
// other portal, the response carries where to go.
// POST /api/session/refresh {"path":"/admin/dashboard"}.
func (h *SessionHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength != 0 && !DecodeJSON(w, r, &req) {
		return
	}

	sess, err := h.currentSession(r)
	switch {
	case err == nil && sess == nil, isStaleSession(err):
		h.Cookies.ClearSession(w, r)
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errors.New("authentication required")})
		return
	case err != nil:
		h.logger().WarnContext(r.Context(), "refresh: session lookup failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "session_unavailable", Err: errors.New("session could not be loaded")})
		return
	}

	var nav navigationRecorder
	sc := h.restore(sess, service.SessionHooks{Navigator: &nav})
	sc.SetCurrentPath(req.Path)

	var st service.SessionState
	switch token := bearerToken(r); {
	case token != "":
		principal := sess.Principal()
		st = sc.HandleAuthStateChange(r.Context(), domainauth.AuthEvent{Principal: &principal, IDToken: token})
	case sess.RoleSource == domainauth.SourceClaim:
		// A claim-granted role can only be re-checked with a fresh ID token.
		st = sc.Snapshot()
	default:
		st = sc.Check(r.Context())
	}

	if st.Resolution.Failed() {
		resp := stateResponse(st, sess, nav.last())
		resp.Role = sess.Role
		WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if st.Role != sess.Role {
		updated, err := h.Svc.UpdateSessionRole(r.Context(), *sess, st.Resolution)
		if err != nil {
			h.logger().ErrorContext(r.Context(), "refresh: save session failed", "error", err)
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "refresh_failed", Err: errors.New("session could not be saved")})
			return
		}
		h.logger().InfoContext(r.Context(), "session role changed", "user_id", sess.UserID, "from", sess.Role.String(), "to", updated.Role.String())
		sess = &updated
	}
	WriteJSON(w, http.StatusOK, stateResponse(st, sess, nav.last()))
}

// currentSession returns (nil, nil) when the request carries no auth cookie.
func (h *SessionHandlers) currentSession(r *http.Request) (*domainauth.Session, error) {
	sid := h.Cookies.SessionID(r)
	if sid == "" {
		return nil, nil
	}
	return h.Svc.GetSession(r.Context(), sid)
}

func (h *SessionHandlers) restore(sess *domainauth.Session, hooks service.SessionHooks) *service.SessionContext {
	sc := h.Contexts.New(hooks)
	if sess == nil {
		sc.Adopt(nil, domainauth.RoleUnknown)
		return sc
	}
	principal := sess.Principal()
	sc.Adopt(&principal, sess.Role)
	return sc
}

func stateResponse(st service.SessionState, sess *domainauth.Session, redirectTo string) sessionStateResponse {
	resp := sessionStateResponse{
		Authenticated: st.User != nil,
		Role:          st.Role,
		Loading:       st.Loading,
		RoleLoaded:    st.RoleLoaded,
		RedirectTo:    redirectTo,
	}
	if st.User != nil {
		resp.User = &sessionUser{ID: st.User.UserID, Email: st.User.Email, DisplayName: st.User.DisplayName}
		resp.RoleSource = string(st.Resolution.Source)
	}
	if sess != nil {
		exp := sess.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}

// navigationRecorder captures the navigations a session context asks for.
type navigationRecorder struct {
	mu    sync.Mutex
	paths []string
}

var _ ports.Navigator = (*navigationRecorder)(nil)

func (n *navigationRecorder) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *navigationRecorder) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}
