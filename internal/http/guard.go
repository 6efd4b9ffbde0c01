package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
	"github.com/eventrentals/portal/internal/service"
)

// guardRetryAfter is advertised when the session store cannot answer.
const guardRetryAfter = 2 * time.Second

// GuardObserver counts portal guard decisions.
type GuardObserver interface {
	ObserveGuard(p portal.Portal, state portal.GuardState)
}

// SessionReader loads the server session referenced by the auth cookie.
type SessionReader interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// GuardConfig configures PortalGuard.
type GuardConfig struct {
	Sessions SessionReader // Required
	Cookies  Cookies
	Observer GuardObserver // Optional
	Logger   *slog.Logger  // Optional
}

// PortalGuard is the server-side layout guard of both portals. It loads the
// session behind the auth cookie and lets a page render only when the role of
// the session belongs to the portal being viewed; otherwise it redirects to
// the portal's login page or to the landing page of the role's own portal.
func PortalGuard(cfg GuardConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "portal_guard")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := portal.ForPath(r.URL.Path)
			if p == portal.None {
				next.ServeHTTP(w, r)
				return
			}

			in := portal.GuardInput{Portal: p, Path: r.URL.Path, RoleLoaded: true}
			var sess *domainauth.Session
			if !portal.IsPublicPath(r.URL.Path) {
				var err error
				sess, err = loadGuardSession(r, cfg)
				switch {
				case err == nil:
					if sess != nil {
						in.Role = sess.Role
					}
				case isStaleSession(err):
					cfg.Cookies.ClearSession(w, r)
				default:
					logger.WarnContext(r.Context(), "session lookup failed", "path", r.URL.Path, "error", err)
					in.RoleLoaded = false
				}
			}

			d := portal.Evaluate(in)
			if cfg.Observer != nil {
				cfg.Observer.ObserveGuard(p, d.State)
			}

			switch d.State {
			case portal.StateSettled, portal.StateResolved:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), sess)))
			case portal.StateRedirecting:
				respondRedirect(w, r, d.RedirectTo, http.StatusForbidden)
			case portal.StatePending:
				w.Header().Set("Retry-After", strconv.Itoa(int(guardRetryAfter.Seconds())))
				WriteError(w, ErrorParams{
					Code:    http.StatusServiceUnavailable,
					ErrCode: "session_unavailable",
					Err:     errors.New("your session could not be checked, please retry"),
				})
			}
		})
	}
}

func loadGuardSession(r *http.Request, cfg GuardConfig) (*domainauth.Session, error) {
	sid := cfg.Cookies.SessionID(r)
	if sid == "" {
		return nil, nil
	}
	return cfg.Sessions.GetSession(r.Context(), sid)
}

func isStaleSession(err error) bool {
	return errors.Is(err, service.ErrSessionExpired) || errors.Is(err, ports.ErrSessionNotFound)
}
