package httpx

import (
	"log/slog"
	"net/http"

	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/observability/metrics"
)

// GateObserver counts edge gate decisions.
type GateObserver interface {
	ObserveGate(p portal.Portal, decision string)
}

// GateConfig configures EdgeGate.
type GateConfig struct {
	Cookies  Cookies      // auth cookie whose presence is checked
	Observer GateObserver // Optional
	Logger   *slog.Logger // Optional
}

type edgeGate struct {
	cookies  Cookies
	observer GateObserver
	logger   *slog.Logger
}

// EdgeGate runs ahead of every page handler. A request for a protected page
// of either portal that carries no auth cookie is redirected to that portal's
// login page. Everything else passes through untouched.
//
// The gate only checks presence; the portal guard verifies the session. Any
// failure inside the gate lets the request through.
func EdgeGate(cfg GateConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &edgeGate{cookies: cfg.Cookies, observer: cfg.Observer, logger: logger.With("component", "edge_gate")}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if target := g.decide(r); target != "" {
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// decide returns the login page to redirect to, or "" to pass the request on.
func (g *edgeGate) decide(r *http.Request) (target string) {
	p := portal.None
	defer func() {
		if rec := recover(); rec != nil {
			target = ""
			g.logger.ErrorContext(r.Context(), "edge gate failed open", "path", r.URL.Path, "panic", rec)
			g.observeFailOpen(p)
		}
	}()

	p = portal.ForPath(r.URL.Path)
	switch {
	case p == portal.None:
		return ""
	case portal.IsPublicPath(r.URL.Path):
		g.observe(p, metrics.GatePublic)
		return ""
	case g.cookies.SessionID(r) != "":
		g.observe(p, metrics.GateAllowed)
		return ""
	default:
		g.observe(p, metrics.GateRedirected)
		return portal.LoginPath(p)
	}
}

func (g *edgeGate) observe(p portal.Portal, decision string) {
	if g.observer != nil {
		g.observer.ObserveGate(p, decision)
	}
}

func (g *edgeGate) observeFailOpen(p portal.Portal) {
	defer func() { _ = recover() }()
	g.observe(p, metrics.GateFailOpen)
}
