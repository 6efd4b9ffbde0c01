package httpx

import (
	"log/slog"
	"net/http"

	"github.com/eventrentals/portal/internal/observability/metrics"
	"github.com/eventrentals/portal/internal/service"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth      AuthServiceInterface           // Required
	Contexts  *service.SessionContextFactory // Required
	Pages     http.Handler                   // Optional: defaults to PlaceholderPages
	Cookies   Cookies
	Metrics   *metrics.Metrics // Optional: enables GET /metrics and request counters
	Readiness []ReadinessCheck
	CSRF      bool         // double-submit protection on state-changing requests
	Logger    *slog.Logger // Optional
}

// NewRouter wires the auth and session API, health endpoints and the guarded
// portal pages.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{Svc: services.Auth, Cookies: services.Cookies, Logger: logger}
	sessionHandlers := &SessionHandlers{
		Svc:      services.Auth,
		Contexts: services.Contexts,
		Cookies:  services.Cookies,
		Logger:   logger,
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readinessHandler(services.Readiness))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics.Handler())
	}

	registerAuthRoutes(mux, authHandlers)
	registerSessionRoutes(mux, sessionHandlers)

	pages := services.Pages
	if pages == nil {
		pages = PlaceholderPages()
	}
	guard := PortalGuard(GuardConfig{
		Sessions: services.Auth,
		Cookies:  services.Cookies,
		Observer: services.Metrics,
		Logger:   logger,
	})
	gate := EdgeGate(GateConfig{Cookies: services.Cookies, Observer: services.Metrics, Logger: logger})
	mux.Handle("/", gate(guard(pages)))

	var handler http.Handler = mux
	if services.CSRF {
		handler = CSRFProtection(CSRFConfig{CookieDomain: services.Cookies.Domain})(handler)
	}
	handler = Logging(logger, services.Metrics)(handler)
	handler = Tracing()(handler)
	return Recover(logger)(handler)
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /api/auth/login", h.PasswordLogin)
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/forgot-password", h.ForgotPassword)
	mux.HandleFunc("GET /auth/{provider}/login", h.SocialLogin)
	mux.HandleFunc("GET /auth/{provider}/callback", h.SocialCallback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

func registerSessionRoutes(mux *http.ServeMux, h *SessionHandlers) {
	mux.HandleFunc("POST /api/session/set-role", h.SetRole)
	mux.HandleFunc("POST /api/session/clear-role", h.ClearRole)
	mux.HandleFunc("POST /api/session/refresh", h.Refresh)
	mux.HandleFunc("GET /api/session", h.State)
	mux.HandleFunc("GET /api/session/guard", h.Guard)
}
