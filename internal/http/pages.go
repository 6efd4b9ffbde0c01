package httpx

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// NewPagesProxy forwards page requests to the front-end server that renders
// the portal pages. The guard has already run; the verified role travels in
// the X-Portal-Role header, replacing anything the client sent.
func NewPagesProxy(upstream *url.URL, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del("X-Portal-Role")
			pr.Out.Header.Del("X-Portal-User")
			if sess := GetSessionFromContext(pr.In.Context()); sess != nil {
				pr.Out.Header.Set("X-Portal-Role", sess.Role.String())
				pr.Out.Header.Set("X-Portal-User", sess.UserID)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "page upstream failed", "path", r.URL.Path, "error", err)
			http.Error(w, "page temporarily unavailable", http.StatusBadGateway)
		},
	}
	return proxy
}

// PlaceholderPages stands in for the front-end when none is configured. It
// names the page and the role it was rendered for.
func PlaceholderPages() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := RoleFromContext(r.Context())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><title>%s</title><p data-role=%q>%s</p>\n",
			html.EscapeString(r.URL.Path), role.String(), html.EscapeString(r.URL.Path))
	})
}
