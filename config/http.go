package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the external URL of the site (e.g., "https://rentals.example.com").
	// Social sign-in callbacks are registered under it.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// PagesUpstream is the page renderer the guarded portal routes are proxied to.
	// Empty serves a placeholder page.
	PagesUpstream string `env:"PAGES_UPSTREAM_URL" envDefault:""`

	// CSRFEnabled turns on double-submit protection for cookie-authenticated POSTs.
	CSRFEnabled bool `env:"HTTP_CSRF_ENABLED" envDefault:"true"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr = strings.TrimSpace(h.Addr); h.Addr == "" {
		h.Addr = ":8080"
	}
	h.BaseURL = strings.TrimRight(strings.TrimSpace(h.BaseURL), "/")
	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))
	h.PagesUpstream = strings.TrimSpace(h.PagesUpstream)
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 30 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 120 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// Validate rejects a cookie domain that browsers would refuse or that would
// share the session with unrelated sites, and malformed URLs.
func (h *HTTPConfig) Validate() error {
	if h.CookieDomain != "" {
		if err := validateCookieDomain(h.CookieDomain); err != nil {
			return err
		}
	}
	if _, err := h.CallbackURL("google"); err != nil {
		return fmt.Errorf("APP_BASE_URL: %w", err)
	}
	if h.PagesUpstream != "" {
		u, err := url.Parse(h.PagesUpstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("PAGES_UPSTREAM_URL must be an absolute URL, got %q", h.PagesUpstream)
		}
	}
	return nil
}

// CallbackURL returns the social sign-in callback registered for provider.
func (h *HTTPConfig) CallbackURL(provider string) (string, error) {
	u, err := url.Parse(h.BaseURL)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("base URL must be an absolute http(s) URL, got %q", h.BaseURL)
	}
	return u.JoinPath("auth", provider, "callback").String(), nil
}

func validateCookieDomain(domain string) error {
	if domain == "localhost" {
		return nil
	}
	suffix, icann := publicsuffix.PublicSuffix(domain)
	if suffix == domain && (icann || !strings.Contains(domain, ".")) {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q is a public suffix", domain)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q: %w", domain, err)
	}
	return nil
}
