package httpx

import (
	"net/http"
	"time"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
)

const (
	// DefaultAuthCookieName is the cookie whose presence the edge gate checks.
	DefaultAuthCookieName = "firebase-authed-token"
	// legacyRoleCookieName is cleared on sign-out; it is never issued.
	legacyRoleCookieName = "role"

	oauthStateCookie    = "oauth_state"
	oauthNonceCookie    = "oauth_nonce"
	postLoginCookie     = "post_login_redirect"
	oauthCookieLifetime = 10 * time.Minute
)

// Cookies writes the cookies of the portal. The zero value uses DefaultAuthCookieName
// and a host-only domain.
type Cookies struct {
	AuthName string
	Domain   string
}

// Name returns the auth cookie name.
func (c Cookies) Name() string {
	if c.AuthName == "" {
		return DefaultAuthCookieName
	}
	return c.AuthName
}

// SessionID returns the opaque session id carried by the request, if any.
func (c Cookies) SessionID(r *http.Request) string {
	ck, err := r.Cookie(c.Name())
	if err != nil {
		return ""
	}
	return ck.Value
}

// SetSession writes the httpOnly auth cookie for s, expiring with the session.
func (c Cookies) SetSession(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name(),
		Value:    s.ID,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// ClearSession expires the auth cookie and the legacy role cookie.
func (c Cookies) ClearSession(w http.ResponseWriter, r *http.Request) {
	c.clear(w, r, c.Name())
	c.clear(w, r, legacyRoleCookieName)
}

// oauthCookieParams groups values needed to set OAuth cookies.
type oauthCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setOAuth stores OAuth state, nonce, and the post-login redirect for the round trip.
func (c Cookies) setOAuth(w http.ResponseWriter, r *http.Request, p oauthCookieParams) {
	c.setTemporary(w, r, oauthStateCookie, p.State)
	c.setTemporary(w, r, oauthNonceCookie, p.Nonce)
	c.setTemporary(w, r, postLoginCookie, p.RedirectURI)
}

func (c Cookies) clearOAuth(w http.ResponseWriter, r *http.Request) {
	c.clear(w, r, oauthStateCookie)
	c.clear(w, r, oauthNonceCookie)
	c.clear(w, r, postLoginCookie)
}

func (c Cookies) setTemporary(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthCookieLifetime.Seconds()),
	})
}

// clear expires a cookie, mirroring the attributes it was set with so that
// browsers match and drop it.
func (c Cookies) clear(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || isForwardedHTTPS(r)
}
