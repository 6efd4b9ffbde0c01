// Package portal describes the two role-scoped portal trees and the access
// rules that decide who may view them.
package portal

import (
	"strings"

	"github.com/eventrentals/portal/internal/domain/auth"
)

// Portal identifies one of the role-scoped sections of the site.
type Portal uint8

const (
	None Portal = iota
	Admin
	Host
)

// HomePath is where signed-out users are sent.
const HomePath = "/"

const (
	adminPrefix = "/admin"
	hostPrefix  = "/app"
)

var publicPaths = map[Portal][]string{
	Admin: {"/admin/login", "/admin/forgot-password"},
	Host:  {"/app/login", "/app/register", "/app/forgot-password"},
}

func (p Portal) String() string {
	switch p {
	case Admin:
		return "admin"
	case Host:
		return "app"
	case None:
		return "none"
	default:
		return "none"
	}
}

// Parse maps the query/form value of a portal back to a Portal.
// Both "app" and "host" name the host portal.
func Parse(s string) Portal {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return Admin
	case "app", "host":
		return Host
	default:
		return None
	}
}

// ForPath returns the portal a request path belongs to.
func ForPath(path string) Portal {
	switch {
	case underPrefix(path, adminPrefix):
		return Admin
	case underPrefix(path, hostPrefix):
		return Host
	default:
		return None
	}
}

func underPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// IsPublicPath reports whether path is one of the sign-in pages that stay
// reachable without a session.
func IsPublicPath(path string) bool {
	p := ForPath(path)
	if p == None {
		return false
	}
	trimmed := path
	if len(trimmed) > 1 {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}
	for _, pub := range publicPaths[p] {
		if trimmed == pub {
			return true
		}
	}
	return false
}

// PublicPaths returns the public sub-paths of p.
func PublicPaths(p Portal) []string {
	out := make([]string, len(publicPaths[p]))
	copy(out, publicPaths[p])
	return out
}

// LoginPath returns the sign-in page of p.
func LoginPath(p Portal) string {
	switch p {
	case Admin:
		return "/admin/login"
	case Host:
		return "/app/login"
	case None:
		return HomePath
	default:
		return HomePath
	}
}

// LandingPath returns the page a user of p lands on after sign-in.
func LandingPath(p Portal) string {
	switch p {
	case Admin:
		return "/admin/dashboard"
	case Host:
		return "/app/home"
	case None:
		return HomePath
	default:
		return HomePath
	}
}

// ForRole returns the portal a role is routed to.
func ForRole(r auth.Role) Portal {
	switch r {
	case auth.RoleAdmin:
		return Admin
	case auth.RoleHost:
		return Host
	case auth.RoleUnknown:
		return None
	default:
		return None
	}
}

// LandingPathForRole returns the landing page for r, or HomePath for RoleUnknown.
func LandingPathForRole(r auth.Role) string {
	return LandingPath(ForRole(r))
}
