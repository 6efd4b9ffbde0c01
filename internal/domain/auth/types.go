package auth

// Package auth contains domain-level types for identities, roles and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the access tier of the current session.
// It is a closed set: RoleUnknown, RoleAdmin and RoleHost. The zero value is RoleUnknown.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleHost
)

// ErrInvalidRole is returned when a role string is outside the accepted set.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole parses the wire form of a routing role. Only "admin" and "host" are accepted.
func ParseRole(s string) (Role, error) {
	switch strings.TrimSpace(s) {
	case "admin":
		return RoleAdmin, nil
	case "host":
		return RoleHost, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %q (valid options: admin, host)", ErrInvalidRole, s)
	}
}

// String returns the wire form of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleHost:
		return "host"
	case RoleUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Valid reports whether the role grants access to a portal.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleHost }

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Persisted records may carry "unknown"; everything else goes through ParseRole.
func (r *Role) UnmarshalText(text []byte) error {
	v := string(text)
	if v == "unknown" || v == "" {
		*r = RoleUnknown
		return nil
	}
	parsed, err := ParseRole(v)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Principal is the identity record read from the identity provider.
// This system only reads it; the provider owns it.
type Principal struct {
	UserID      string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Provider    string    `json:"provider,omitempty"` // password, google.com, facebook.com, dev
	ExpiresAt   time.Time `json:"-"`
}

// Claims is the verified claim set of an ID token.
type Claims map[string]any

// AuthEvent is pushed by the identity provider on login, logout and token refresh.
// A nil Principal means signed out.
type AuthEvent struct {
	Principal    *Principal
	IDToken      string
	RefreshToken string
}

// Session is the server-side record persisted for an authenticated user.
// ID is an opaque identifier carried in the auth cookie.
type Session struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Email       string           `json:"email"`
	DisplayName string           `json:"display_name"`
	Provider    string           `json:"provider"`
	Role        Role             `json:"role"`
	RoleSource  ResolutionSource `json:"role_source"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// Principal returns the identity the session was created for.
func (s Session) Principal() Principal {
	return Principal{
		UserID:      s.UserID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Provider:    s.Provider,
		ExpiresAt:   s.ExpiresAt,
	}
}

// AdminMembership is a record in the admins directory keyed by user id.
type AdminMembership struct {
	UserID    string    `db:"user_id"`
	Active    *bool     `db:"active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Grants reports whether the record confers the admin role.
// A missing active flag counts as active; only an explicit false revokes.
func (m AdminMembership) Grants() bool {
	return m.Active == nil || *m.Active
}

// AdminAction names a change recorded in the admin audit trail.
type AdminAction string

const (
	AdminGranted AdminAction = "grant"
	AdminRevoked AdminAction = "revoke"
	AdminDeleted AdminAction = "delete"
)

// AdminAuditEntry is one change to the admins directory.
type AdminAuditEntry struct {
	ID        int64       `db:"id"`
	UserID    string      `db:"user_id"`
	Action    AdminAction `db:"action"`
	Actor     string      `db:"actor"`
	CreatedAt time.Time   `db:"created_at"`
}
