package auth

// ResolutionKind discriminates the outcome of a role resolution.
type ResolutionKind uint8

const (
	ResolvedUnknown ResolutionKind = iota
	ResolvedAdmin
	ResolvedHost
	ResolutionFailed
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedAdmin:
		return "resolved_admin"
	case ResolvedHost:
		return "resolved_host"
	case ResolutionFailed:
		return "failed"
	case ResolvedUnknown:
		return "resolved_unknown"
	default:
		return "resolved_unknown"
	}
}

// ResolutionSource names the step that decided a resolution.
type ResolutionSource string

const (
	SourceNone      ResolutionSource = "none"
	SourceClaim     ResolutionSource = "claim"
	SourceDirectory ResolutionSource = "directory"
	SourceSession   ResolutionSource = "session"
)

// Resolution is the result of resolving the role of a principal.
type Resolution struct {
	Kind   ResolutionKind
	Source ResolutionSource
	Err    error
}

// Role maps the resolution to a routing role. A failed resolution grants no portal access.
func (r Resolution) Role() Role {
	switch r.Kind {
	case ResolvedAdmin:
		return RoleAdmin
	case ResolvedHost:
		return RoleHost
	case ResolvedUnknown, ResolutionFailed:
		return RoleUnknown
	default:
		return RoleUnknown
	}
}

// Failed reports whether the resolution could not be completed.
func (r Resolution) Failed() bool { return r.Kind == ResolutionFailed }

// ResolveAdmin returns an admin resolution decided by source.
func ResolveAdmin(source ResolutionSource) Resolution {
	return Resolution{Kind: ResolvedAdmin, Source: source}
}

// ResolveHost returns a host resolution decided by source.
func ResolveHost(source ResolutionSource) Resolution {
	return Resolution{Kind: ResolvedHost, Source: source}
}

// ResolveUnknown returns the resolution for an absent principal.
func ResolveUnknown() Resolution {
	return Resolution{Kind: ResolvedUnknown, Source: SourceNone}
}

// ResolveFailed returns a failed resolution carrying err.
func ResolveFailed(err error) Resolution {
	return Resolution{Kind: ResolutionFailed, Source: SourceNone, Err: err}
}

// ResolutionForRole converts an already-resolved role back into a resolution.
func ResolutionForRole(role Role, source ResolutionSource) Resolution {
	switch role {
	case RoleAdmin:
		return ResolveAdmin(source)
	case RoleHost:
		return ResolveHost(source)
	case RoleUnknown:
		return ResolveUnknown()
	default:
		return ResolveUnknown()
	}
}
