package portal

import (
	"sync"

	"github.com/eventrentals/portal/internal/domain/auth"
)

// GuardState is the state of a portal guard for one view.
type GuardState uint8

const (
	StatePending GuardState = iota
	StateResolved
	StateRedirecting
	StateSettled
)

func (s GuardState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRedirecting:
		return "redirecting"
	case StateSettled:
		return "settled"
	default:
		return "pending"
	}
}

// GuardInput is everything a guard looks at.
type GuardInput struct {
	Portal     Portal
	Path       string
	Loading    bool
	RoleLoaded bool
	Role       auth.Role
}

// GuardDecision is the outcome of Evaluate. RedirectTo is set only in StateRedirecting.
type GuardDecision struct {
	State      GuardState
	RedirectTo string
}

// Evaluate decides what the guard of in.Portal does for the given session state.
// It is pure: equal inputs yield equal decisions.
func Evaluate(in GuardInput) GuardDecision {
	if in.Portal == None {
		return GuardDecision{State: StateSettled}
	}
	if IsPublicPath(in.Path) && ForPath(in.Path) == in.Portal {
		return GuardDecision{State: StateSettled}
	}
	if in.Loading || !in.RoleLoaded {
		return GuardDecision{State: StatePending}
	}

	switch in.Role {
	case auth.RoleUnknown:
		return GuardDecision{State: StateRedirecting, RedirectTo: LoginPath(in.Portal)}
	case auth.RoleAdmin, auth.RoleHost:
		if target := ForRole(in.Role); target != in.Portal {
			return GuardDecision{State: StateRedirecting, RedirectTo: LandingPath(target)}
		}
		return GuardDecision{State: StateSettled}
	default:
		return GuardDecision{State: StateRedirecting, RedirectTo: LoginPath(in.Portal)}
	}
}

// Guard latches redirects so a mounted layout navigates at most once per
// resolved state. A loading blip between two states that redirect to the same
// page does not reopen the latch; only a settled decision does. It is safe for
// concurrent use.
type Guard struct {
	portal Portal

	mu         sync.Mutex
	last       GuardInput
	hasLast    bool
	decision   GuardDecision
	redirected string
}

// NewGuard returns a guard for p.
func NewGuard(p Portal) *Guard {
	return &Guard{portal: p, decision: GuardDecision{State: StatePending}}
}

// Portal returns the portal this guard protects.
func (g *Guard) Portal() Portal { return g.portal }

// Observe evaluates the new state. The returned bool is true only the first
// time a given input produces a redirect; repeated observations of the same
// input report the decision without asking for another navigation.
func (g *Guard) Observe(path string, loading, roleLoaded bool, role auth.Role) (GuardDecision, bool) {
	in := GuardInput{Portal: g.portal, Path: path, Loading: loading, RoleLoaded: roleLoaded, Role: role}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasLast && g.last == in {
		return g.decision, false
	}
	g.last = in
	g.hasLast = true
	g.decision = Evaluate(in)

	switch g.decision.State {
	case StateSettled:
		g.redirected = ""
	case StateRedirecting:
		if g.decision.RedirectTo == g.redirected {
			return g.decision, false
		}
		g.redirected = g.decision.RedirectTo
		return g.decision, true
	default:
		return g.decision, false
	}
	return g.decision, false
}

// Decision returns the most recent decision.
func (g *Guard) Decision() GuardDecision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}
