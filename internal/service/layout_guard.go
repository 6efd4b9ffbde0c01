package service

import (
	"context"
	"sync"

	"github.com/eventrentals/portal/internal/domain/portal"
	"github.com/eventrentals/portal/internal/ports"
)

// LayoutGuard wraps the pages of one portal. It watches a SessionContext and
// navigates away at most once for each resolved state that does not belong on
// the portal. While mounted it is the only component that redirects for the
// session context.
type LayoutGuard struct {
	guard *portal.Guard
	nav   ports.Navigator
	path  string

	mu          sync.Mutex
	unsubscribe func()
	detach      func()
}

// MountLayoutGuard evaluates the current state of sc for path and keeps
// evaluating on every change until Unmount is called.
func MountLayoutGuard(ctx context.Context, sc *SessionContext, p portal.Portal, path string, nav ports.Navigator) *LayoutGuard {
	g := &LayoutGuard{guard: portal.NewGuard(p), nav: nav, path: path}
	sc.SetCurrentPath(path)
	detach := sc.attachGuard()

	unsubscribe := sc.Subscribe(func(st SessionState) {
		g.observe(ctx, st)
	})
	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.detach = detach
	g.mu.Unlock()

	g.observe(ctx, sc.Snapshot())
	return g
}

func (g *LayoutGuard) observe(ctx context.Context, st SessionState) {
	d, navigate := g.guard.Observe(g.path, st.Loading, st.RoleLoaded, st.Role)
	if navigate && g.nav != nil {
		g.nav.Navigate(ctx, d.RedirectTo)
	}
}

// Decision returns the latest guard decision.
func (g *LayoutGuard) Decision() portal.GuardDecision { return g.guard.Decision() }

// Settled reports whether the guarded page may render.
func (g *LayoutGuard) Settled() bool { return g.guard.Decision().State == portal.StateSettled }

// Unmount stops watching the session context.
func (g *LayoutGuard) Unmount() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
	if g.detach != nil {
		g.detach()
		g.detach = nil
	}
}
