package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventrentals/portal/internal/domain/auth"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		in   GuardInput
		want GuardDecision
	}{
		{
			name: "public page settles while pending",
			in:   GuardInput{Portal: Admin, Path: "/admin/login", Loading: true},
			want: GuardDecision{State: StateSettled},
		},
		{
			name: "loading is pending",
			in:   GuardInput{Portal: Host, Path: "/app/home", Loading: true, RoleLoaded: true, Role: auth.RoleHost},
			want: GuardDecision{State: StatePending},
		},
		{
			name: "role not loaded is pending",
			in:   GuardInput{Portal: Host, Path: "/app/home", RoleLoaded: false, Role: auth.RoleHost},
			want: GuardDecision{State: StatePending},
		},
		{
			name: "admin on host page goes to dashboard",
			in:   GuardInput{Portal: Host, Path: "/app/home", RoleLoaded: true, Role: auth.RoleAdmin},
			want: GuardDecision{State: StateRedirecting, RedirectTo: "/admin/dashboard"},
		},
		{
			name: "host on admin page goes to app home",
			in:   GuardInput{Portal: Admin, Path: "/admin/users", RoleLoaded: true, Role: auth.RoleHost},
			want: GuardDecision{State: StateRedirecting, RedirectTo: "/app/home"},
		},
		{
			name: "unknown on host page goes to host login",
			in:   GuardInput{Portal: Host, Path: "/app/my-events", RoleLoaded: true, Role: auth.RoleUnknown},
			want: GuardDecision{State: StateRedirecting, RedirectTo: "/app/login"},
		},
		{
			name: "unknown on admin page goes to admin login",
			in:   GuardInput{Portal: Admin, Path: "/admin/dashboard", RoleLoaded: true, Role: auth.RoleUnknown},
			want: GuardDecision{State: StateRedirecting, RedirectTo: "/admin/login"},
		},
		{
			name: "matching role settles",
			in:   GuardInput{Portal: Admin, Path: "/admin/dashboard", RoleLoaded: true, Role: auth.RoleAdmin},
			want: GuardDecision{State: StateSettled},
		},
		{
			name: "other portal public page is not exempt",
			in:   GuardInput{Portal: Admin, Path: "/app/login", RoleLoaded: true, Role: auth.RoleUnknown},
			want: GuardDecision{State: StateRedirecting, RedirectTo: "/admin/login"},
		},
		{
			name: "no portal settles",
			in:   GuardInput{Portal: None, Path: "/", RoleLoaded: true},
			want: GuardDecision{State: StateSettled},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.in))
			assert.Equal(t, tt.want, Evaluate(tt.in), "evaluation must be stable")
		})
	}
}

func TestGuard_RedirectsOncePerState(t *testing.T) {
	g := NewGuard(Host)
	assert.Equal(t, Host, g.Portal())

	d, navigate := g.Observe("/app/home", true, false, auth.RoleUnknown)
	assert.Equal(t, StatePending, d.State)
	assert.False(t, navigate)

	d, navigate = g.Observe("/app/home", false, true, auth.RoleAdmin)
	assert.Equal(t, GuardDecision{State: StateRedirecting, RedirectTo: "/admin/dashboard"}, d)
	assert.True(t, navigate)

	for i := 0; i < 3; i++ {
		d, navigate = g.Observe("/app/home", false, true, auth.RoleAdmin)
		assert.Equal(t, StateRedirecting, d.State)
		assert.False(t, navigate, "same state must not redirect again")
	}
	assert.Equal(t, "/admin/dashboard", g.Decision().RedirectTo)
}

func TestGuard_NewStateMayRedirectAgain(t *testing.T) {
	g := NewGuard(Admin)

	_, navigate := g.Observe("/admin/dashboard", false, true, auth.RoleHost)
	assert.True(t, navigate)

	_, navigate = g.Observe("/admin/dashboard", false, true, auth.RoleUnknown)
	assert.True(t, navigate)
	assert.Equal(t, "/admin/login", g.Decision().RedirectTo)
}

func TestGuard_LoadingBlipDoesNotRedirectAgain(t *testing.T) {
	g := NewGuard(Host)

	_, navigate := g.Observe("/app/home", false, true, auth.RoleAdmin)
	assert.True(t, navigate)

	d, navigate := g.Observe("/app/home", true, false, auth.RoleUnknown)
	assert.Equal(t, StatePending, d.State)
	assert.False(t, navigate)

	_, navigate = g.Observe("/app/home", false, true, auth.RoleAdmin)
	assert.False(t, navigate, "refresh to the same role must not redirect again")

	_, navigate = g.Observe("/app/home", false, true, auth.RoleHost)
	assert.False(t, navigate)
	assert.Equal(t, StateSettled, g.Decision().State)

	_, navigate = g.Observe("/app/home", false, true, auth.RoleAdmin)
	assert.True(t, navigate, "a settled page reopens the latch")
}

func TestGuardState_String(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "resolved", StateResolved.String())
	assert.Equal(t, "redirecting", StateRedirecting.String())
	assert.Equal(t, "settled", StateSettled.String())
}
