package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/ports"
)

// DefaultRoleResolutionTimeout bounds the claim check and directory lookup together.
const DefaultRoleResolutionTimeout = 5 * time.Second

const tracerName = "github.com/eventrentals/portal/internal/service"

// Resolver resolves the routing role of a principal.
type Resolver interface {
	Resolve(ctx context.Context, in ResolveInput) domainauth.Resolution
}

// ResolutionObserver receives the outcome and latency of each resolution.
type ResolutionObserver interface {
	ObserveResolution(res domainauth.Resolution, elapsed time.Duration)
}

// ResolveInput carries the principal and the tokens available for it.
// A nil Principal means nobody is signed in.
type ResolveInput struct {
	Principal    *domainauth.Principal
	IDToken      string
	RefreshToken string
}

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Directory ports.AdminDirectory   // Required: admin membership lookup
	Verifier  ports.TokenVerifier    // Optional: enables the claim check
	Claims    ports.ClaimEvaluator   // Optional: enables the claim check
	Identity  ports.IdentityProvider // Optional: refreshes the ID token before the claim check
	Timeout   time.Duration          // Optional: defaults to DefaultRoleResolutionTimeout
	Observer  ResolutionObserver     // Optional: metrics sink
	Logger    *slog.Logger           // Optional: structured logger
}

// RoleResolver decides whether a principal is an admin or a host.
//
// The admin claim on the ID token is checked first. When it is absent, false
// or cannot be read, the admin directory decides. Both steps share one timeout
// and concurrent resolutions for the same user are coalesced.
type RoleResolver struct {
	directory ports.AdminDirectory
	verifier  ports.TokenVerifier
	claims    ports.ClaimEvaluator
	identity  ports.IdentityProvider
	timeout   time.Duration
	observer  ResolutionObserver
	logger    *slog.Logger
	tracer    trace.Tracer

	group singleflight.Group
}

// NewRoleResolver constructs a RoleResolver.
func NewRoleResolver(opts RoleResolverOptions) (*RoleResolver, error) {
	if opts.Directory == nil {
		return nil, errors.New("AdminDirectory is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRoleResolutionTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleResolver{
		directory: opts.Directory,
		verifier:  opts.Verifier,
		claims:    opts.Claims,
		identity:  opts.Identity,
		timeout:   timeout,
		observer:  opts.Observer,
		logger:    logger.With("component", "role_resolver"),
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// MustNewRoleResolver constructs a RoleResolver and panics on error.
func MustNewRoleResolver(opts RoleResolverOptions) *RoleResolver {
	r, err := NewRoleResolver(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create RoleResolver: %v", err))
	}
	return r
}

// Resolve returns the role resolution for in.Principal. It never returns an error;
// failures are reported as a ResolutionFailed result.
func (r *RoleResolver) Resolve(ctx context.Context, in ResolveInput) domainauth.Resolution {
	start := time.Now()
	if in.Principal == nil || in.Principal.UserID == "" {
		res := domainauth.ResolveUnknown()
		r.observe(res, time.Since(start))
		return res
	}

	// The shared call outlives any single caller; resolve applies the timeout.
	shared := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(flightKey(in), func() (any, error) {
		return r.resolve(shared, in), nil
	})
	res, ok := v.(domainauth.Resolution)
	if !ok {
		res = domainauth.ResolveFailed(errors.New("unexpected resolution result"))
	}
	r.observe(res, time.Since(start))
	return res
}

// flightKey separates callers that can prove an admin claim from callers that
// only have a user ID, so neither receives the other's result.
func flightKey(in ResolveInput) string {
	if in.IDToken != "" || in.RefreshToken != "" {
		return in.Principal.UserID + "|token"
	}
	return in.Principal.UserID + "|directory"
}

func (r *RoleResolver) resolve(ctx context.Context, in ResolveInput) domainauth.Resolution {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "RoleResolver.Resolve")
	defer span.End()

	res := r.decide(ctx, in.Principal.UserID, in)
	span.SetAttributes(
		attribute.String("portal.resolution.kind", res.Kind.String()),
		attribute.String("portal.resolution.source", string(res.Source)),
	)
	if res.Failed() {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "role resolution failed")
	}
	return res
}

func (r *RoleResolver) decide(ctx context.Context, userID string, in ResolveInput) domainauth.Resolution {
	if r.hasAdminClaim(ctx, userID, in) {
		return domainauth.ResolveAdmin(domainauth.SourceClaim)
	}

	membership, err := r.directory.GetAdmin(ctx, userID)
	switch {
	case errors.Is(err, ports.ErrAdminNotFound):
		return domainauth.ResolveHost(domainauth.SourceDirectory)
	case err != nil:
		r.logger.ErrorContext(ctx, "admin directory lookup failed", "user_id", userID, "error", err)
		return domainauth.ResolveFailed(fmt.Errorf("admin directory lookup: %w", err))
	case membership.Grants():
		return domainauth.ResolveAdmin(domainauth.SourceDirectory)
	default:
		return domainauth.ResolveHost(domainauth.SourceDirectory)
	}
}

// hasAdminClaim runs the claim check. Any failure counts as "no claim".
func (r *RoleResolver) hasAdminClaim(ctx context.Context, userID string, in ResolveInput) bool {
	if r.verifier == nil || r.claims == nil {
		return false
	}

	token := in.IDToken
	if in.RefreshToken != "" && r.identity != nil {
		fresh, err := r.identity.RefreshIDToken(ctx, in.RefreshToken)
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "id token refresh failed", "user_id", userID, "error", err)
		case fresh != "":
			token = fresh
		}
	}
	if token == "" {
		return false
	}

	principal, claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.logger.WarnContext(ctx, "admin claim check failed", "user_id", userID, "error", err)
		return false
	}
	if principal.UserID != userID {
		r.logger.WarnContext(ctx, "id token subject mismatch", "user_id", userID, "token_subject", principal.UserID)
		return false
	}

	ok, err := r.claims.IsAdmin(claims)
	if err != nil {
		r.logger.WarnContext(ctx, "admin claim evaluation failed", "user_id", userID, "error", err)
		return false
	}
	return ok
}

func (r *RoleResolver) observe(res domainauth.Resolution, elapsed time.Duration) {
	if r.observer != nil {
		r.observer.ObserveResolution(res, elapsed)
	}
}
