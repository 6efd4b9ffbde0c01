package authroles

import (
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
)

// DefaultAdminClaimExpr selects the top-level "admin" custom claim.
const DefaultAdminClaimExpr = "admin"

// ClaimEvaluator grants admin when a JMESPath expression over the verified
// ID-token claims yields boolean true. Truthy non-boolean values do not count.
type ClaimEvaluator struct {
	expr string
}

// NewClaimEvaluator validates expr and returns an evaluator for it.
// An empty expression falls back to DefaultAdminClaimExpr.
func NewClaimEvaluator(expr string) (*ClaimEvaluator, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultAdminClaimExpr
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return nil, fmt.Errorf("compile admin claim expression %q: %w", expr, err)
	}
	return &ClaimEvaluator{expr: expr}, nil
}

// Expr returns the configured expression.
func (e *ClaimEvaluator) Expr() string { return e.expr }

// IsAdmin evaluates the expression against claims.
func (e *ClaimEvaluator) IsAdmin(claims domainauth.Claims) (bool, error) {
	if e == nil {
		return false, errors.New("claim evaluator is not configured")
	}
	if len(claims) == 0 {
		return false, nil
	}
	out, err := jmespath.Search(e.expr, map[string]any(claims))
	if err != nil {
		return false, fmt.Errorf("evaluate admin claim: %w", err)
	}
	granted, ok := out.(bool)
	return ok && granted, nil
}
