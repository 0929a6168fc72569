package iam

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/domain"
)

// ErrAccessDenied is the sole failure outcome of authorization. Callers
// never learn which statement, or absence of statements, produced it.
var ErrAccessDenied = errors.New("access denied")

// PolicyFinder supplies the stored policies relevant to a request.
type PolicyFinder interface {
	// GetPoliciesForBucket returns the policies attached to a bucket.
	// An unknown bucket returns an empty slice, not an error.
	GetPoliciesForBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error)

	// GetPoliciesForUser returns the policies attached to a user.
	GetPoliciesForUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error)
}

// DecisionSink receives authorization outcomes for metrics.
type DecisionSink interface {
	// AuthzOutcome records one decision: "allow", "deny", or "root".
	AuthzOutcome(outcome string)
}

// Rule is one (action, resource) pair to authorize.
type Rule struct {
	Action   string
	Resource string
}

// Authorizer renders access decisions from stored policies.
type Authorizer struct {
	finder  PolicyFinder
	metrics DecisionSink
	logger  zerolog.Logger
}

// NewAuthorizer creates an Authorizer. metrics may be nil.
func NewAuthorizer(finder PolicyFinder, metrics DecisionSink, logger zerolog.Logger) *Authorizer {
	return &Authorizer{
		finder:  finder,
		metrics: metrics,
		logger:  logger.With().Str("component", "authorizer").Logger(),
	}
}

// RequireAll authorizes every rule independently; the request passes only
// when each rule individually passes. All rules are evaluated even after a
// failure so that the work done does not depend on rule order.
func (a *Authorizer) RequireAll(ctx context.Context, id Identity, rules ...Rule) error {
	if id.IsRoot() {
		a.report("root")
		return nil
	}

	failed := false
	for _, rule := range rules {
		ok, err := a.evaluate(ctx, id, rule)
		if err != nil {
			return err
		}
		if !ok {
			failed = true
		}
	}

	if failed {
		a.report("deny")
		return ErrAccessDenied
	}
	a.report("allow")
	return nil
}

// RequireAny authorizes the rules until one passes; the request passes if
// at least one rule does.
func (a *Authorizer) RequireAny(ctx context.Context, id Identity, rules ...Rule) error {
	if id.IsRoot() {
		a.report("root")
		return nil
	}

	for _, rule := range rules {
		ok, err := a.evaluate(ctx, id, rule)
		if err != nil {
			return err
		}
		if ok {
			a.report("allow")
			return nil
		}
	}

	a.report("deny")
	return ErrAccessDenied
}

// evaluate renders the decision for one rule. Policy statements come from
// the resource's bucket attachment plus, for authenticated callers, the
// caller's own user attachments.
func (a *Authorizer) evaluate(ctx context.Context, id Identity, rule Rule) (bool, error) {
	statements, err := a.collectStatements(ctx, id, rule.Resource)
	if err != nil {
		return false, err
	}

	principals := ResolvePrincipals(id)
	permitted := IsPermitted(statements, principals, rule.Action, rule.Resource)

	a.logger.Debug().
		Strs("principals", principals).
		Str("action", rule.Action).
		Str("resource", rule.Resource).
		Bool("permitted", permitted).
		Msg("policy decision")

	return permitted, nil
}

func (a *Authorizer) collectStatements(ctx context.Context, id Identity, resource string) ([]Statement, error) {
	var statements []Statement

	if bucket := BucketFromResource(resource); bucket != "" {
		policies, err := a.finder.GetPoliciesForBucket(ctx, bucket)
		if err != nil {
			return nil, err
		}
		for _, policy := range policies {
			statements = append(statements, NormalizePolicy(policy)...)
		}
	}

	if !id.IsAnonymous() {
		policies, err := a.finder.GetPoliciesForUser(ctx, id.Username)
		if err != nil {
			return nil, err
		}
		for _, policy := range policies {
			statements = append(statements, NormalizePolicy(policy)...)
		}
	}

	return statements, nil
}

func (a *Authorizer) report(outcome string) {
	if a.metrics != nil {
		a.metrics.AuthzOutcome(outcome)
	}
}

// BucketFromResource extracts the bucket name from a resource identifier.
// Returns "" when the resource is not in the bucket namespace.
func BucketFromResource(resource string) string {
	name, ok := strings.CutPrefix(resource, domain.BucketResourcePrefix)
	if !ok {
		return ""
	}
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		name = name[:idx]
	}
	return name
}
