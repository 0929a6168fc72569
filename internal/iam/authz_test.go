package iam

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberstore/emberstore/internal/domain"
)

// mockPolicyFinder is a mock implementation of PolicyFinder.
type mockPolicyFinder struct {
	bucketPolicies map[string][]*domain.PolicyDocument
	userPolicies   map[string][]*domain.PolicyDocument
	err            error

	bucketCalls []string
	userCalls   []string
}

func newMockPolicyFinder() *mockPolicyFinder {
	return &mockPolicyFinder{
		bucketPolicies: make(map[string][]*domain.PolicyDocument),
		userPolicies:   make(map[string][]*domain.PolicyDocument),
	}
}

func (m *mockPolicyFinder) GetPoliciesForBucket(ctx context.Context, bucketName string) ([]*domain.PolicyDocument, error) {
	m.bucketCalls = append(m.bucketCalls, bucketName)
	if m.err != nil {
		return nil, m.err
	}
	return m.bucketPolicies[bucketName], nil
}

func (m *mockPolicyFinder) GetPoliciesForUser(ctx context.Context, username string) ([]*domain.PolicyDocument, error) {
	m.userCalls = append(m.userCalls, username)
	if m.err != nil {
		return nil, m.err
	}
	return m.userPolicies[username], nil
}

func (m *mockPolicyFinder) addBucketPolicy(bucket, document string) {
	m.bucketPolicies[bucket] = append(m.bucketPolicies[bucket], &domain.PolicyDocument{
		Scope:      domain.PolicyScopeBucket,
		BucketName: bucket,
		Document:   []byte(document),
	})
}

func (m *mockPolicyFinder) addUserPolicy(username, document string) {
	m.userPolicies[username] = append(m.userPolicies[username], &domain.PolicyDocument{
		Scope:    domain.PolicyScopeUser,
		Username: username,
		Document: []byte(document),
	})
}

// countingSink records authorization outcomes.
type countingSink struct {
	outcomes []string
}

func (c *countingSink) AuthzOutcome(outcome string) {
	c.outcomes = append(c.outcomes, outcome)
}

func newTestAuthorizer(finder PolicyFinder, sink DecisionSink) *Authorizer {
	return NewAuthorizer(finder, sink, zerolog.Nop())
}

var (
	alice = Identity{Username: "alice", Roles: []string{domain.RoleUser}}
	root  = Identity{Username: "admin", Roles: []string{domain.RoleRoot}}
)

const allowAliceRead = `{
	"Statement": [{
		"Effect": "Allow",
		"Principal": "emr:user:alice",
		"Action": "s3:GetObject",
		"Resource": "emr:bucket:data/*"
	}]
}`

func TestAuthorizer_AllowFromBucketPolicy(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addBucketPolicy("data", allowAliceRead)

	a := newTestAuthorizer(finder, nil)

	err := a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/file.txt"})
	require.NoError(t, err)
}

func TestAuthorizer_DenyWithoutPolicy(t *testing.T) {
	a := newTestAuthorizer(newMockPolicyFinder(), nil)

	err := a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/file.txt"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAuthorizer_AllowFromUserPolicy(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addUserPolicy("alice", allowAliceRead)

	a := newTestAuthorizer(finder, nil)

	err := a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/file.txt"})
	require.NoError(t, err)
}

func TestAuthorizer_DenyOverridesAcrossAttachments(t *testing.T) {
	// Allow comes from the user attachment, deny from the bucket
	// attachment. The deny must win whichever order they are merged in.
	finder := newMockPolicyFinder()
	finder.addUserPolicy("alice", allowAliceRead)
	finder.addBucketPolicy("data", `{
		"Statement": [{
			"Effect": "Deny",
			"Principal": "emr:user:alice",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:data/*"
		}]
	}`)

	a := newTestAuthorizer(finder, nil)

	err := a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/file.txt"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAuthorizer_RootBypassesPolicies(t *testing.T) {
	finder := newMockPolicyFinder()
	sink := &countingSink{}
	a := newTestAuthorizer(finder, sink)

	err := a.RequireAll(context.Background(), root,
		Rule{Action: "s3:DeleteBucket", Resource: "emr:bucket:anything"})
	require.NoError(t, err)

	// No policy lookup happens for root.
	require.Empty(t, finder.bucketCalls)
	require.Empty(t, finder.userCalls)
	require.Equal(t, []string{"root"}, sink.outcomes)
}

func TestAuthorizer_AnonymousPrincipal(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addBucketPolicy("public", `{
		"Statement": [{
			"Effect": "Allow",
			"Principal": "emr:anonymous",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:public/*"
		}]
	}`)

	a := newTestAuthorizer(finder, nil)

	err := a.RequireAll(context.Background(), Identity{},
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:public/index.html"})
	require.NoError(t, err)

	// Anonymous callers have no user attachments to consult.
	require.Empty(t, finder.userCalls)

	// The anonymous grant does not extend to other actions.
	err = a.RequireAll(context.Background(), Identity{},
		Rule{Action: "s3:PutObject", Resource: "emr:bucket:public/index.html"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAuthorizer_RequireAllEvaluatesEveryRule(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addBucketPolicy("data", allowAliceRead)

	a := newTestAuthorizer(finder, nil)

	// The first rule fails. The second still triggers a bucket lookup,
	// so evaluation work does not depend on rule order.
	err := a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:PutObject", Resource: "emr:bucket:data/file.txt"},
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:other/file.txt"})
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Equal(t, []string{"data", "other"}, finder.bucketCalls)
}

func TestAuthorizer_RequireAnyShortCircuits(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addBucketPolicy("data", allowAliceRead)

	a := newTestAuthorizer(finder, nil)

	err := a.RequireAny(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/file.txt"},
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:other/file.txt"})
	require.NoError(t, err)
	require.Equal(t, []string{"data"}, finder.bucketCalls)
}

func TestAuthorizer_RequireAnyAllFail(t *testing.T) {
	a := newTestAuthorizer(newMockPolicyFinder(), nil)

	err := a.RequireAny(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:a/x"},
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:b/x"})
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAuthorizer_FinderErrorPropagates(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.err = errors.New("database down")

	a := newTestAuthorizer(finder, nil)

	err := a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAccessDenied)
}

func TestAuthorizer_OutcomesReported(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addBucketPolicy("data", allowAliceRead)
	sink := &countingSink{}
	a := newTestAuthorizer(finder, sink)

	_ = a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:data/x"})
	_ = a.RequireAll(context.Background(), alice,
		Rule{Action: "s3:PutObject", Resource: "emr:bucket:data/x"})

	require.Equal(t, []string{"allow", "deny"}, sink.outcomes)
}

func TestAuthorizer_RolePrincipal(t *testing.T) {
	finder := newMockPolicyFinder()
	finder.addBucketPolicy("reports", `{
		"Statement": [{
			"Effect": "Allow",
			"Principal": "emr:role:auditor",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:reports/*"
		}]
	}`)

	a := newTestAuthorizer(finder, nil)

	auditor := Identity{Username: "dave", Roles: []string{domain.RoleUser, "ROLE_AUDITOR"}}
	err := a.RequireAll(context.Background(), auditor,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:reports/q3.pdf"})
	require.NoError(t, err)

	// The implicit base role grants nothing by itself.
	plain := Identity{Username: "erin", Roles: []string{domain.RoleUser}}
	err = a.RequireAll(context.Background(), plain,
		Rule{Action: "s3:GetObject", Resource: "emr:bucket:reports/q3.pdf"})
	require.ErrorIs(t, err, ErrAccessDenied)
}
