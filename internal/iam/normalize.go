package iam

import (
	"strings"

	"github.com/emberstore/emberstore/internal/domain"
)

// NormalizeBucketStatements parses a bucket-attached policy document and
// scopes its statements to the bucket. A statement survives only if at
// least one of its resources names the bucket itself
// (emr:bucket:<name>) or something under it (emr:bucket:<name>/...);
// resources pointing elsewhere are stripped from the surviving statement.
func NormalizeBucketStatements(document []byte, bucketName string) []Statement {
	statements := ParseStatements(document)
	if len(statements) == 0 {
		return nil
	}

	exact := domain.BucketResourcePrefix + bucketName
	prefix := exact + "/"

	scoped := make([]Statement, 0, len(statements))
	for _, st := range statements {
		var kept []string
		for _, resource := range st.Resource {
			if resource == exact || strings.HasPrefix(resource, prefix) {
				kept = append(kept, resource)
			}
		}
		if len(kept) == 0 {
			continue
		}
		st.Resource = kept
		scoped = append(scoped, st)
	}

	return scoped
}

// NormalizeUserStatements parses a user-attached policy document. The
// statements speak for their owner only: whatever Principal element the
// document carries is replaced with the owner's user principal.
func NormalizeUserStatements(document []byte, username string) []Statement {
	statements := ParseStatements(document)
	if len(statements) == 0 {
		return nil
	}

	owner := []string{UserPrincipalPrefix + username}
	for i := range statements {
		statements[i].Principal = owner
	}

	return statements
}

// NormalizePolicy normalizes a stored policy document according to its
// attachment scope.
func NormalizePolicy(policy *domain.PolicyDocument) []Statement {
	switch policy.Scope {
	case domain.PolicyScopeBucket:
		return NormalizeBucketStatements(policy.Document, policy.BucketName)
	case domain.PolicyScopeUser:
		return NormalizeUserStatements(policy.Document, policy.Username)
	default:
		return nil
	}
}
