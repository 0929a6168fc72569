package iam

import (
	"strings"

	"github.com/emberstore/emberstore/internal/domain"
)

// Principal namespace constants.
const (
	// AnonymousPrincipal is the sentinel principal for unauthenticated requests.
	AnonymousPrincipal = "emr:anonymous"

	// UserPrincipalPrefix prefixes user principals: emr:user:<username>.
	UserPrincipalPrefix = "emr:user:"

	// RolePrincipalPrefix prefixes role principals: emr:role:<role>.
	RolePrincipalPrefix = "emr:role:"
)

// Identity is the authenticated caller as seen by the policy engine.
// The zero value is an anonymous identity.
type Identity struct {
	// Username is empty for anonymous requests.
	Username string

	// Roles are the stored role names (ROLE_ prefixed).
	Roles []string
}

// IsAnonymous reports whether the identity carries no username.
func (id Identity) IsAnonymous() bool {
	return id.Username == ""
}

// IsRoot reports whether the identity holds the root role.
func (id Identity) IsRoot() bool {
	for _, role := range id.Roles {
		if strings.EqualFold(role, domain.RoleRoot) {
			return true
		}
	}
	return false
}

// ResolvePrincipals expands an identity into the principal strings a
// statement's Principal element is matched against. Anonymous identities
// resolve to the single anonymous sentinel. Authenticated identities get
// their user principal plus one role principal per held role, except the
// implicit base role: every user has it, so it carries no information.
// Role names are lowercased with the ROLE_ prefix stripped, so ROLE_AUDITOR
// becomes emr:role:auditor.
func ResolvePrincipals(id Identity) []string {
	if id.IsAnonymous() {
		return []string{AnonymousPrincipal}
	}

	principals := []string{UserPrincipalPrefix + id.Username}
	for _, role := range id.Roles {
		if strings.EqualFold(role, domain.RoleUser) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(role, "ROLE_"))
		if name == "" {
			continue
		}
		principals = append(principals, RolePrincipalPrefix+name)
	}

	return principals
}
