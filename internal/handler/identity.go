package handler

import (
	"net/http"

	"github.com/emberstore/emberstore/internal/auth"
	"github.com/emberstore/emberstore/internal/iam"
)

// requestIdentity converts the request's auth context into the identity the
// policy engine evaluates. Requests without an auth context, and anonymous
// requests, both map to the anonymous identity.
func requestIdentity(r *http.Request) iam.Identity {
	authCtx := auth.GetAuthContext(r.Context())
	if authCtx == nil || authCtx.IsAnonymous() {
		return iam.Identity{}
	}
	return iam.Identity{
		Username: authCtx.Username,
		Roles:    authCtx.Roles,
	}
}
