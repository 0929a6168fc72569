package iam

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberstore/emberstore/internal/domain"
)

func TestNormalizeBucketStatements(t *testing.T) {
	document := []byte(`{
		"Statement": [
			{
				"Effect": "Allow",
				"Principal": "*",
				"Action": "s3:GetObject",
				"Resource": ["emr:bucket:photos/*", "emr:bucket:other/*"]
			},
			{
				"Effect": "Allow",
				"Principal": "*",
				"Action": "s3:ListBucket",
				"Resource": "emr:bucket:photos"
			},
			{
				"Effect": "Allow",
				"Principal": "*",
				"Action": "s3:GetObject",
				"Resource": "emr:bucket:unrelated/*"
			}
		]
	}`)

	statements := NormalizeBucketStatements(document, "photos")

	// The third statement points entirely outside the bucket and is gone;
	// the first loses its foreign resource.
	require.Len(t, statements, 2)
	require.Equal(t, []string{"emr:bucket:photos/*"}, statements[0].Resource)
	require.Equal(t, []string{"emr:bucket:photos"}, statements[1].Resource)
}

func TestNormalizeBucketStatements_PrefixIsNotSubstring(t *testing.T) {
	document := []byte(`{
		"Statement": [{
			"Effect": "Allow",
			"Principal": "*",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:photos-archive/*"
		}]
	}`)

	// "photos-archive" must not leak into "photos" scope.
	require.Empty(t, NormalizeBucketStatements(document, "photos"))
}

func TestNormalizeUserStatements_PrincipalOverride(t *testing.T) {
	document := []byte(`{
		"Statement": [{
			"Effect": "Allow",
			"Principal": "emr:user:someone-else",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:data/*"
		}]
	}`)

	statements := NormalizeUserStatements(document, "alice")

	require.Len(t, statements, 1)
	require.Equal(t, []string{"emr:user:alice"}, statements[0].Principal)
}

func TestNormalizePolicy(t *testing.T) {
	document := []byte(`{
		"Statement": [{
			"Effect": "Allow",
			"Principal": "*",
			"Action": "s3:GetObject",
			"Resource": "emr:bucket:data/*"
		}]
	}`)

	t.Run("bucket scope", func(t *testing.T) {
		statements := NormalizePolicy(&domain.PolicyDocument{
			Scope:      domain.PolicyScopeBucket,
			BucketName: "data",
			Document:   document,
		})
		require.Len(t, statements, 1)
		require.Equal(t, []string{"*"}, statements[0].Principal)
	})

	t.Run("user scope", func(t *testing.T) {
		statements := NormalizePolicy(&domain.PolicyDocument{
			Scope:    domain.PolicyScopeUser,
			Username: "alice",
			Document: document,
		})
		require.Len(t, statements, 1)
		require.Equal(t, []string{"emr:user:alice"}, statements[0].Principal)
	})

	t.Run("unknown scope", func(t *testing.T) {
		require.Nil(t, NormalizePolicy(&domain.PolicyDocument{
			Scope:    "group",
			Document: document,
		}))
	})
}

func TestResolvePrincipals(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want []string
	}{
		{
			name: "anonymous",
			id:   Identity{},
			want: []string{AnonymousPrincipal},
		},
		{
			name: "user with base role only",
			id:   Identity{Username: "alice", Roles: []string{domain.RoleUser}},
			want: []string{"emr:user:alice"},
		},
		{
			name: "role names lowercased and stripped",
			id:   Identity{Username: "bob", Roles: []string{domain.RoleUser, "ROLE_AUDITOR"}},
			want: []string{"emr:user:bob", "emr:role:auditor"},
		},
		{
			name: "admin role resolves",
			id:   Identity{Username: "carol", Roles: []string{domain.RoleAdmin}},
			want: []string{"emr:user:carol", "emr:role:admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolvePrincipals(tt.id))
		})
	}
}

func TestBucketFromResource(t *testing.T) {
	require.Equal(t, "photos", BucketFromResource("emr:bucket:photos"))
	require.Equal(t, "photos", BucketFromResource("emr:bucket:photos/2026/x.jpg"))
	require.Equal(t, "", BucketFromResource("arn:aws:s3:::photos"))
	require.Equal(t, "", BucketFromResource(""))
}
