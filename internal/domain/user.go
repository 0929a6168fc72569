// Package domain contains the core business entities for Emberstore.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the identity and access layer.
package domain

import (
	"strings"
	"time"
)

// Role names. Roles are stored with the ROLE_ prefix and compared
// case-sensitively in storage; the IAM layer lowercases and strips the
// prefix when building role principals.
const (
	// RoleUser is the implicit base role every account holds.
	RoleUser = "ROLE_USER"

	// RoleRoot grants unconditional access to every operation.
	RoleRoot = "ROLE_ROOT"

	// RoleAdmin grants access to the admin API.
	RoleAdmin = "ROLE_ADMIN"
)

// User represents a registered user in the system.
// Users own buckets and can have multiple access keys for API authentication.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	// Constraints: 3-255 characters.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Roles holds the roles granted to the user. Every user carries
	// RoleUser; additional roles widen what the policy engine will
	// consider when resolving principals.
	Roles []string `json:"roles"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot authenticate or perform any operations.
	IsActive bool `json:"is_active"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []string{RoleUser},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// HasRole reports whether the user holds the given role.
// Comparison is case-insensitive.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// IsRoot reports whether the user holds the root role.
func (u *User) IsRoot() bool {
	return u.HasRole(RoleRoot)
}

// AddRole grants a role to the user if not already present.
func (u *User) AddRole(role string) {
	if u.HasRole(role) {
		return
	}
	u.Roles = append(u.Roles, role)
}

// RemoveRole revokes a role from the user. The base role cannot be removed.
func (u *User) RemoveRole(role string) {
	if strings.EqualFold(role, RoleUser) {
		return
	}
	kept := u.Roles[:0]
	for _, r := range u.Roles {
		if !strings.EqualFold(r, role) {
			kept = append(kept, r)
		}
	}
	u.Roles = kept
}
