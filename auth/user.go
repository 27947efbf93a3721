// Package auth implements the registry's user records (spec.md §3 user
// table), password hashing, recovery codes, and JWT issuance used by the
// HTTP API surface's authentication middleware.
package auth

import "time"

// User mirrors the registry's user table: local credentials plus the
// permission grants consulted by the API's authorization checks.
type User struct {
	ID                  int64     `json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Active              bool      `json:"active"`
	Username            string    `json:"username"`
	PasswordHash        string    `json:"-"`
	HashedRecoveryCodes []string  `json:"-"`
	Permissions         []string  `json:"permissions"`
	GroupPermissions    []string  `json:"group_permissions"`
	Role                string    `json:"role"`
	FavoriteSpaces      []string  `json:"favorite_spaces"`
	RefreshToken        string    `json:"-"`
	Email               string    `json:"email"`
	AuthenticationType  string    `json:"authentication_type"`
}

const (
	defaultRole               = "user"
	defaultAuthenticationType = "basic"
)

// NewUser constructs a User with the registry's default grants: read
// access to every space and the base "user" group, pending whatever an
// administrator later elevates.
func NewUser(username, email, passwordHash string) User {
	now := timeNow()
	return User{
		CreatedAt:          now,
		UpdatedAt:          now,
		Active:             true,
		Username:           username,
		Email:              email,
		PasswordHash:       passwordHash,
		Permissions:        []string{"read:all"},
		GroupPermissions:   []string{defaultRole},
		Role:               defaultRole,
		AuthenticationType: defaultAuthenticationType,
	}
}

// HasPermission reports whether the user's direct permissions contain perm
// or the wildcard "*". GroupPermissions are not consulted, and
// "read:all"/"write:all" match only a perm of exactly that string.
func (u User) HasPermission(perm string) bool {
	for _, p := range u.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// timeNow exists so tests can observe a single fixed instant without
// reaching into the time package directly from call sites.
var timeNow = time.Now
