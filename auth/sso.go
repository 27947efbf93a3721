package auth

import "context"

// SSOIdentity is the normalized identity an SSOProvider resolves from an
// external identity provider's callback.
type SSOIdentity struct {
	Username string
	Email    string
	Groups   []string
}

// SSOProvider exchanges an external authorization code for a normalized
// identity. Concrete providers (OIDC, SAML) implement this against the
// registry's configured identity provider; none ship by default.
type SSOProvider interface {
	Name() string
	Exchange(ctx context.Context, code string) (SSOIdentity, error)
}
