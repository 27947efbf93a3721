package auth

import (
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/opsml/registry/opsmlerr"
)

// TokenIssuer signs and verifies the access/refresh JWTs the HTTP API
// surface issues on login, using a single symmetric signing key the
// server operator configures (spec.md's auth middleware).
type TokenIssuer struct {
	key []byte
	alg jwa.SignatureAlgorithm
}

// NewTokenIssuer builds a TokenIssuer around an HMAC signing key.
func NewTokenIssuer(key []byte) *TokenIssuer {
	return &TokenIssuer{key: key, alg: jwa.HS256()}
}

// Claims carries the identity and grants embedded in an access token.
type Claims struct {
	Username         string
	Permissions      []string
	GroupPermissions []string
}

// IssueAccessToken signs a short-lived access token for username.
func (t *TokenIssuer) IssueAccessToken(c Claims, ttl time.Duration) (string, error) {
	return t.issue(c, ttl, "access")
}

// IssueRefreshToken signs a long-lived refresh token for username.
func (t *TokenIssuer) IssueRefreshToken(c Claims, ttl time.Duration) (string, error) {
	return t.issue(c, ttl, "refresh")
}

func (t *TokenIssuer) issue(c Claims, ttl time.Duration, tokenType string) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject(c.Username).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("token_type", tokenType).
		Claim("permissions", c.Permissions).
		Claim("group_permissions", c.GroupPermissions)

	tok, err := builder.Build()
	if err != nil {
		return "", opsmlerr.Wrap(opsmlerr.InternalErr, err, "build %s token", tokenType)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(t.alg, t.key))
	if err != nil {
		return "", opsmlerr.Wrap(opsmlerr.InternalErr, err, "sign %s token", tokenType)
	}
	return string(signed), nil
}

// Verify parses and validates a token, returning its embedded claims.
func (t *TokenIssuer) Verify(raw string) (Claims, error) {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(t.alg, t.key), jwt.WithValidate(true))
	if err != nil {
		return Claims{}, opsmlerr.Wrap(opsmlerr.AuthErr, err, "verify token")
	}

	var perms, groupPerms []string
	if err := tok.Get("permissions", &perms); err != nil {
		return Claims{}, opsmlerr.New(opsmlerr.AuthErr, "token missing permissions claim")
	}
	_ = tok.Get("group_permissions", &groupPerms)

	return Claims{
		Username:         tok.Subject(),
		Permissions:      perms,
		GroupPermissions: groupPerms,
	}, nil
}
