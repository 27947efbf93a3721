package auth

import (
	"testing"
	"time"
)

func TestNewUserDefaults(t *testing.T) {
	u := NewUser("alice", "alice@example.com", "hash")
	if u.Role != "user" {
		t.Errorf("Role = %q, want %q", u.Role, "user")
	}
	if u.AuthenticationType != "basic" {
		t.Errorf("AuthenticationType = %q, want %q", u.AuthenticationType, "basic")
	}
	if !u.Active {
		t.Error("expected new user to be active")
	}
	if !u.HasPermission("read:all") {
		t.Error("expected default read:all permission")
	}
	if u.HasPermission("write:all") {
		t.Error("did not expect write:all by default")
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery staple") {
		t.Error("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("expected mismatched password to fail")
	}
}

func TestGenerateAndVerifyRecoveryCodes(t *testing.T) {
	plaintext, hashed, err := GenerateRecoveryCodes()
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes: %v", err)
	}
	if len(plaintext) != recoveryCodeCount || len(hashed) != recoveryCodeCount {
		t.Fatalf("got %d/%d codes, want %d", len(plaintext), len(hashed), recoveryCodeCount)
	}

	idx, ok := VerifyRecoveryCode(hashed, plaintext[3])
	if !ok || idx != 3 {
		t.Fatalf("VerifyRecoveryCode = (%d, %v), want (3, true)", idx, ok)
	}

	if _, ok := VerifyRecoveryCode(hashed, "not-a-real-code"); ok {
		t.Error("expected bogus code to fail verification")
	}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-signing-key"))
	claims := Claims{
		Username:         "bob",
		Permissions:      []string{"read:all", "write:space:ml-team"},
		GroupPermissions: []string{"user"},
	}

	token, err := issuer.IssueAccessToken(claims, time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Username != claims.Username {
		t.Errorf("Username = %q, want %q", got.Username, claims.Username)
	}
	if len(got.Permissions) != len(claims.Permissions) {
		t.Errorf("Permissions = %v, want %v", got.Permissions, claims.Permissions)
	}
}

func TestTokenIssuerRejectsWrongKey(t *testing.T) {
	issuer := NewTokenIssuer([]byte("key-one"))
	token, err := issuer.IssueAccessToken(Claims{Username: "eve"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	other := NewTokenIssuer([]byte("key-two"))
	if _, err := other.Verify(token); err == nil {
		t.Error("expected verification with the wrong key to fail")
	}
}
