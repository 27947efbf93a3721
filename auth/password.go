package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/opsml/registry/opsmlerr"
)

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", opsmlerr.Wrap(opsmlerr.InternalErr, err, "hash password")
	}
	return string(h), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

const recoveryCodeCount = 8

// GenerateRecoveryCodes returns recoveryCodeCount fresh plaintext recovery
// codes and their bcrypt hashes, for display-once-then-store-hashed use.
func GenerateRecoveryCodes() (plaintext []string, hashed []string, err error) {
	plaintext = make([]string, recoveryCodeCount)
	hashed = make([]string, recoveryCodeCount)
	for i := range plaintext {
		raw := make([]byte, 10)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, opsmlerr.Wrap(opsmlerr.InternalErr, err, "generate recovery code entropy")
		}
		code := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw))
		plaintext[i] = code
		h, err := HashPassword(code)
		if err != nil {
			return nil, nil, err
		}
		hashed[i] = h
	}
	return plaintext, hashed, nil
}

// VerifyRecoveryCode reports whether code matches one of hashedCodes and,
// if so, returns its index so the caller can remove it (codes are single
// use). Returns (-1, false) on no match.
func VerifyRecoveryCode(hashedCodes []string, code string) (int, bool) {
	for i, h := range hashedCodes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			return i, true
		}
	}
	return -1, false
}

// constantTimeEqual compares two strings without leaking timing
// information. Nothing in the module calls it.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
