package keystore

import (
	"crypto/rand"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/opsml/registry/opsmlerr"
)

// MasterKey is the process-wide, init-once resource that wraps and unwraps
// every card's 32-byte data-encryption key (spec.md §9). It exposes no
// mutable handle: once constructed its key material is immutable for the
// life of the process.
type MasterKey struct {
	aead cipherAEAD
}

// cipherAEAD narrows the chacha20poly1305.AEAD surface this package needs,
// so tests can substitute a fake without pulling in the real primitive.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

var (
	globalMasterKey *MasterKey
	globalOnce      sync.Once
)

// NewMasterKey constructs a MasterKey from 32 bytes of key material (e.g.
// sourced from OPSML_MASTER_KEY at startup). It does not retain rawKey.
func NewMasterKey(rawKey []byte) (*MasterKey, error) {
	aead, err := chacha20poly1305.New(rawKey)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.EncryptionErr, err, "construct master key")
	}
	return &MasterKey{aead: aead}, nil
}

// InitGlobal installs the process-wide master key exactly once. Subsequent
// calls are no-ops, matching the teacher's logging.Get()-style singleton
// pattern (logging/logging.go) applied to a security-sensitive resource
// instead of a logger.
func InitGlobal(rawKey []byte) (*MasterKey, error) {
	var err error
	globalOnce.Do(func() {
		globalMasterKey, err = NewMasterKey(rawKey)
	})
	if err != nil {
		return nil, err
	}
	return globalMasterKey, nil
}

// Global returns the process-wide master key, or false if InitGlobal has
// not been called yet.
func Global() (*MasterKey, bool) {
	return globalMasterKey, globalMasterKey != nil
}

// GenerateDEK returns a fresh random 32-byte data-encryption key for a new
// card.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.EncryptionErr, err, "generate data encryption key")
	}
	return dek, nil
}

// Wrap encrypts dek under the master key, returning the opaque bytes the
// keystore stores verbatim as Key.EncryptedKey. The nonce is prepended to
// the ciphertext so Unwrap is self-contained.
func (m *MasterKey) Wrap(dek []byte) ([]byte, error) {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.EncryptionErr, err, "generate wrap nonce")
	}
	return m.aead.Seal(nonce, nonce, dek, nil), nil
}

// Unwrap is the side-effect-free inverse of Wrap: given the wrapped bytes
// the keystore returned and the master key, it recovers the raw DEK. It
// does not mutate or retain wrapped.
func (m *MasterKey) Unwrap(wrapped []byte) ([]byte, error) {
	nonceSize := m.aead.NonceSize()
	if len(wrapped) < nonceSize {
		return nil, opsmlerr.New(opsmlerr.EncryptionErr, "wrapped key too short")
	}
	nonce, ciphertext := wrapped[:nonceSize], wrapped[nonceSize:]
	dek, err := m.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.EncryptionErr, err, "unwrap data encryption key")
	}
	return dek, nil
}
