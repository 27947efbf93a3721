package keystore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/opsmlerr"
)

// SQLStore is a dialect-agnostic keystore.Store backed by database/sql. The
// artifact_key table has no JSON columns and no version-range queries, so
// unlike the catalog store (package sqlstore) one implementation serves all
// three backends; only the sqlbuilder.Flavor used to render placeholders
// differs.
type SQLStore struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
}

// NewSQLStore wraps db for the given flavor (sqlbuilder.PostgreSQL,
// sqlbuilder.MySQL, or sqlbuilder.SQLite).
func NewSQLStore(db *sql.DB, flavor sqlbuilder.Flavor) *SQLStore {
	return &SQLStore{db: db, flavor: flavor}
}

const artifactKeyTable = "artifact_key"

func (s *SQLStore) Insert(ctx context.Context, key Key) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(artifactKeyTable)
	ib.Cols("uid", "space", "registry_type", "encrypted_key", "storage_key")
	ib.Values(key.UID, key.Space, string(key.RegistryType), key.EncryptedKey, key.StorageKey)

	q, args := ib.BuildWithFlavor(s.flavor)
	_, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "insert artifact key for uid=%s", key.UID)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, uid string, registryType card.RegistryType) (Key, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("uid", "space", "registry_type", "encrypted_key", "storage_key")
	sb.From(artifactKeyTable)
	sb.Where(
		sb.Equal("uid", uid),
		sb.Equal("registry_type", string(registryType)),
	)

	q, args := sb.BuildWithFlavor(s.flavor)
	row := s.db.QueryRowContext(ctx, q, args...)

	var k Key
	var rt string
	if err := row.Scan(&k.UID, &k.Space, &rt, &k.EncryptedKey, &k.StorageKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Key{}, NotFound(uid, registryType)
		}
		return Key{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get artifact key for uid=%s", uid)
	}
	k.RegistryType = card.RegistryType(rt)
	return k, nil
}

func (s *SQLStore) Update(ctx context.Context, key Key) error {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(artifactKeyTable)
	ub.Set(
		ub.Assign("encrypted_key", key.EncryptedKey),
		ub.Assign("storage_key", key.StorageKey),
	)
	ub.Where(
		ub.Equal("uid", key.UID),
		ub.Equal("registry_type", string(key.RegistryType)),
	)

	q, args := ub.BuildWithFlavor(s.flavor)
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "update artifact key for uid=%s", key.UID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound(key.UID, key.RegistryType)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, uid string, registryType card.RegistryType) error {
	db := sqlbuilder.NewDeleteBuilder()
	db.DeleteFrom(artifactKeyTable)
	db.Where(
		db.Equal("uid", uid),
		db.Equal("registry_type", string(registryType)),
	)

	q, args := db.BuildWithFlavor(s.flavor)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "delete artifact key for uid=%s", uid)
	}
	return nil
}

func (s *SQLStore) GetFromPath(ctx context.Context, storageKey string, registryType card.RegistryType) (Key, bool, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("uid", "space", "registry_type", "encrypted_key", "storage_key")
	sb.From(artifactKeyTable)
	sb.Where(
		sb.Equal("storage_key", storageKey),
		sb.Equal("registry_type", string(registryType)),
	)

	q, args := sb.BuildWithFlavor(s.flavor)
	row := s.db.QueryRowContext(ctx, q, args...)

	var k Key
	var rt string
	if err := row.Scan(&k.UID, &k.Space, &rt, &k.EncryptedKey, &k.StorageKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Key{}, false, nil
		}
		return Key{}, false, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "reverse lookup storage_key=%s", storageKey)
	}
	k.RegistryType = card.RegistryType(rt)
	return k, true, nil
}
