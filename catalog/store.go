// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package catalog implements the catalog store (spec.md §4.3): the public
// operations (insert, update, delete, query, versions, stats, page,
// version_page, get_card_key_for_loading, get_recent_services) built on top
// of the dialect-agnostic sqlstore.Client. This is where the raw
// sqlstore.Row JSON blobs get unmarshaled into the concrete card variant
// for a registry, and where DuplicateVersion/InvalidCardType are enforced
// at the boundary a caller actually sees.
package catalog

import (
	"context"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/sqlstore"
	"github.com/opsml/registry/sqlstore/mysql"
	"github.com/opsml/registry/sqlstore/postgres"
	"github.com/opsml/registry/sqlstore/sqlite"
)

// Store is the catalog store: a dialect-agnostic client plus the per-
// variant (un)marshaling the dialect layer deliberately stays ignorant of.
type Store struct {
	client sqlstore.Client
}

// Open constructs a Store for one of the three supported dialects. This is
// the "thin enum dispatcher" spec.md §4.2 describes: the only place the
// rest of the server needs to know which driver backs the catalog.
func Open(dialect sqlstore.Dialect, dsn string, versionCacheSize int) (*Store, error) {
	var (
		client sqlstore.Client
		err    error
	)
	switch dialect {
	case sqlstore.DialectPostgres:
		client, err = postgres.NewClient(dsn, versionCacheSize)
	case sqlstore.DialectMySQL:
		client, err = mysql.NewClient(dsn, versionCacheSize)
	case sqlstore.DialectSQLite:
		client, err = sqlite.NewClient(dsn, versionCacheSize)
	default:
		return nil, opsmlerr.New(opsmlerr.InvalidRequest, "unsupported sql dialect %q", dialect)
	}
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "open %s catalog store", dialect)
	}
	return &Store{client: sqlstore.NewDispatcher(dialect, client)}, nil
}

// NewStore wraps an already-constructed sqlstore.Client, e.g. a test double
// or a Dispatcher built directly by the caller.
func NewStore(client sqlstore.Client) *Store {
	return &Store{client: client}
}

// Insert persists a new card. It returns DuplicateVersion if (space, name,
// version) already exists and InvalidCardType if crd's RegistryType()
// doesn't match registryType. On success it emits the space-name event
// spec.md §3 describes: the space row is created if new and its
// per-registry card count is incremented.
func (s *Store) Insert(ctx context.Context, registryType card.RegistryType, crd card.Card) error {
	if crd.RegistryType() != registryType {
		return opsmlerr.New(opsmlerr.InvalidCardType, "card is a %s, not a %s", crd.RegistryType(), registryType)
	}
	if err := s.client.InsertCard(ctx, registryType, crd); err != nil {
		return err
	}
	space := crd.Header().Space
	if err := s.client.UpsertSpace(ctx, space); err != nil {
		return err
	}
	return s.client.AdjustSpaceCount(ctx, space, registryType, 1)
}

// Update persists changes to an existing card, preserving UID and
// CreatedAt (the caller must not have mutated them).
func (s *Store) Update(ctx context.Context, registryType card.RegistryType, crd card.Card) error {
	if crd.RegistryType() != registryType {
		return opsmlerr.New(opsmlerr.InvalidCardType, "card is a %s, not a %s", crd.RegistryType(), registryType)
	}
	return s.client.UpdateCard(ctx, registryType, crd)
}

// Delete removes a card by uid, returning (space, name) so the caller can
// clean up the artifact key and stored bytes (spec.md §3 lifecycle). It
// decrements the deleted card's space-registry count as the space-name
// event spec.md §3 describes.
func (s *Store) Delete(ctx context.Context, registryType card.RegistryType, uid string) (space, name string, err error) {
	space, name, err = s.client.DeleteCard(ctx, registryType, uid)
	if err != nil {
		return space, name, err
	}
	if err := s.client.AdjustSpaceCount(ctx, space, registryType, -1); err != nil {
		return space, name, err
	}
	return space, name, nil
}

// Query runs query_cards and unmarshals each row into the concrete variant
// for registryType.
func (s *Store) Query(ctx context.Context, registryType card.RegistryType, args sqlstore.CardQueryArgs) ([]card.Card, error) {
	rows, err := s.client.QueryCards(ctx, registryType, args)
	if err != nil {
		return nil, err
	}
	out := make([]card.Card, 0, len(rows))
	for _, r := range rows {
		c, err := unmarshalVariant(registryType, r.Header, r.JSON)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Versions runs get_versions and returns matching versions sorted
// descending by SemVer precedence (the resolution itself lives in package
// semver; this method only plumbs the specifier through).
func (s *Store) Versions(ctx context.Context, registryType card.RegistryType, space, name, specifier string) ([]string, error) {
	return s.client.GetVersions(ctx, registryType, space, name, specifier)
}

// Stats runs query_stats.
func (s *Store) Stats(ctx context.Context, registryType card.RegistryType, args sqlstore.StatsArgs) (sqlstore.Stats, error) {
	return s.client.QueryStats(ctx, registryType, args)
}

// Page runs page.
func (s *Store) Page(ctx context.Context, registryType card.RegistryType, args sqlstore.PageArgs) (sqlstore.Page[sqlstore.CardSummary], error) {
	return s.client.QueryPage(ctx, registryType, args)
}

// VersionPage runs version_page.
func (s *Store) VersionPage(ctx context.Context, registryType card.RegistryType, cursor sqlstore.VersionCursor) (sqlstore.Page[sqlstore.VersionSummary], error) {
	return s.client.VersionPage(ctx, registryType, cursor)
}

// GetCardKeyForLoading runs get_card_key_for_loading: resolves the latest
// version matching args and returns its artifact key.
func (s *Store) GetCardKeyForLoading(ctx context.Context, registryType card.RegistryType, args sqlstore.CardQueryArgs) (keystore.Key, error) {
	return s.client.GetCardKeyForLoading(ctx, registryType, args)
}

// GetRecentServices runs get_recent_services.
func (s *Store) GetRecentServices(ctx context.Context, args sqlstore.ServiceQueryArgs) ([]card.ServiceCard, error) {
	return s.client.GetRecentServices(ctx, args)
}

// UniqueSpaceNames runs get_unique_space_names.
func (s *Store) UniqueSpaceNames(ctx context.Context, registryType card.RegistryType) ([]string, error) {
	return s.client.GetUniqueSpaceNames(ctx, registryType)
}

// Spaces runs get_spaces: every known space's description and its
// materialized card count for registryType.
func (s *Store) Spaces(ctx context.Context, registryType card.RegistryType) ([]sqlstore.SpaceStats, error) {
	return s.client.ListSpaces(ctx, registryType)
}

// SetSpaceDescription sets or updates a space's description, creating the
// space if it doesn't already exist.
func (s *Store) SetSpaceDescription(ctx context.Context, space, description string) error {
	return s.client.SetSpaceDescription(ctx, space, description)
}

// UniqueTags runs get_unique_tags.
func (s *Store) UniqueTags(ctx context.Context, registryType card.RegistryType) ([]string, error) {
	return s.client.GetUniqueTags(ctx, registryType)
}

// Exists runs check_uid_exists.
func (s *Store) Exists(ctx context.Context, registryType card.RegistryType, uid string) (bool, error) {
	return s.client.CheckUIDExists(ctx, registryType, uid)
}
