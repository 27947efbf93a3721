package sqlstore

import (
	"context"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/keystore"
)

// Row is one raw catalog row: the indexed header columns plus the full
// variant-specific JSON body. The dialect layer never interprets JSON; the
// catalog store (package catalog) unmarshals it into the concrete variant
// for registryType.
type Row struct {
	Header card.Header
	JSON   []byte
}

// Client is the dialect trait spec.md §4.2 names: check_uid_exists,
// get_versions, query_cards, insert_card, update_card, delete_card,
// query_stats, query_page, version_page, get_card_key_for_loading,
// get_recent_services, get_unique_space_names, get_unique_tags. One
// concrete implementation per backend (package postgres, mysql, sqlite)
// satisfies this interface; callers reach a concrete client through
// Dispatcher so request handlers never import a driver package directly.
type Client interface {
	CheckUIDExists(ctx context.Context, registryType card.RegistryType, uid string) (bool, error)
	GetVersions(ctx context.Context, registryType card.RegistryType, space, name, specifier string) ([]string, error)
	QueryCards(ctx context.Context, registryType card.RegistryType, args CardQueryArgs) ([]Row, error)
	InsertCard(ctx context.Context, registryType card.RegistryType, c card.Card) error
	UpdateCard(ctx context.Context, registryType card.RegistryType, c card.Card) error
	DeleteCard(ctx context.Context, registryType card.RegistryType, uid string) (space, name string, err error)
	QueryStats(ctx context.Context, registryType card.RegistryType, args StatsArgs) (Stats, error)
	QueryPage(ctx context.Context, registryType card.RegistryType, args PageArgs) (Page[CardSummary], error)
	VersionPage(ctx context.Context, registryType card.RegistryType, cursor VersionCursor) (Page[VersionSummary], error)
	GetCardKeyForLoading(ctx context.Context, registryType card.RegistryType, args CardQueryArgs) (keystore.Key, error)
	GetRecentServices(ctx context.Context, args ServiceQueryArgs) ([]card.ServiceCard, error)
	GetUniqueSpaceNames(ctx context.Context, registryType card.RegistryType) ([]string, error)
	GetUniqueTags(ctx context.Context, registryType card.RegistryType) ([]string, error)

	// UpsertSpace ensures a space row exists (description defaults to empty
	// on first insert), idempotently, the way InsertCard's conflict
	// detection makes insert_card safe to race.
	UpsertSpace(ctx context.Context, space string) error
	// SetSpaceDescription overwrites a space's description, creating the
	// row if it doesn't already exist.
	SetSpaceDescription(ctx context.Context, space, description string) error
	// AdjustSpaceCount applies delta to a space's materialized per-registry
	// card count, the "event row" spec.md §3 describes insert_card/
	// delete_card as emitting.
	AdjustSpaceCount(ctx context.Context, space string, registryType card.RegistryType, delta int64) error
	// ListSpaces runs get_spaces: every known space's description and its
	// card count for registryType.
	ListSpaces(ctx context.Context, registryType card.RegistryType) ([]SpaceStats, error)
}

// Dialect names one of the three supported backends.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// Dispatcher forwards every Client call to a concrete backend client,
// so the rest of the server depends only on sqlstore.Client and never
// imports github.com/lib/pq, github.com/go-sql-driver/mysql, or
// modernc.org/sqlite directly (mirrors the teacher's storage.Store
// interface hiding storage/disk vs storage/inmem from callers).
type Dispatcher struct {
	dialect Dialect
	client  Client
}

// NewDispatcher wraps a concrete backend client.
func NewDispatcher(dialect Dialect, client Client) *Dispatcher {
	return &Dispatcher{dialect: dialect, client: client}
}

// Dialect reports which backend this dispatcher forwards to.
func (d *Dispatcher) Dialect() Dialect { return d.dialect }

var _ Client = (*Dispatcher)(nil)

func (d *Dispatcher) CheckUIDExists(ctx context.Context, registryType card.RegistryType, uid string) (bool, error) {
	return d.client.CheckUIDExists(ctx, registryType, uid)
}

func (d *Dispatcher) GetVersions(ctx context.Context, registryType card.RegistryType, space, name, specifier string) ([]string, error) {
	return d.client.GetVersions(ctx, registryType, space, name, specifier)
}

func (d *Dispatcher) QueryCards(ctx context.Context, registryType card.RegistryType, args CardQueryArgs) ([]Row, error) {
	return d.client.QueryCards(ctx, registryType, args)
}

func (d *Dispatcher) InsertCard(ctx context.Context, registryType card.RegistryType, c card.Card) error {
	return d.client.InsertCard(ctx, registryType, c)
}

func (d *Dispatcher) UpdateCard(ctx context.Context, registryType card.RegistryType, c card.Card) error {
	return d.client.UpdateCard(ctx, registryType, c)
}

func (d *Dispatcher) DeleteCard(ctx context.Context, registryType card.RegistryType, uid string) (string, string, error) {
	return d.client.DeleteCard(ctx, registryType, uid)
}

func (d *Dispatcher) QueryStats(ctx context.Context, registryType card.RegistryType, args StatsArgs) (Stats, error) {
	return d.client.QueryStats(ctx, registryType, args)
}

func (d *Dispatcher) QueryPage(ctx context.Context, registryType card.RegistryType, args PageArgs) (Page[CardSummary], error) {
	return d.client.QueryPage(ctx, registryType, args)
}

func (d *Dispatcher) VersionPage(ctx context.Context, registryType card.RegistryType, cursor VersionCursor) (Page[VersionSummary], error) {
	return d.client.VersionPage(ctx, registryType, cursor)
}

func (d *Dispatcher) GetCardKeyForLoading(ctx context.Context, registryType card.RegistryType, args CardQueryArgs) (keystore.Key, error) {
	return d.client.GetCardKeyForLoading(ctx, registryType, args)
}

func (d *Dispatcher) GetRecentServices(ctx context.Context, args ServiceQueryArgs) ([]card.ServiceCard, error) {
	return d.client.GetRecentServices(ctx, args)
}

func (d *Dispatcher) GetUniqueSpaceNames(ctx context.Context, registryType card.RegistryType) ([]string, error) {
	return d.client.GetUniqueSpaceNames(ctx, registryType)
}

func (d *Dispatcher) GetUniqueTags(ctx context.Context, registryType card.RegistryType) ([]string, error) {
	return d.client.GetUniqueTags(ctx, registryType)
}

func (d *Dispatcher) UpsertSpace(ctx context.Context, space string) error {
	return d.client.UpsertSpace(ctx, space)
}

func (d *Dispatcher) SetSpaceDescription(ctx context.Context, space, description string) error {
	return d.client.SetSpaceDescription(ctx, space, description)
}

func (d *Dispatcher) AdjustSpaceCount(ctx context.Context, space string, registryType card.RegistryType, delta int64) error {
	return d.client.AdjustSpaceCount(ctx, space, registryType, delta)
}

func (d *Dispatcher) ListSpaces(ctx context.Context, registryType card.RegistryType) ([]SpaceStats, error) {
	return d.client.ListSpaces(ctx, registryType)
}
