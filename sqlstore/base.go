package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/semver"
)

// BaseClient implements Client generically over database/sql for any
// sqlbuilder.Flavor. The three backend packages (postgres, mysql, sqlite)
// each register their driver with database/sql and construct a BaseClient
// around the resulting *sql.DB; nothing below this type is dialect-aware
// except the strings querybuilder.go renders for the given Flavor.
type BaseClient struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor

	// versionCache memoizes GetVersions results per (registryType, space,
	// name) between paginated calls (SPEC_FULL.md §11): it is purely an
	// optimization and is invalidated on every InsertCard/UpdateCard/
	// DeleteCard for the affected (space, name).
	versionCache *lru.Cache[string, []string]

	// isDuplicateKey recognizes the driver-specific unique-constraint
	// violation for this backend (pq error code 23505, MySQL error 1062,
	// SQLite's "UNIQUE constraint failed"). Each dialect package supplies
	// its own detector so this shared base never imports all three driver
	// packages at once.
	isDuplicateKey func(error) bool
}

// NewBaseClient wraps db for flavor. cacheSize bounds the version-
// resolution cache; 0 disables it. dupDetector recognizes this backend's
// unique-constraint-violation error shape.
func NewBaseClient(db *sql.DB, flavor sqlbuilder.Flavor, cacheSize int, dupDetector func(error) bool) *BaseClient {
	var cache *lru.Cache[string, []string]
	if cacheSize > 0 {
		cache, _ = lru.New[string, []string](cacheSize)
	}
	if dupDetector == nil {
		dupDetector = fallbackDuplicateKeyDetector
	}
	return &BaseClient{db: db, flavor: flavor, versionCache: cache, isDuplicateKey: dupDetector}
}

func cacheKey(registryType card.RegistryType, space, name string) string {
	return string(registryType) + "/" + space + "/" + name
}

func (c *BaseClient) invalidateVersions(registryType card.RegistryType, space, name string) {
	if c.versionCache != nil {
		c.versionCache.Remove(cacheKey(registryType, space, name))
	}
}

func (c *BaseClient) CheckUIDExists(ctx context.Context, registryType card.RegistryType, uid string) (bool, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("1").From(tableFor(registryType)).Where(sb.Equal("uid", uid))
	q, args := sb.BuildWithFlavor(c.flavor)

	var one int
	err := c.db.QueryRowContext(ctx, q, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "check_uid_exists registry=%s uid=%s", registryType, uid)
	default:
		return true, nil
	}
}

func (c *BaseClient) GetVersions(ctx context.Context, registryType card.RegistryType, space, name, specifier string) ([]string, error) {
	key := cacheKey(registryType, space, name)
	var rawVersions []string
	if c.versionCache != nil {
		if cached, ok := c.versionCache.Get(key); ok {
			rawVersions = cached
		}
	}

	if rawVersions == nil {
		q, args := buildVersionsQuery(c.flavor, registryType, space, name)
		rows, err := c.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_versions registry=%s space=%s name=%s", registryType, space, name)
		}
		defer rows.Close()

		for rows.Next() {
			var version, preTag, buildTag string
			var major, minor, patch int64
			if err := rows.Scan(&version, &major, &minor, &patch, &preTag, &buildTag); err != nil {
				return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan get_versions row")
			}
			rawVersions = append(rawVersions, version)
		}
		if err := rows.Err(); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "iterate get_versions rows")
		}
		if c.versionCache != nil {
			c.versionCache.Add(key, rawVersions)
		}
	}

	versions := make([]semver.Version, 0, len(rawVersions))
	for _, raw := range rawVersions {
		v, err := semver.Parse(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}

	resolved, err := semver.Resolve(versions, specifier)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(resolved))
	for i, v := range resolved {
		out[i] = v.String()
	}
	return out, nil
}

func (c *BaseClient) QueryCards(ctx context.Context, registryType card.RegistryType, args CardQueryArgs) ([]Row, error) {
	q, sqlArgs, err := buildQueryCards(c.flavor, registryType, args)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, q, sqlArgs...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query_cards registry=%s", registryType)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "iterate query_cards rows")
	}
	return out, nil
}

// scanRow scans one row of the wide "*" projection used by query_cards:
// header columns followed by card_json. Backend packages that need a
// narrower projection (e.g. version_page) scan columns directly instead of
// calling this helper.
func scanRow(rows *sql.Rows) (Row, error) {
	var r Row
	var uid, preTag, buildTag string
	var major, minor, patch int64
	var tagsJSON []byte
	var cardJSON []byte
	var createdAt time.Time
	var space, name, version, appEnv, username, opsmlVersion string

	if err := rows.Scan(&uid, &space, &name, &version, &major, &minor, &patch,
		&preTag, &buildTag, &createdAt, &appEnv, &username, &opsmlVersion, &tagsJSON, &cardJSON); err != nil {
		return Row{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan catalog row")
	}

	var tags []string
	_ = json.Unmarshal(tagsJSON, &tags)

	parsedUID, _ := uuidParse(uid)
	r.Header = card.Header{
		UID: parsedUID, Space: space, Name: name, Version: version,
		Major: major, Minor: minor, Patch: patch, PreTag: preTag, BuildTag: buildTag,
		CreatedAt: createdAt, AppEnv: appEnv, Username: username, OpsmlVersion: opsmlVersion,
		Tags: tags,
	}
	r.JSON = cardJSON
	return r, nil
}

func (c *BaseClient) InsertCard(ctx context.Context, registryType card.RegistryType, crd card.Card) error {
	hdr := crd.Header()
	body, err := json.Marshal(crd)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "marshal card for insert")
	}
	tagsJSON, _ := json.Marshal(hdr.Tags)

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto(tableFor(registryType))
	ib.Cols("uid", "space", "name", "version", "major", "minor", "patch",
		"pre_tag", "build_tag", "created_at", "app_env", "username", "opsml_version",
		"tags", "card_json")
	ib.Values(hdr.UID.String(), hdr.Space, hdr.Name, hdr.Version, hdr.Major, hdr.Minor, hdr.Patch,
		hdr.PreTag, hdr.BuildTag, hdr.CreatedAt, hdr.AppEnv, hdr.Username, hdr.OpsmlVersion,
		string(tagsJSON), string(body))

	q, args := ib.BuildWithFlavor(c.flavor)
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		if c.isDuplicateKey(err) {
			return opsmlerr.New(opsmlerr.DuplicateVersion, "%s/%s/%s already exists", hdr.Space, hdr.Name, hdr.Version)
		}
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "insert_card registry=%s", registryType)
	}
	c.invalidateVersions(registryType, hdr.Space, hdr.Name)
	return nil
}

func (c *BaseClient) UpdateCard(ctx context.Context, registryType card.RegistryType, crd card.Card) error {
	hdr := crd.Header()
	body, err := json.Marshal(crd)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "marshal card for update")
	}
	tagsJSON, _ := json.Marshal(hdr.Tags)

	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update(tableFor(registryType))
	ub.Set(
		ub.Assign("tags", string(tagsJSON)),
		ub.Assign("card_json", string(body)),
		ub.Assign("app_env", hdr.AppEnv),
	)
	ub.Where(ub.Equal("uid", hdr.UID.String()))

	q, args := ub.BuildWithFlavor(c.flavor)
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "update_card registry=%s uid=%s", registryType, hdr.UID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return opsmlerr.New(opsmlerr.NotFound, "card uid=%s not found in registry=%s", hdr.UID, registryType)
	}
	c.invalidateVersions(registryType, hdr.Space, hdr.Name)
	return nil
}

func (c *BaseClient) DeleteCard(ctx context.Context, registryType card.RegistryType, uid string) (string, string, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("space", "name").From(tableFor(registryType)).Where(sb.Equal("uid", uid))
	q, args := sb.BuildWithFlavor(c.flavor)

	var space, name string
	if err := c.db.QueryRowContext(ctx, q, args...).Scan(&space, &name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", opsmlerr.New(opsmlerr.NotFound, "card uid=%s not found in registry=%s", uid, registryType)
		}
		return "", "", opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "delete_card lookup registry=%s uid=%s", registryType, uid)
	}

	db := sqlbuilder.NewDeleteBuilder()
	db.DeleteFrom(tableFor(registryType))
	db.Where(db.Equal("uid", uid))
	delQ, delArgs := db.BuildWithFlavor(c.flavor)
	if _, err := c.db.ExecContext(ctx, delQ, delArgs...); err != nil {
		return "", "", opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "delete_card registry=%s uid=%s", registryType, uid)
	}

	c.invalidateVersions(registryType, space, name)
	return space, name, nil
}

func (c *BaseClient) QueryStats(ctx context.Context, registryType card.RegistryType, args StatsArgs) (Stats, error) {
	nameQ, nameArgs, spaceQ, spaceArgs, versionQ, versionArgs := buildStatsQuery(c.flavor, registryType, args)

	var stats Stats
	if err := c.db.QueryRowContext(ctx, nameQ, nameArgs...).Scan(&stats.NbrNames); err != nil {
		return Stats{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query_stats nbr_names")
	}
	if err := c.db.QueryRowContext(ctx, spaceQ, spaceArgs...).Scan(&stats.NbrSpaces); err != nil {
		return Stats{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query_stats nbr_spaces")
	}
	if err := c.db.QueryRowContext(ctx, versionQ, versionArgs...).Scan(&stats.NbrVersions); err != nil {
		return Stats{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "query_stats nbr_versions")
	}
	return stats, nil
}

func (c *BaseClient) QueryPage(ctx context.Context, registryType card.RegistryType, args PageArgs) (Page[CardSummary], error) {
	q, sqlArgs := buildPageQuery(c.flavor, registryType, args)
	rows, err := c.db.QueryContext(ctx, q, sqlArgs...)
	if err != nil {
		return Page[CardSummary]{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "page registry=%s", registryType)
	}
	defer rows.Close()

	var out []CardSummary
	var rowNum int64
	for rows.Next() {
		rowNum++
		var s CardSummary
		var tagsJSON []byte
		if err := rows.Scan(&s.UID, &s.Space, &s.Name, &s.Version, &s.CreatedAt, &tagsJSON); err != nil {
			return Page[CardSummary]{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan page row")
		}
		_ = json.Unmarshal(tagsJSON, &s.Tags)
		s.RowNum = rowNum
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return Page[CardSummary]{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "iterate page rows")
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return SplitPage(out, limit), nil
}

func (c *BaseClient) VersionPage(ctx context.Context, registryType card.RegistryType, cursor VersionCursor) (Page[VersionSummary], error) {
	q, args := buildVersionPageQuery(c.flavor, registryType, cursor)
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Page[VersionSummary]{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "version_page registry=%s", registryType)
	}
	defer rows.Close()

	var out []VersionSummary
	rowNum := int64(cursor.Offset)
	for rows.Next() {
		rowNum++
		var v VersionSummary
		if err := rows.Scan(&v.UID, &v.Version, &v.CreatedAt); err != nil {
			return Page[VersionSummary]{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan version_page row")
		}
		v.RowNum = rowNum
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return Page[VersionSummary]{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "iterate version_page rows")
	}

	limit := cursor.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return SplitPage(out, limit), nil
}

func (c *BaseClient) GetCardKeyForLoading(ctx context.Context, registryType card.RegistryType, args CardQueryArgs) (keystore.Key, error) {
	rows, err := c.QueryCards(ctx, registryType, args)
	if err != nil {
		return keystore.Key{}, err
	}
	if len(rows) == 0 {
		return keystore.Key{}, opsmlerr.New(opsmlerr.NotFound, "no card matches query in registry=%s", registryType)
	}

	uid := rows[0].Header.UID.String()
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("uid", "space", "registry_type", "encrypted_key", "storage_key").
		From("artifact_key")
	sb.Where(
		sb.Equal("uid", uid),
		sb.Equal("registry_type", string(registryType)),
	)
	q, sqlArgs := sb.BuildWithFlavor(c.flavor)

	var k keystore.Key
	var rt string
	row := c.db.QueryRowContext(ctx, q, sqlArgs...)
	if err := row.Scan(&k.UID, &k.Space, &rt, &k.EncryptedKey, &k.StorageKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return keystore.Key{}, opsmlerr.New(opsmlerr.NotFound, "no artifact key for uid=%s", uid)
		}
		return keystore.Key{}, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_card_key_for_loading uid=%s", uid)
	}
	k.RegistryType = card.RegistryType(rt)
	return k, nil
}

func (c *BaseClient) GetRecentServices(ctx context.Context, args ServiceQueryArgs) ([]card.ServiceCard, error) {
	q, sqlArgs := buildRecentServicesQuery(c.flavor, args)
	rows, err := c.db.QueryContext(ctx, q, sqlArgs...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_recent_services")
	}
	defer rows.Close()

	var out []card.ServiceCard
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		var sc card.ServiceCard
		if err := json.Unmarshal(r.JSON, &sc); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal service card uid=%s", r.Header.UID)
		}
		sc.Hdr = r.Header
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "iterate get_recent_services rows")
	}
	return out, nil
}

func (c *BaseClient) GetUniqueSpaceNames(ctx context.Context, registryType card.RegistryType) ([]string, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("DISTINCT space").From(tableFor(registryType))
	q, args := sb.BuildWithFlavor(c.flavor)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_unique_space_names registry=%s", registryType)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan space name")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *BaseClient) GetUniqueTags(ctx context.Context, registryType card.RegistryType) ([]string, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("tags").From(tableFor(registryType))
	q, args := sb.BuildWithFlavor(c.flavor)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_unique_tags registry=%s", registryType)
	}
	defer rows.Close()

	seen := map[string]struct{}{}
	var out []string
	for rows.Next() {
		var tagsJSON []byte
		if err := rows.Scan(&tagsJSON); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan tags")
		}
		var tags []string
		_ = json.Unmarshal(tagsJSON, &tags)
		for _, t := range tags {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out, rows.Err()
}

// onConflictIgnore appends a dialect-appropriate no-op-on-conflict clause to
// an INSERT over conflictCol, used to make UpsertSpace race-safe without a
// separate SELECT-then-INSERT.
func onConflictIgnore(flavor sqlbuilder.Flavor, conflictCol string) string {
	if flavor == sqlbuilder.MySQL {
		return fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s = %s", conflictCol, conflictCol)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", conflictCol)
}

// onConflictAddCount appends a dialect-appropriate upsert clause that adds
// the attempted row's count to whatever is already stored, implementing
// AdjustSpaceCount as a single statement rather than a read-modify-write.
func onConflictAddCount(flavor sqlbuilder.Flavor) string {
	if flavor == sqlbuilder.MySQL {
		return " ON DUPLICATE KEY UPDATE count = count + VALUES(count)"
	}
	return " ON CONFLICT (space, registry_type) DO UPDATE SET count = opsml_space_registry_count.count + excluded.count"
}

func (c *BaseClient) UpsertSpace(ctx context.Context, space string) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("opsml_space")
	ib.Cols("space", "description")
	ib.Values(space, "")
	q, args := ib.BuildWithFlavor(c.flavor)
	q += onConflictIgnore(c.flavor, "space")
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "upsert_space space=%s", space)
	}
	return nil
}

func (c *BaseClient) SetSpaceDescription(ctx context.Context, space, description string) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("opsml_space")
	ib.Cols("space", "description")
	ib.Values(space, description)
	q, args := ib.BuildWithFlavor(c.flavor)
	if c.flavor == sqlbuilder.MySQL {
		q += " ON DUPLICATE KEY UPDATE description = VALUES(description)"
	} else {
		q += " ON CONFLICT (space) DO UPDATE SET description = excluded.description"
	}
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "set_space_description space=%s", space)
	}
	return nil
}

// AdjustSpaceCount applies delta to (space, registryType)'s materialized
// card count, creating the row on first use. Callers are expected to have
// called UpsertSpace for the space already (InsertCard does, via the
// catalog layer), so this never needs to touch opsml_space itself.
func (c *BaseClient) AdjustSpaceCount(ctx context.Context, space string, registryType card.RegistryType, delta int64) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("opsml_space_registry_count")
	ib.Cols("space", "registry_type", "count")
	ib.Values(space, string(registryType), delta)
	q, args := ib.BuildWithFlavor(c.flavor)
	q += onConflictAddCount(c.flavor)
	if _, err := c.db.ExecContext(ctx, q, args...); err != nil {
		return opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "adjust_space_count space=%s registry=%s", space, registryType)
	}
	return nil
}

// ListSpaces runs get_spaces: every space's description left-joined against
// its card count for registryType (0 for a space with no cards yet in that
// registry).
// ListSpaces runs get_spaces: every space's description, left-joined in
// Go against its card count for registryType (0 for a space with no
// cards yet in that registry). Two plain selects plus an in-memory merge,
// rather than a SQL LEFT JOIN, keeps this independent of any one
// sqlbuilder join-construction API.
func (c *BaseClient) ListSpaces(ctx context.Context, registryType card.RegistryType) ([]SpaceStats, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("space", "description").From("opsml_space").OrderBy("space")
	q, args := sb.BuildWithFlavor(c.flavor)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_spaces registry=%s", registryType)
	}
	defer rows.Close()

	var out []SpaceStats
	for rows.Next() {
		var st SpaceStats
		if err := rows.Scan(&st.Space, &st.Description); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan space row")
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_spaces registry=%s", registryType)
	}

	cb := sqlbuilder.NewSelectBuilder()
	cb.Select("space", "count").From("opsml_space_registry_count")
	cb.Where(cb.Equal("registry_type", string(registryType)))
	cq, cargs := cb.BuildWithFlavor(c.flavor)

	countRows, err := c.db.QueryContext(ctx, cq, cargs...)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_space_counts registry=%s", registryType)
	}
	defer countRows.Close()

	counts := make(map[string]int64, len(out))
	for countRows.Next() {
		var space string
		var count int64
		if err := countRows.Scan(&space, &count); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "scan space count row")
		}
		counts[space] = count
	}
	if err := countRows.Err(); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.DatabaseErr, err, "get_space_counts registry=%s", registryType)
	}

	for i := range out {
		out[i].CardCount = counts[out[i].Space]
	}
	return out, nil
}
