package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/semver"
)

// tableFor returns the backing table name for a registry, following the
// teacher's convention of one table per logical kind (cf. storage/disk's
// "data"/"policies" key types).
func tableFor(registryType card.RegistryType) string {
	return "opsml_" + string(registryType) + "_registry"
}

// applyCardFilters appends the WHERE clauses shared by query_cards,
// query_stats, and page, so the AND/subset tag semantics (spec.md §9) and
// max_date/version-component narrowing are defined exactly once and reused
// by every dialect.
//
// VersionSpecifier is turned into conditions on the indexed major/minor
// columns, and the SQL alone decides which rows match; no
// semver.Specifier.Matches pass runs on the result. KindMajor pins major,
// KindMajorMinor pins major and minor, KindExact is pinned by the exact
// version string, and every other kind (including "*"/empty) adds no
// condition.
func applyCardFilters(sb *sqlbuilder.SelectBuilder, flavor sqlbuilder.Flavor, args CardQueryArgs) error {
	var conds []string

	if args.UID != "" {
		conds = append(conds, sb.Equal("uid", args.UID))
	}
	if args.Space != "" {
		conds = append(conds, sb.Equal("space", args.Space))
	}
	if args.Name != "" {
		conds = append(conds, sb.Equal("name", args.Name))
	}
	if args.Version != "" {
		conds = append(conds, sb.Equal("version", args.Version))
	}
	if args.VersionSpecifier != "" {
		spec, err := semver.ParseSpecifier(args.VersionSpecifier)
		if err != nil {
			return err
		}
		switch spec.Kind {
		case semver.KindMajor:
			conds = append(conds, sb.Equal("major", spec.Major))
		case semver.KindMajorMinor:
			conds = append(conds, sb.Equal("major", spec.Major), sb.Equal("minor", spec.Minor))
		case semver.KindExact:
			conds = append(conds, sb.Equal("version", spec.Exact))
		}
	}
	if args.MaxDate != nil {
		conds = append(conds, sb.LessEqualThan("created_at", *args.MaxDate))
	}
	for _, t := range args.Tags {
		conds = append(conds, tagContains(sb, flavor, "tags", t))
	}

	if len(conds) > 0 {
		sb.Where(conds...)
	}
	return nil
}

// tagContains renders the per-dialect JSON-array-subset-containment clause
// spec.md §4.2 calls out: Postgres jsonb @>, MySQL JSON_CONTAINS, SQLite
// needs a json_each join which we approximate here with a correlated
// EXISTS + json_each subquery (the dialect split design note in spec.md §9
// names exactly this divergence). The tag value is always bound through
// sb.Args.Add rather than interpolated into the query text, so a tag
// containing a quote can't break out of the literal.
func tagContains(sb *sqlbuilder.SelectBuilder, flavor sqlbuilder.Flavor, column, tag string) string {
	switch flavor {
	case sqlbuilder.PostgreSQL:
		arr, _ := json.Marshal([]string{tag})
		return fmt.Sprintf("%s @> %s::jsonb", column, sb.Args.Add(string(arr)))
	case sqlbuilder.MySQL:
		needle, _ := json.Marshal(tag)
		return fmt.Sprintf("JSON_CONTAINS(%s, %s)", column, sb.Args.Add(string(needle)))
	default: // sqlbuilder.SQLite
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = %s)",
			column, sb.Args.Add(tag),
		)
	}
}

// orderForQuery picks the ORDER BY clause per spec.md §4.3: created_at desc
// when sortByTimestamp, else (major, minor, patch) desc then created_at
// desc.
func orderForQuery(sb *sqlbuilder.SelectBuilder, sortByTimestamp bool) {
	if sortByTimestamp {
		sb.OrderBy("created_at").Desc()
		return
	}
	sb.OrderBy("major DESC", "minor DESC", "patch DESC", "created_at DESC")
}

// buildQueryCards renders the query_cards SELECT for a registry, fetching
// limit+1 rows so the caller can apply SplitPage (spec.md §9 pagination
// note: avoid COUNT(*) on hot paths).
func buildQueryCards(flavor sqlbuilder.Flavor, registryType card.RegistryType, args CardQueryArgs) (string, []any, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("*").From(tableFor(registryType))
	if err := applyCardFilters(sb, flavor, args); err != nil {
		return "", nil, err
	}
	orderForQuery(sb, args.SortByTimestamp)
	sb.Limit(args.EffectiveLimit(string(registryType)) + 1)

	q, sqlArgs := sb.BuildWithFlavor(flavor)
	return q, sqlArgs, nil
}

// buildVersionsQuery renders the get_versions SELECT for every version of
// (space, name). It takes no specifier and does not narrow by version
// columns; the caller filters the returned versions.
func buildVersionsQuery(flavor sqlbuilder.Flavor, registryType card.RegistryType, space, name string) (string, []any) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("version", "major", "minor", "patch", "pre_tag", "build_tag").
		From(tableFor(registryType))
	sb.Where(
		sb.Equal("space", space),
		sb.Equal("name", name),
	)
	return sb.BuildWithFlavor(flavor)
}

// buildStatsQuery renders query_stats: counts of distinct names, spaces,
// and versions matching the search/space/tag filters.
func buildStatsQuery(flavor sqlbuilder.Flavor, registryType card.RegistryType, args StatsArgs) (nameQ string, nameArgs []any, spaceQ string, spaceArgs []any, versionQ string, versionArgs []any) {
	build := func(selectExpr string) (string, []any) {
		sb := sqlbuilder.NewSelectBuilder()
		sb.Select(selectExpr).From(tableFor(registryType))

		var conds []string
		if args.SearchTerm != "" {
			conds = append(conds, sb.Like("name", "%"+args.SearchTerm+"%"))
		}
		if len(args.Spaces) > 0 {
			in := make([]any, len(args.Spaces))
			for i, s := range args.Spaces {
				in[i] = s
			}
			conds = append(conds, sb.In("space", in...))
		}
		for _, t := range args.Tags {
			conds = append(conds, tagContains(sb, flavor, "tags", t))
		}
		if len(conds) > 0 {
			sb.Where(conds...)
		}
		return sb.BuildWithFlavor(flavor)
	}

	nameQ, nameArgs = build("COUNT(DISTINCT name)")
	spaceQ, spaceArgs = build("COUNT(DISTINCT space)")
	versionQ, versionArgs = build("COUNT(*)")
	return
}

// buildPageQuery renders the page SELECT, fetching limit+1 summary rows.
func buildPageQuery(flavor sqlbuilder.Flavor, registryType card.RegistryType, args PageArgs) (string, []any) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("uid", "space", "name", "version", "created_at", "tags").
		From(tableFor(registryType))

	var conds []string
	if args.SearchTerm != "" {
		conds = append(conds, sb.Like("name", "%"+args.SearchTerm+"%"))
	}
	if len(args.Spaces) > 0 {
		in := make([]any, len(args.Spaces))
		for i, s := range args.Spaces {
			in[i] = s
		}
		conds = append(conds, sb.In("space", in...))
	}
	for _, t := range args.Tags {
		conds = append(conds, tagContains(sb, flavor, "tags", t))
	}
	if len(conds) > 0 {
		sb.Where(conds...)
	}

	switch args.SortBy {
	case SortByCreatedAt:
		sb.OrderBy("created_at").Desc()
	case SortByUpdatedAt:
		sb.OrderBy("updated_at").Desc()
	default:
		sb.OrderBy("name").Asc()
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sb.Limit(limit + 1).Offset(args.Offset)

	return sb.BuildWithFlavor(flavor)
}

// buildVersionPageQuery renders version_page: offsets are used only within
// one (space, name), per spec.md §4.3.
func buildVersionPageQuery(flavor sqlbuilder.Flavor, registryType card.RegistryType, cursor VersionCursor) (string, []any) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("uid", "version", "created_at").From(tableFor(registryType))
	sb.Where(
		sb.Equal("space", cursor.Space),
		sb.Equal("name", cursor.Name),
	)
	sb.OrderBy("major", "minor", "patch").Desc()

	limit := cursor.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	sb.Limit(limit + 1).Offset(cursor.Offset)

	return sb.BuildWithFlavor(flavor)
}

// buildRecentServicesQuery renders get_recent_services: the highest-version
// row per (space, name) in the service registry. Implemented with a
// correlated NOT EXISTS rather than a window function so the same query
// string works unmodified on SQLite (which only gained window-function
// support in recent releases opsml does not assume).
func buildRecentServicesQuery(flavor sqlbuilder.Flavor, args ServiceQueryArgs) (string, []any) {
	outer := sqlbuilder.NewSelectBuilder()
	outer.Select("*").From(tableFor(card.RegistryService) + " t1")

	var conds []string
	conds = append(conds, fmt.Sprintf(
		`NOT EXISTS (SELECT 1 FROM %s t2 WHERE t2.space = t1.space AND t2.name = t1.name AND `+
			`(t2.major, t2.minor, t2.patch) > (t1.major, t1.minor, t1.patch))`,
		tableFor(card.RegistryService),
	))
	if args.ServiceType != "" {
		conds = append(conds, outer.Equal("service_type", args.ServiceType))
	}
	for _, t := range args.Tags {
		conds = append(conds, tagContains(outer, flavor, "tags", t))
	}
	outer.Where(conds...)
	outer.Limit(DefaultServiceLimit)

	return outer.BuildWithFlavor(flavor)
}
