// Copyright 2016 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package semver resolves SemVer pattern specifiers against a set of stored
// card versions. It is a pure function over version tuples: callers are
// expected to narrow candidate rows with the indexed major/minor/patch
// columns before calling Resolve, so this package never has to scan a whole
// table.
package semver

import (
	"fmt"
	"strings"

	mastersemver "github.com/Masterminds/semver/v3"
)

// Version is one stored card version, both as components (used for SQL
// range queries) and as the canonical string (used for display and
// round-tripping).
type Version struct {
	Raw   string
	Major int64
	Minor int64
	Patch int64
	Pre   string
	Build string
}

// Parse decomposes a canonical "major.minor.patch[-pre][+build]" string into
// a Version. It returns an error if raw is not a valid SemVer string.
func Parse(raw string) (Version, error) {
	v, err := mastersemver.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	return Version{
		Raw:   raw,
		Major: int64(v.Major()),
		Minor: int64(v.Minor()),
		Patch: int64(v.Patch()),
		Pre:   v.Prerelease(),
		Build: v.Metadata(),
	}, nil
}

// semver builds the underlying comparator, ignoring Raw so that ordering is
// always derived from the indexed components rather than the display
// string (the two are kept consistent by the schemas package invariant that
// parse(version).major == major, etc.).
func (v Version) semver() *mastersemver.Version {
	raw := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		raw += "-" + v.Pre
	}
	if v.Build != "" {
		raw += "+" + v.Build
	}
	sv, _ := mastersemver.NewVersion(raw)
	return sv
}

// Less reports whether v sorts before other under SemVer precedence
// (ascending). Build metadata is ignored for ordering per the SemVer spec.
func (v Version) Less(other Version) bool {
	return v.semver().LessThan(other.semver())
}

// String returns the canonical version string.
func (v Version) String() string {
	return v.Raw
}

// Bump enumerates the version component a create request asks the server
// to increment when it doesn't supply an exact version.
type Bump int

const (
	BumpMajor Bump = iota
	BumpMinor
	BumpPatch
)

// MarshalJSON renders b as one of "Major", "Minor", "Patch", matching the
// VersionType the create-card wire request carries.
func (b Bump) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b Bump) String() string {
	switch b {
	case BumpMajor:
		return "Major"
	case BumpMinor:
		return "Minor"
	default:
		return "Patch"
	}
}

// UnmarshalJSON accepts "Major"/"Minor"/"Patch" case-insensitively,
// defaulting unrecognized values to Patch.
func (b *Bump) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "major":
		*b = BumpMajor
	case "minor":
		*b = BumpMinor
	default:
		*b = BumpPatch
	}
	return nil
}

// Next returns the version one bump ahead of v, dropping any pre-release
// or build metadata (spec.md §4.8's version-assignment rule only ever
// bumps a release version).
func (v Version) Next(b Bump) Version {
	switch b {
	case BumpMajor:
		return Version{Raw: fmt.Sprintf("%d.0.0", v.Major+1), Major: v.Major + 1}
	case BumpMinor:
		return Version{Raw: fmt.Sprintf("%d.%d.0", v.Major, v.Minor+1), Major: v.Major, Minor: v.Minor + 1}
	default:
		return Version{Raw: fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch+1), Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// FirstVersion is assigned to the first card in a new (space, name) line.
var FirstVersion = Version{Raw: "1.0.0", Major: 1}
