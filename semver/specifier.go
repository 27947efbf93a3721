package semver

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/opsml/registry/opsmlerr"
)

// Specifier is a parsed form of the pattern grammar from spec.md §4.1. Only
// one of its fields is meaningful depending on Kind.
type Specifier struct {
	Kind  SpecifierKind
	Major int64
	Minor int64
	Patch int64
	Exact string // full "major.minor.patch[-pre][+build]" for Exact/TildePatch
}

// SpecifierKind discriminates the resolved shape of a specifier string.
type SpecifierKind int

const (
	// KindAll matches every stored version ("*" or empty).
	KindAll SpecifierKind = iota
	// KindMajor matches major only ("X.*", "~X", "^X.Y.Z").
	KindMajor
	// KindMajorMinor matches major and minor ("X.Y.*", "~X.Y").
	KindMajorMinor
	// KindExact matches one exact version ("X.Y.Z", "~X.Y.Z").
	KindExact
)

var (
	reFull       = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)
	reMajorOnly  = regexp.MustCompile(`^(\d+)\.\*$`)
	reMajorMinor = regexp.MustCompile(`^(\d+)\.(\d+)\.\*$`)
	reTilde      = regexp.MustCompile(`^~(\d+)(?:\.(\d+)(?:\.(\d+))?)?$`)
	reCaret      = regexp.MustCompile(`^\^(\d+)\.(\d+)\.(\d+)(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)
)

// ParseSpecifier parses a pattern specifier per the grammar documented in
// spec.md §4.1. An empty string or "*" match everything.
func ParseSpecifier(raw string) (Specifier, error) {
	if raw == "" || raw == "*" {
		return Specifier{Kind: KindAll}, nil
	}

	if m := reFull.FindStringSubmatch(raw); m != nil {
		return Specifier{Kind: KindExact, Exact: raw}, nil
	}

	if m := reMajorOnly.FindStringSubmatch(raw); m != nil {
		major, _ := strconv.ParseInt(m[1], 10, 64)
		return Specifier{Kind: KindMajor, Major: major}, nil
	}

	if m := reMajorMinor.FindStringSubmatch(raw); m != nil {
		major, _ := strconv.ParseInt(m[1], 10, 64)
		minor, _ := strconv.ParseInt(m[2], 10, 64)
		return Specifier{Kind: KindMajorMinor, Major: major, Minor: minor}, nil
	}

	if m := reTilde.FindStringSubmatch(raw); m != nil {
		major, _ := strconv.ParseInt(m[1], 10, 64)
		switch {
		case m[2] == "":
			// "~X" behaves like "X.*"
			return Specifier{Kind: KindMajor, Major: major}, nil
		case m[3] == "":
			minor, _ := strconv.ParseInt(m[2], 10, 64)
			// "~X.Y" behaves like "X.Y.*"
			return Specifier{Kind: KindMajorMinor, Major: major, Minor: minor}, nil
		default:
			minor, _ := strconv.ParseInt(m[2], 10, 64)
			patch, _ := strconv.ParseInt(m[3], 10, 64)
			// "~X.Y.Z" is patch-pinned: exact match.
			return Specifier{Kind: KindExact, Major: major, Minor: minor, Patch: patch,
				Exact: m[1] + "." + m[2] + "." + m[3]}, nil
		}
	}

	if m := reCaret.FindStringSubmatch(raw); m != nil {
		major, _ := strconv.ParseInt(m[1], 10, 64)
		// "^X.Y.Z" is compatible-update: major only.
		return Specifier{Kind: KindMajor, Major: major}, nil
	}

	return Specifier{}, opsmlerr.New(opsmlerr.InvalidVersionSpecifier, "unsupported version specifier %q", raw)
}

// Matches reports whether v satisfies the specifier.
func (s Specifier) Matches(v Version) bool {
	switch s.Kind {
	case KindAll:
		return true
	case KindMajor:
		return v.Major == s.Major
	case KindMajorMinor:
		return v.Major == s.Major && v.Minor == s.Minor
	case KindExact:
		parsed, err := Parse(s.Exact)
		if err != nil {
			return false
		}
		return v.Major == parsed.Major && v.Minor == parsed.Minor && v.Patch == parsed.Patch &&
			v.Pre == parsed.Pre
	default:
		return false
	}
}

// Resolve returns the subset of versions matching spec, sorted descending by
// SemVer precedence. versions is expected to already be narrowed by the SQL
// layer using the indexed major/minor/patch columns; Resolve itself never
// assumes narrowing and is correct (if less efficient) over an unnarrowed
// set.
func Resolve(versions []Version, spec string) ([]Version, error) {
	parsed, err := ParseSpecifier(spec)
	if err != nil {
		return nil, err
	}

	out := make([]Version, 0, len(versions))
	for _, v := range versions {
		if parsed.Matches(v) {
			out = append(out, v)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[j].Less(out[i])
	})

	return out, nil
}
