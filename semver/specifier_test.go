package semver

import (
	"testing"

	"github.com/opsml/registry/opsmlerr"
)

func mustVersions(t *testing.T, raw ...string) []Version {
	t.Helper()
	out := make([]Version, len(raw))
	for i, r := range raw {
		v, err := Parse(r)
		if err != nil {
			t.Fatalf("Parse(%q): %v", r, err)
		}
		out[i] = v
	}
	return out
}

func versionStrings(vs []Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func TestResolveSeededHistory(t *testing.T) {
	seeded := mustVersions(t,
		"1.0.0", "1.1.0", "1.1.1", "1.2.0", "2.0.0",
		"2.0.1", "2.1.0", "3.0.0", "3.1.0", "3.1.1",
	)

	tests := []struct {
		note string
		spec string
		want []string
	}{
		{"tilde minor pin", "~1.1", []string{"1.1.1", "1.1.0"}},
		{"caret major", "^2.0.0", []string{"2.1.0", "2.0.1", "2.0.0"}},
		{"major wildcard", "3.*", []string{"3.1.1", "3.1.0", "3.0.0"}},
		{"exact", "1.2.0", []string{"1.2.0"}},
		{"all", "", []string{"3.1.1", "3.1.0", "3.0.0", "2.1.0", "2.0.1", "2.0.0", "1.2.0", "1.1.1", "1.1.0", "1.0.0"}},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			got, err := Resolve(seeded, tc.spec)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tc.spec, err)
			}
			gotStrs := versionStrings(got)
			if len(gotStrs) != len(tc.want) {
				t.Fatalf("Resolve(%q) = %v, want %v", tc.spec, gotStrs, tc.want)
			}
			for i := range tc.want {
				if gotStrs[i] != tc.want[i] {
					t.Fatalf("Resolve(%q) = %v, want %v", tc.spec, gotStrs, tc.want)
				}
			}
		})
	}
}

func TestResolveInvalidSpecifier(t *testing.T) {
	_, err := Resolve(nil, "not-a-spec")
	if err == nil {
		t.Fatal("expected error")
	}
	if !opsmlerr.IsInvalidVersionSpecifier(err) {
		t.Fatalf("expected InvalidVersionSpecifier, got %v", err)
	}
}

func TestTildePatchPin(t *testing.T) {
	seeded := mustVersions(t, "1.2.3", "1.2.4")
	got, err := Resolve(seeded, "~1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].String() != "1.2.3" {
		t.Fatalf("got %v", versionStrings(got))
	}
}

func TestStrictlyDecreasing(t *testing.T) {
	seeded := mustVersions(t, "1.0.0", "1.10.0", "1.2.0", "1.9.0")
	got, err := Resolve(seeded, "1.*")
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Less(got[i-1]) {
			t.Fatalf("not strictly decreasing at %d: %v", i, versionStrings(got))
		}
	}
}
