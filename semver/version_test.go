package semver

import (
	"encoding/json"
	"testing"
)

func TestNextBumpsComponent(t *testing.T) {
	v, err := Parse("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		bump Bump
		want string
	}{
		{BumpMajor, "2.0.0"},
		{BumpMinor, "1.3.0"},
		{BumpPatch, "1.2.4"},
	}
	for _, tc := range tests {
		if got := v.Next(tc.bump).String(); got != tc.want {
			t.Errorf("Next(%v) = %q, want %q", tc.bump, got, tc.want)
		}
	}
}

func TestBumpJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(BumpMinor)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `"Minor"` {
		t.Fatalf("Marshal(BumpMinor) = %s, want \"Minor\"", raw)
	}
	var b Bump
	if err := json.Unmarshal(raw, &b); err != nil {
		t.Fatal(err)
	}
	if b != BumpMinor {
		t.Fatalf("Unmarshal(%s) = %v, want BumpMinor", raw, b)
	}
}

func TestFirstVersion(t *testing.T) {
	if FirstVersion.String() != "1.0.0" {
		t.Fatalf("FirstVersion = %q, want 1.0.0", FirstVersion.String())
	}
}
