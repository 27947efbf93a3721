package sqlstore

import (
	"strings"
	"testing"

	"github.com/huandu/go-sqlbuilder"

	"github.com/opsml/registry/card"
)

func TestTagContainsPerDialect(t *testing.T) {
	tests := []struct {
		flavor sqlbuilder.Flavor
		want   string
	}{
		{sqlbuilder.PostgreSQL, "@>"},
		{sqlbuilder.MySQL, "JSON_CONTAINS"},
		{sqlbuilder.SQLite, "json_each"},
	}
	for _, tc := range tests {
		sb := sqlbuilder.NewSelectBuilder()
		got := tagContains(sb, tc.flavor, "tags", "prod")
		if !strings.Contains(got, tc.want) {
			t.Fatalf("tagContains(%v) = %q, want substring %q", tc.flavor, got, tc.want)
		}
	}
}

func TestBuildQueryCardsAppliesDefaultLimit(t *testing.T) {
	q, _, err := buildQueryCards(sqlbuilder.PostgreSQL, card.RegistryData, CardQueryArgs{Space: "repo1"})
	if err != nil {
		t.Fatalf("buildQueryCards: %v", err)
	}
	if !strings.Contains(q, "LIMIT 51") {
		t.Fatalf("expected limit+1 = 51 in query, got %q", q)
	}
}

func TestBuildQueryCardsServiceDefaultLimit(t *testing.T) {
	q, _, err := buildQueryCards(sqlbuilder.PostgreSQL, card.RegistryService, CardQueryArgs{})
	if err != nil {
		t.Fatalf("buildQueryCards: %v", err)
	}
	if !strings.Contains(q, "LIMIT 1001") {
		t.Fatalf("expected service default limit+1 = 1001 in query, got %q", q)
	}
}

func TestBuildQueryCardsOrdersByTimestampWhenRequested(t *testing.T) {
	q, _, err := buildQueryCards(sqlbuilder.PostgreSQL, card.RegistryData, CardQueryArgs{SortByTimestamp: true})
	if err != nil {
		t.Fatalf("buildQueryCards: %v", err)
	}
	if !strings.Contains(q, "ORDER BY created_at DESC") {
		t.Fatalf("expected created_at ordering, got %q", q)
	}
}

func TestBuildQueryCardsOrdersByVersionByDefault(t *testing.T) {
	q, _, err := buildQueryCards(sqlbuilder.PostgreSQL, card.RegistryData, CardQueryArgs{})
	if err != nil {
		t.Fatalf("buildQueryCards: %v", err)
	}
	if !strings.Contains(q, "ORDER BY major DESC, minor DESC, patch DESC, created_at DESC") {
		t.Fatalf("expected version-component ordering, got %q", q)
	}
}

func TestSplitPageSignalsHasMore(t *testing.T) {
	rows := []int{1, 2, 3, 4}
	page := SplitPage(rows, 3)
	if !page.HasMore {
		t.Fatal("expected HasMore")
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}

	exact := SplitPage([]int{1, 2, 3}, 3)
	if exact.HasMore {
		t.Fatal("expected no HasMore when rows == limit")
	}
}

func TestTableForNamesEachRegistry(t *testing.T) {
	for _, rt := range []card.RegistryType{
		card.RegistryData, card.RegistryModel, card.RegistryExperiment,
		card.RegistryAudit, card.RegistryPrompt, card.RegistryService,
	} {
		got := tableFor(rt)
		if !strings.HasPrefix(got, "opsml_") || !strings.HasSuffix(got, "_registry") {
			t.Fatalf("tableFor(%s) = %q, does not follow naming convention", rt, got)
		}
	}
}
