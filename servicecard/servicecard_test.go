package servicecard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/catalog"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/sqlstore"
)

// fakeObjects is an in-memory objstore.FileSystem, enough to exercise
// Engine.Save/Load's copy/put/get/find calls without a real backend.
type fakeObjects struct {
	files map[string][]byte
}

func newFakeObjects() *fakeObjects { return &fakeObjects{files: map[string][]byte{}} }

func (o *fakeObjects) Find(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for p := range o.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (o *fakeObjects) FindInfo(context.Context, string) ([]objstore.FileInfo, error) { return nil, nil }

func (o *fakeObjects) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := o.files[path]
	if !ok {
		return nil, opsmlerr.New(opsmlerr.NotFound, "no object at %s", path)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (o *fakeObjects) Put(_ context.Context, path string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	o.files[path] = b
	return int64(len(b)), nil
}

func (o *fakeObjects) Rm(_ context.Context, path string) error { delete(o.files, path); return nil }

func (o *fakeObjects) Copy(_ context.Context, src, dst string) error {
	b, ok := o.files[src]
	if !ok {
		return opsmlerr.New(opsmlerr.NotFound, "no object at %s", src)
	}
	o.files[dst] = b
	return nil
}

func (o *fakeObjects) Exists(_ context.Context, path string) (bool, error) {
	_, ok := o.files[path]
	return ok, nil
}

func (o *fakeObjects) GeneratePresignedURL(context.Context, string, time.Duration, string) (string, error) {
	return "", nil
}

func (o *fakeObjects) CreateMultipartUpload(context.Context, string) (string, error) { return "", nil }

// fakeClient is a minimal in-memory sqlstore.Client double keyed by uid,
// enough to exercise Engine.Save/Load without a real database.
type fakeClient struct {
	byUID map[string]sqlstore.Row
}

func newFakeClient() *fakeClient { return &fakeClient{byUID: map[string]sqlstore.Row{}} }

func (f *fakeClient) CheckUIDExists(_ context.Context, _ card.RegistryType, uid string) (bool, error) {
	_, ok := f.byUID[uid]
	return ok, nil
}

func (f *fakeClient) GetVersions(context.Context, card.RegistryType, string, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeClient) QueryCards(_ context.Context, _ card.RegistryType, args sqlstore.CardQueryArgs) ([]sqlstore.Row, error) {
	if row, ok := f.byUID[args.UID]; ok {
		return []sqlstore.Row{row}, nil
	}
	return nil, nil
}

func (f *fakeClient) InsertCard(_ context.Context, _ card.RegistryType, c card.Card) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	f.byUID[c.Header().UID.String()] = sqlstore.Row{Header: c.Header(), JSON: raw}
	return nil
}

func (f *fakeClient) UpdateCard(context.Context, card.RegistryType, card.Card) error { return nil }

func (f *fakeClient) DeleteCard(context.Context, card.RegistryType, string) (string, string, error) {
	return "", "", nil
}

func (f *fakeClient) QueryStats(context.Context, card.RegistryType, sqlstore.StatsArgs) (sqlstore.Stats, error) {
	return sqlstore.Stats{}, nil
}

func (f *fakeClient) QueryPage(context.Context, card.RegistryType, sqlstore.PageArgs) (sqlstore.Page[sqlstore.CardSummary], error) {
	return sqlstore.Page[sqlstore.CardSummary]{}, nil
}

func (f *fakeClient) VersionPage(context.Context, card.RegistryType, sqlstore.VersionCursor) (sqlstore.Page[sqlstore.VersionSummary], error) {
	return sqlstore.Page[sqlstore.VersionSummary]{}, nil
}

func (f *fakeClient) GetCardKeyForLoading(context.Context, card.RegistryType, sqlstore.CardQueryArgs) (keystore.Key, error) {
	return keystore.Key{}, opsmlerr.New(opsmlerr.NotFound, "not implemented in fake")
}

func (f *fakeClient) GetRecentServices(context.Context, sqlstore.ServiceQueryArgs) ([]card.ServiceCard, error) {
	return nil, nil
}

func (f *fakeClient) GetUniqueSpaceNames(context.Context, card.RegistryType) ([]string, error) {
	return nil, nil
}

func (f *fakeClient) GetUniqueTags(context.Context, card.RegistryType) ([]string, error) {
	return nil, nil
}

func (f *fakeClient) UpsertSpace(context.Context, string) error { return nil }

func (f *fakeClient) SetSpaceDescription(context.Context, string, string) error { return nil }

func (f *fakeClient) AdjustSpaceCount(context.Context, string, card.RegistryType, int64) error {
	return nil
}

func (f *fakeClient) ListSpaces(context.Context, card.RegistryType) ([]sqlstore.SpaceStats, error) {
	return nil, nil
}

func mustHeader(t *testing.T, uid string) card.Header {
	t.Helper()
	hdr, err := card.NewHeader("ml-team", "churn-model", "1.0.0")
	if err != nil {
		t.Fatalf("NewHeader: %v", err)
	}
	if uid != "" {
		parsed, err := uuid.Parse(uid)
		if err != nil {
			t.Fatalf("parse uid: %v", err)
		}
		hdr.UID = parsed
	}
	return hdr
}

func TestEngineSaveRejectsDanglingMember(t *testing.T) {
	client := newFakeClient()
	store := catalog.NewStore(client)
	engine := NewEngine(store, newFakeObjects())

	svc := card.ServiceCard{
		Hdr: mustHeader(t, ""),
		Cards: []card.ServiceCardRef{
			{Alias: "model", UID: "00000000-0000-7000-8000-000000000000", RegistryType: card.RegistryModel, Version: "1.0.0"},
		},
	}

	err := engine.Save(context.Background(), svc)
	if !opsmlerr.Is(err, opsmlerr.InvalidRequest) {
		t.Fatalf("Save with dangling member = %v, want InvalidRequest", err)
	}
}

// TestEngineSaveAndLoadRoundTrip mirrors spec.md §4.7's worked example: a
// service with data and model aliases. Save must write path/card.json plus
// a per-alias subtree holding the member's own stored bytes, and Load must
// reconstruct each member with its original uid.
func TestEngineSaveAndLoadRoundTrip(t *testing.T) {
	client := newFakeClient()
	store := catalog.NewStore(client)
	objects := newFakeObjects()
	engine := NewEngine(store, objects)

	data := card.DataCard{Hdr: mustHeader(t, "00000000-0000-7000-8000-000000000003")}
	if err := store.Insert(context.Background(), card.RegistryData, data); err != nil {
		t.Fatalf("seed data card: %v", err)
	}
	dataBytes := storagePrefix(card.RegistryData, data.Hdr) + "/data.parquet"
	if _, err := objects.Put(context.Background(), dataBytes, strings.NewReader("table-bytes")); err != nil {
		t.Fatalf("seed data bytes: %v", err)
	}

	model := card.ModelCard{Hdr: mustHeader(t, "00000000-0000-7000-8000-000000000001")}
	if err := store.Insert(context.Background(), card.RegistryModel, model); err != nil {
		t.Fatalf("seed model card: %v", err)
	}

	svc := card.ServiceCard{
		Hdr: mustHeader(t, ""),
		Cards: []card.ServiceCardRef{
			{Alias: "data", UID: data.Hdr.UID.String(), RegistryType: card.RegistryData, Version: "1.0.0"},
			{Alias: "model", UID: model.Hdr.UID.String(), RegistryType: card.RegistryModel, Version: "1.0.0"},
		},
	}

	if err := engine.Save(context.Background(), svc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	svcPrefix := storagePrefix(card.RegistryService, svc.Hdr)
	if _, ok := objects.files[svcPrefix+"/"+manifestName]; !ok {
		t.Fatal("expected service manifest at the service's storage prefix root")
	}
	copiedPath := aliasPrefix(svcPrefix, "data") + "data.parquet"
	if string(objects.files[copiedPath]) != "table-bytes" {
		t.Fatalf("expected data member's bytes copied under its alias subpath at %s", copiedPath)
	}

	results := engine.Load(context.Background(), svc)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, want := range []struct {
		alias string
		uid   string
	}{{"data", data.Hdr.UID.String()}, {"model", model.Hdr.UID.String()}} {
		r := results[i]
		if r.Err != nil {
			t.Fatalf("unexpected member error for %s: %v", want.alias, r.Err)
		}
		if r.Card == nil || r.Card.Header().UID.String() != want.uid {
			t.Fatalf("member %s = %+v, want uid %s", want.alias, r.Card, want.uid)
		}
	}
}

// TestEngineLoadToleratesMissingMember covers a service whose manifest
// references an alias that was never actually saved (e.g. the member's
// card.json was removed, or the reference was added after the service was
// last saved): Load must still return the other, genuinely saved member.
func TestEngineLoadToleratesMissingMember(t *testing.T) {
	client := newFakeClient()
	store := catalog.NewStore(client)
	engine := NewEngine(store, newFakeObjects())

	present := card.ModelCard{Hdr: mustHeader(t, "00000000-0000-7000-8000-000000000002")}
	if err := store.Insert(context.Background(), card.RegistryModel, present); err != nil {
		t.Fatalf("seed model card: %v", err)
	}

	saved := card.ServiceCard{
		Hdr: mustHeader(t, ""),
		Cards: []card.ServiceCardRef{
			{Alias: "present", UID: present.Hdr.UID.String(), RegistryType: card.RegistryModel, Version: "1.0.0"},
		},
	}
	if err := engine.Save(context.Background(), saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// loadSvc carries the same header (same storage prefix) as saved, plus
	// an extra alias whose manifest was never written.
	loadSvc := saved
	loadSvc.Cards = append(loadSvc.Cards, card.ServiceCardRef{
		Alias: "missing", UID: "00000000-0000-7000-8000-000000000099", RegistryType: card.RegistryModel, Version: "1.0.0",
	})

	results := engine.Load(context.Background(), loadSvc)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("expected present member to load, got err: %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("expected missing member to report an error")
	}
	if results[0].Card == nil {
		t.Error("present member's successful load should not be affected by the other member's failure")
	}
}
