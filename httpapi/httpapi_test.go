package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/catalog"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/sqlstore"
)

// fakeClient is a minimal in-memory sqlstore.Client, grounded on the same
// hand-written fake pattern package servicecard's test suite uses for the
// same interface.
type fakeClient struct {
	byUID map[string]sqlstore.Row
}

func newFakeClient() *fakeClient {
	return &fakeClient{byUID: map[string]sqlstore.Row{}}
}

func (f *fakeClient) CheckUIDExists(_ context.Context, _ card.RegistryType, uid string) (bool, error) {
	_, ok := f.byUID[uid]
	return ok, nil
}

func (f *fakeClient) GetVersions(context.Context, card.RegistryType, string, string, string) ([]string, error) {
	return nil, nil
}

func (f *fakeClient) QueryCards(_ context.Context, registryType card.RegistryType, args sqlstore.CardQueryArgs) ([]sqlstore.Row, error) {
	var out []sqlstore.Row
	for _, r := range f.byUID {
		if args.UID != "" && r.Header.UID.String() != args.UID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeClient) InsertCard(_ context.Context, _ card.RegistryType, c card.Card) error {
	hdr := c.Header()
	if _, exists := f.byUID[hdr.UID.String()]; exists {
		return opsmlerr.New(opsmlerr.DuplicateVersion, "uid %s already exists", hdr.UID)
	}
	for _, r := range f.byUID {
		if r.Header.Space == hdr.Space && r.Header.Name == hdr.Name && r.Header.Version == hdr.Version {
			return opsmlerr.New(opsmlerr.DuplicateVersion, "%s/%s %s already exists", hdr.Space, hdr.Name, hdr.Version)
		}
	}
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	f.byUID[hdr.UID.String()] = sqlstore.Row{Header: hdr, JSON: body}
	return nil
}

func (f *fakeClient) UpdateCard(_ context.Context, _ card.RegistryType, c card.Card) error {
	hdr := c.Header()
	if _, exists := f.byUID[hdr.UID.String()]; !exists {
		return opsmlerr.New(opsmlerr.NotFound, "uid %s not found", hdr.UID)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	f.byUID[hdr.UID.String()] = sqlstore.Row{Header: hdr, JSON: body}
	return nil
}

func (f *fakeClient) DeleteCard(_ context.Context, _ card.RegistryType, uid string) (string, string, error) {
	r, ok := f.byUID[uid]
	if !ok {
		return "", "", opsmlerr.New(opsmlerr.NotFound, "uid %s not found", uid)
	}
	delete(f.byUID, uid)
	return r.Header.Space, r.Header.Name, nil
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
	return keystore.Key{}, opsmlerr.New(opsmlerr.NotFound, "no key")
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

// fakeKeyStore is an in-memory keystore.Store.
type fakeKeyStore struct {
	byUID map[string]keystore.Key
}

func newFakeKeyStore() *fakeKeyStore { return &fakeKeyStore{byUID: map[string]keystore.Key{}} }

func (k *fakeKeyStore) Insert(_ context.Context, key keystore.Key) error {
	k.byUID[key.UID] = key
	return nil
}

func (k *fakeKeyStore) Get(_ context.Context, uid string, _ card.RegistryType) (keystore.Key, error) {
	key, ok := k.byUID[uid]
	if !ok {
		return keystore.Key{}, keystore.NotFound(uid, "")
	}
	return key, nil
}

func (k *fakeKeyStore) Update(_ context.Context, key keystore.Key) error {
	k.byUID[key.UID] = key
	return nil
}

func (k *fakeKeyStore) Delete(_ context.Context, uid string, _ card.RegistryType) error {
	delete(k.byUID, uid)
	return nil
}

func (k *fakeKeyStore) GetFromPath(context.Context, string, card.RegistryType) (keystore.Key, bool, error) {
	return keystore.Key{}, false, nil
}

// fakeObjects is an in-memory objstore.FileSystem covering only what the
// readme handlers exercise.
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
func (o *fakeObjects) FindInfo(context.Context, string) ([]objstore.FileInfo, error) {
	return nil, nil
}
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
	o.files[dst] = o.files[src]
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

func newTestServer() (*Server, *fakeClient) {
	fc := newFakeClient()
	store := catalog.NewStore(sqlstore.NewDispatcher(sqlstore.DialectSQLite, fc))
	s := New().
		WithCatalog(store).
		WithKeyStore(newFakeKeyStore()).
		WithObjectStore(newFakeObjects())
	s.Router()
	return s, fc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer()
	rec := doJSON(t, s.router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCreateListAndDeleteCard(t *testing.T) {
	s, _ := newTestServer()

	createReq := CreateCardRequest{
		RegistryType: card.RegistryData,
		Space:        "repo1",
		Name:         "Data1",
		Version:      "1.0.0",
		Card:         json.RawMessage(`{"data_type":"table","interface_type":"pandas"}`),
	}
	rec := doJSON(t, s.router, http.MethodPost, "/opsml/api/card/create", createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created CreateCardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Version != "1.0.0" {
		t.Fatalf("Version = %q, want 1.0.0", created.Version)
	}
	uid := created.Key.UID
	if uid == "" {
		t.Fatal("expected a non-empty uid in the create response")
	}

	listURL := "/opsml/api/card/list?space=repo1&name=Data1&registry_type=data"
	rec = doJSON(t, s.router, http.MethodGet, listURL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d body=%s", rec.Code, rec.Body.String())
	}
	var cards []card.DataCard
	if err := json.Unmarshal(rec.Body.Bytes(), &cards); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(cards) != 1 || cards[0].Hdr.UID.String() != uid {
		t.Fatalf("list = %+v, want one card with uid %s", cards, uid)
	}

	deleteReq := DeleteCardRequest{UID: uid, Space: "repo1", RegistryType: card.RegistryData}
	rec = doJSON(t, s.router, http.MethodDelete, "/opsml/api/card/delete", deleteReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body=%s", rec.Code, rec.Body.String())
	}
	var existsResp UidResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &existsResp); err != nil {
		t.Fatal(err)
	}
	if existsResp.Exists {
		t.Fatal("expected exists=false after delete")
	}

	existsURL := "/opsml/api/card?uid=" + uid + "&registry_type=data"
	rec = doJSON(t, s.router, http.MethodGet, existsURL, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &existsResp); err != nil {
		t.Fatal(err)
	}
	if existsResp.Exists {
		t.Fatal("expected /card to report exists=false after delete")
	}
}

func TestDeleteCardRemovesStoredObjects(t *testing.T) {
	s, _ := newTestServer()

	createReq := CreateCardRequest{
		RegistryType: card.RegistryData,
		Space:        "repo1",
		Name:         "Data1",
		Version:      "1.0.0",
		Card:         json.RawMessage(`{"data_type":"table","interface_type":"pandas"}`),
	}
	rec := doJSON(t, s.router, http.MethodPost, "/opsml/api/card/create", createReq)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created CreateCardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	uid := created.Key.UID

	prefix := string(card.RegistryData) + "/repo1/Data1/1.0.0/" + uid
	objPath := prefix + "/data.parquet"
	if _, err := s.objects.Put(context.Background(), objPath, bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatalf("seed object: %v", err)
	}
	if ok, _ := s.objects.Exists(context.Background(), objPath); !ok {
		t.Fatal("expected seeded object to exist before delete")
	}

	deleteReq := DeleteCardRequest{UID: uid, Space: "repo1", RegistryType: card.RegistryData}
	rec = doJSON(t, s.router, http.MethodDelete, "/opsml/api/card/delete", deleteReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body=%s", rec.Code, rec.Body.String())
	}

	if ok, _ := s.objects.Exists(context.Background(), objPath); ok {
		t.Fatal("expected stored object to be removed after delete")
	}
}

func TestCreateCardRejectsDuplicateVersion(t *testing.T) {
	s, _ := newTestServer()
	req := CreateCardRequest{
		RegistryType: card.RegistryModel,
		Space:        "repo1",
		Name:         "Model1",
		Version:      "1.0.0",
		Card:         json.RawMessage(`{}`),
	}
	rec := doJSON(t, s.router, http.MethodPost, "/opsml/api/card/create", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", rec.Code)
	}

	req2 := req
	req2.Name = "Model1" // same (space, name, version) triggers a fresh uid with the same version
	rec = doJSON(t, s.router, http.MethodPost, "/opsml/api/card/create", req2)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want %d body=%s", rec.Code, http.StatusConflict, rec.Body.String())
	}
}

func TestReadmeRoundTrip(t *testing.T) {
	s, _ := newTestServer()
	put := CreateReadeMe{UID: "card-1", RegistryType: card.RegistryModel, Markdown: "# hello"}
	rec := doJSON(t, s.router, http.MethodPost, "/opsml/api/card/readme", put)
	if rec.Code != http.StatusOK {
		t.Fatalf("readme put status = %d", rec.Code)
	}

	rec = doJSON(t, s.router, http.MethodGet, "/opsml/api/card/readme?uid=card-1", nil)
	var resp ReadmeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Exists || resp.Readme != "# hello" {
		t.Fatalf("readme get = %+v, want exists with body", resp)
	}
}
