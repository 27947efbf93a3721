package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opsml/registry/audit"
	"github.com/opsml/registry/card"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/semver"
	"github.com/opsml/registry/sqlstore"
)

// actorFromRequest resolves the authenticated caller's username from the
// bearer token, falling back to "anonymous" when auth isn't wired (local
// single-user runs).
func (s *Server) actorFromRequest(r *http.Request) string {
	if s.tokens == nil {
		return "anonymous"
	}
	auth := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(auth, "Bearer ")
	if raw == "" {
		return "anonymous"
	}
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return "anonymous"
	}
	return claims.Username
}

func (s *Server) recordAudit(r *http.Request, action audit.Action, registryType card.RegistryType, uid string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(r.Context(), audit.Event{
		Actor:        s.actorFromRequest(r),
		Action:       action,
		RegistryType: registryType,
		UID:          uid,
		Timestamp:    time.Now().UTC(),
	})
}

func parseCardQuery(q url.Values) (cardQueryParams, error) {
	p := cardQueryParams{
		UID:              q.Get("uid"),
		Space:            q.Get("space"),
		Name:             q.Get("name"),
		Version:          q.Get("version"),
		VersionSpecifier: q.Get("version_specifier"),
		RegistryType:     card.RegistryType(q.Get("registry_type")),
	}
	if tags := q.Get("tags"); tags != "" {
		p.Tags = strings.Split(tags, ",")
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return p, opsmlerr.New(opsmlerr.InvalidRequest, "invalid limit %q", limit)
		}
		p.Limit = n
	}
	if q.Get("sort_by_timestamp") == "true" {
		p.SortByTimestamp = true
	}
	if maxDate := q.Get("max_date"); maxDate != "" {
		t, err := time.Parse(time.RFC3339, maxDate)
		if err != nil {
			return p, opsmlerr.New(opsmlerr.InvalidRequest, "invalid max_date %q", maxDate)
		}
		p.MaxDate = &t
	}
	if !p.RegistryType.Valid() {
		return p, opsmlerr.New(opsmlerr.InvalidCardType, "unknown or missing registry_type %q", p.RegistryType)
	}
	return p, nil
}

func (s *Server) handleCardExists(w http.ResponseWriter, r *http.Request) {
	registryType := card.RegistryType(r.URL.Query().Get("registry_type"))
	uid := r.URL.Query().Get("uid")
	if !registryType.Valid() || uid == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "uid and registry_type are required"))
		return
	}
	exists, err := s.catalog.Exists(r.Context(), registryType, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UidResponse{Exists: exists})
}

func (s *Server) handleCardList(w http.ResponseWriter, r *http.Request) {
	p, err := parseCardQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	cards, err := s.catalog.Query(r.Context(), p.RegistryType, p.toArgs())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCardLoad(w http.ResponseWriter, r *http.Request) {
	p, err := parseCardQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := s.catalog.GetCardKeyForLoading(r.Context(), p.RegistryType, p.toArgs())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keyToDTO(key))
}

func keyToDTO(k keystore.Key) keystoreKeyDTO {
	return keystoreKeyDTO{
		UID:          k.UID,
		Space:        k.Space,
		RegistryType: k.RegistryType,
		EncryptedKey: k.EncryptedKey,
		StorageKey:   k.StorageKey,
	}
}

// decodeVariant unmarshals the raw variant-specific JSON body carried by a
// create/update request into the concrete card type for registryType and
// attaches hdr, mirroring catalog's own unmarshalVariant (the catalog
// store never sees the inbound wire JSON directly; it receives an already
// materialized card.Card).
func decodeVariant(registryType card.RegistryType, hdr card.Header, body json.RawMessage) (card.Card, error) {
	if len(body) == 0 {
		body = []byte("{}")
	}
	switch registryType {
	case card.RegistryData:
		var c card.DataCard
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode data card body")
		}
		c.Hdr = hdr
		return c, nil
	case card.RegistryModel:
		var c card.ModelCard
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode model card body")
		}
		c.Hdr = hdr
		return c, nil
	case card.RegistryExperiment:
		var c card.ExperimentCard
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode experiment card body")
		}
		c.Hdr = hdr
		return c, nil
	case card.RegistryAudit:
		var c card.AuditCard
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode audit card body")
		}
		c.Hdr = hdr
		return c, nil
	case card.RegistryPrompt:
		var c card.PromptCard
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode prompt card body")
		}
		c.Hdr = hdr
		return c, nil
	case card.RegistryService:
		var c card.ServiceCard
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode service card body")
		}
		c.Hdr = hdr
		return c, nil
	default:
		return nil, opsmlerr.New(opsmlerr.InvalidCardType, "unknown registry type %q", registryType)
	}
}

// nextVersion computes the version to assign a new card per spec.md
// §4.8's version-assignment rule: an explicit, non-wildcard version is
// used as-is (conflicts surface as DuplicateVersion on insert); otherwise
// the server bumps the current max version for (space, name) by the
// requested component, defaulting to 1.0.0 for a brand-new line.
func nextVersion(ctx context.Context, s *Server, registryType card.RegistryType, space, name, requested string, bump semver.Bump) (string, error) {
	if requested != "" && requested != "*" {
		return requested, nil
	}
	versions, err := s.catalog.Versions(ctx, registryType, space, name, "")
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return semver.FirstVersion.String(), nil
	}
	latest, err := semver.Parse(versions[0])
	if err != nil {
		return "", opsmlerr.Wrap(opsmlerr.InternalErr, err, "parse latest version %q", versions[0])
	}
	return latest.Next(bump).String(), nil
}

func (s *Server) handleCardCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.RegistryType.Valid() {
		writeError(w, opsmlerr.New(opsmlerr.InvalidCardType, "unknown registry_type %q", req.RegistryType))
		return
	}

	version, err := nextVersion(r.Context(), s, req.RegistryType, req.Space, req.Name, req.Version, req.VersionRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	hdr, err := card.NewHeader(req.Space, req.Name, version)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.InternalErr, err, "generate card header"))
		return
	}
	semVer, err := semver.Parse(version)
	if err != nil {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "invalid version %q", version))
		return
	}
	hdr.Major, hdr.Minor, hdr.Patch = semVer.Major, semVer.Minor, semVer.Patch
	hdr.AppEnv = req.AppEnv
	if req.Tags != nil {
		hdr.Tags = req.Tags
	}

	crd, err := decodeVariant(req.RegistryType, hdr, req.Card)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.catalog.Insert(r.Context(), req.RegistryType, crd); err != nil {
		writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.CardInserts.WithLabelValues(string(req.RegistryType)).Inc()
	}
	s.recordAudit(r, audit.ActionCreate, req.RegistryType, hdr.UID.String())

	key, err := s.mintArtifactKey(r.Context(), hdr, req.RegistryType)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateCardResponse{
		Registered: true,
		Version:    version,
		Key:        keyToDTO(key),
	})
}

// mintArtifactKey generates a fresh DEK, wraps it with the server's master
// key, and persists the resulting artifact_key row (spec.md §4.4). When
// no keystore/master key is configured (e.g. a local single-tenant run
// with storage-side-only encryption), it returns a zero-value key with
// just the identity fields populated.
func (s *Server) mintArtifactKey(ctx context.Context, hdr card.Header, registryType card.RegistryType) (keystore.Key, error) {
	storageKey := string(registryType) + "/" + hdr.Space + "/" + hdr.Name + "/" + hdr.Version + "/" + hdr.UID.String()
	key := keystore.Key{UID: hdr.UID.String(), Space: hdr.Space, RegistryType: registryType, StorageKey: storageKey}
	if s.keys == nil || s.masterKey == nil {
		return key, nil
	}
	dek, err := keystore.GenerateDEK()
	if err != nil {
		return keystore.Key{}, opsmlerr.Wrap(opsmlerr.EncryptionErr, err, "generate dek for uid=%s", hdr.UID)
	}
	wrapped, err := s.masterKey.Wrap(dek)
	if err != nil {
		return keystore.Key{}, opsmlerr.Wrap(opsmlerr.EncryptionErr, err, "wrap dek for uid=%s", hdr.UID)
	}
	key.EncryptedKey = wrapped
	if err := s.keys.Insert(ctx, key); err != nil {
		return keystore.Key{}, err
	}
	return key, nil
}

func (s *Server) handleCardUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.RegistryType.Valid() || req.UID == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "uid and registry_type are required"))
		return
	}

	existing, err := s.catalog.Query(r.Context(), req.RegistryType, sqlstore.CardQueryArgs{UID: req.UID, Limit: 1})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(existing) == 0 {
		writeError(w, opsmlerr.New(opsmlerr.NotFound, "card uid=%s not found in registry=%s", req.UID, req.RegistryType))
		return
	}
	hdr := existing[0].Header()
	if req.Tags != nil {
		hdr.Tags = req.Tags
	}
	if req.AppEnv != "" {
		hdr.AppEnv = req.AppEnv
	}

	crd, err := decodeVariant(req.RegistryType, hdr, req.Card)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.catalog.Update(r.Context(), req.RegistryType, crd); err != nil {
		writeError(w, err)
		return
	}
	s.recordAudit(r, audit.ActionUpdate, req.RegistryType, req.UID)
	writeJSON(w, http.StatusOK, UpdateCardResponse{Updated: true})
}

func (s *Server) handleCardDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.RegistryType.Valid() || req.UID == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "uid and registry_type are required"))
		return
	}

	// Resolve the storage prefix before the catalog row is gone. This is
	// derived from the card's own header rather than a keystore lookup,
	// since mintArtifactKey only inserts a keystore row when a master key
	// is configured — the prefix must still be found in that case so the
	// card's stored bytes aren't left orphaned (spec.md §3 Invariant 1).
	var storageKey string
	existing, err := s.catalog.Query(r.Context(), req.RegistryType, sqlstore.CardQueryArgs{UID: req.UID, Limit: 1})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(existing) > 0 {
		hdr := existing[0].Header()
		storageKey = string(req.RegistryType) + "/" + hdr.Space + "/" + hdr.Name + "/" + hdr.Version + "/" + hdr.UID.String()
	}

	if _, _, err := s.catalog.Delete(r.Context(), req.RegistryType, req.UID); err != nil {
		writeError(w, err)
		return
	}
	if s.keys != nil {
		if err := s.keys.Delete(r.Context(), req.UID, req.RegistryType); err != nil && !opsmlerr.IsNotFound(err) {
			writeError(w, err)
			return
		}
	}
	if storageKey != "" && s.objects != nil {
		if err := s.removeStoredObjects(r.Context(), storageKey); err != nil {
			writeError(w, err)
			return
		}
	}
	s.recordAudit(r, audit.ActionDelete, req.RegistryType, req.UID)
	writeJSON(w, http.StatusOK, UidResponse{Exists: false})
}

// removeStoredObjects deletes every object under prefix. objstore.FileSystem
// has no native recursive remove, so this lists the prefix and removes each
// path individually, the way bundle reads enumerate a tar rather than trust
// a single directory handle.
func (s *Server) removeStoredObjects(ctx context.Context, prefix string) error {
	paths, err := s.objects.Find(ctx, prefix)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "list objects under %s", prefix)
	}
	for _, p := range paths {
		if err := s.objects.Rm(ctx, p); err != nil {
			return opsmlerr.Wrap(opsmlerr.StorageErr, err, "remove object %s", p)
		}
	}
	return nil
}

func (s *Server) handleRegistryStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	registryType := card.RegistryType(q.Get("registry_type"))
	if !registryType.Valid() {
		writeError(w, opsmlerr.New(opsmlerr.InvalidCardType, "unknown registry_type %q", registryType))
		return
	}
	args := sqlstore.StatsArgs{SearchTerm: q.Get("search_term")}
	if spaces := q.Get("spaces"); spaces != "" {
		args.Spaces = strings.Split(spaces, ",")
	}
	if tags := q.Get("tags"); tags != "" {
		args.Tags = strings.Split(tags, ",")
	}
	stats, err := s.catalog.Stats(r.Context(), registryType, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RegistryStatsResponse{Stats: stats})
}

func (s *Server) handleRegistryPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	registryType := card.RegistryType(q.Get("registry_type"))
	if !registryType.Valid() {
		writeError(w, opsmlerr.New(opsmlerr.InvalidCardType, "unknown registry_type %q", registryType))
		return
	}
	args := sqlstore.PageArgs{
		SortBy:     sqlstore.SortBy(q.Get("sort_by")),
		SearchTerm: q.Get("search_term"),
	}
	if limit := q.Get("limit"); limit != "" {
		args.Limit, _ = strconv.Atoi(limit)
	}
	if offset := q.Get("offset"); offset != "" {
		args.Offset, _ = strconv.Atoi(offset)
	}
	if spaces := q.Get("spaces"); spaces != "" {
		args.Spaces = strings.Split(spaces, ",")
	}
	if tags := q.Get("tags"); tags != "" {
		args.Tags = strings.Split(tags, ",")
	}
	page, err := s.catalog.Page(r.Context(), registryType, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummariesResponse[sqlstore.CardSummary]{Summaries: page.Items, HasMore: page.HasMore})
}

func (s *Server) handleVersionPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	registryType := card.RegistryType(q.Get("registry_type"))
	if !registryType.Valid() {
		writeError(w, opsmlerr.New(opsmlerr.InvalidCardType, "unknown registry_type %q", registryType))
		return
	}
	cursor := sqlstore.VersionCursor{Space: q.Get("space"), Name: q.Get("name")}
	if limit := q.Get("limit"); limit != "" {
		cursor.Limit, _ = strconv.Atoi(limit)
	}
	if offset := q.Get("offset"); offset != "" {
		cursor.Offset, _ = strconv.Atoi(offset)
	}
	page, err := s.catalog.VersionPage(r.Context(), registryType, cursor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummariesResponse[sqlstore.VersionSummary]{Summaries: page.Items, HasMore: page.HasMore})
}

func (s *Server) handleSpaces(w http.ResponseWriter, r *http.Request) {
	registryType := card.RegistryType(r.URL.Query().Get("registry_type"))
	if !registryType.Valid() {
		writeError(w, opsmlerr.New(opsmlerr.InvalidCardType, "unknown registry_type %q", registryType))
		return
	}
	spaces, err := s.catalog.Spaces(r.Context(), registryType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SpacesResponse{Spaces: spaces})
}

func (s *Server) handleSpaceDescriptionPut(w http.ResponseWriter, r *http.Request) {
	var req SpaceDescriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Space == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "space is required"))
		return
	}
	if err := s.catalog.SetSpaceDescription(r.Context(), req.Space, req.Description); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

const readmePathSuffix = "README.md"

func (s *Server) handleReadmePut(w http.ResponseWriter, r *http.Request) {
	var req CreateReadeMe
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.objects == nil {
		writeError(w, opsmlerr.New(opsmlerr.StorageErr, "object store not configured"))
		return
	}
	path := req.UID + "/" + readmePathSuffix
	if _, err := s.objects.Put(r.Context(), path, strings.NewReader(req.Markdown)); err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.StorageErr, err, "write readme for uid=%s", req.UID))
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleReadmeGet(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" || s.objects == nil {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "uid is required"))
		return
	}
	path := uid + "/" + readmePathSuffix
	exists, err := s.objects.Exists(r.Context(), path)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.StorageErr, err, "check readme for uid=%s", uid))
		return
	}
	if !exists {
		writeJSON(w, http.StatusOK, ReadmeResponse{Exists: false})
		return
	}
	rc, err := s.objects.Get(r.Context(), path)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.StorageErr, err, "read readme for uid=%s", uid))
		return
	}
	defer rc.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, rc); err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.StorageErr, err, "read readme body for uid=%s", uid))
		return
	}
	writeJSON(w, http.StatusOK, ReadmeResponse{Exists: true, Readme: buf.String()})
}
