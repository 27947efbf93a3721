// Package servicecard implements the composite-save/load engine for
// ServiceCard (spec.md §4.7): a service card's manifest binds aliases to
// member cards, and this package is responsible for fetching every
// member's artifact bytes into one per-alias subtree, the way bundle.Write
// and bundle.Reader.Read assemble and walk a tar of per-path module files.
package servicecard

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/catalog"
	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/sqlstore"
)

const manifestName = "card.json"

// MemberResult is one alias's load outcome. Err is non-nil only for that
// alias; a failure here never prevents other aliases from loading.
type MemberResult struct {
	Alias        string
	RegistryType card.RegistryType
	Card         card.Card
	Err          error
}

// Engine saves and loads ServiceCard composites against a catalog store
// and an object store holding each member's artifact bytes.
type Engine struct {
	catalog *catalog.Store
	objects objstore.FileSystem
}

func NewEngine(cat *catalog.Store, objects objstore.FileSystem) *Engine {
	return &Engine{catalog: cat, objects: objects}
}

// manifest is the wire shape written to card.json, for the service itself
// and for every member: Body is the card's own JSON (header fields
// included, via each variant's MarshalJSON), and Header is the copy Load
// hands to card.Unmarshal as the header to attach.
type manifest struct {
	Header card.Header     `json:"header"`
	Body   json.RawMessage `json:"body"`
}

// storagePrefix mirrors the layout httpapi.mintArtifactKey assigns a card
// at create time: registry_type/space/name/version/uid.
func storagePrefix(registryType card.RegistryType, hdr card.Header) string {
	return string(registryType) + "/" + hdr.Space + "/" + hdr.Name + "/" + hdr.Version + "/" + hdr.UID.String()
}

// aliasPrefix returns the subpath a member's artifact bytes and manifest
// live under within the given service storage prefix.
func aliasPrefix(svcPrefix, alias string) string {
	return svcPrefix + "/" + alias + "/"
}

// writeManifest marshals hdr/body into a manifest and puts it at path.
func (e *Engine) writeManifest(ctx context.Context, p string, hdr card.Header, body []byte) error {
	m := manifest{Header: hdr, Body: body}
	raw, err := json.Marshal(m)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal manifest for %s", p)
	}
	if _, err := e.objects.Put(ctx, p, bytes.NewReader(raw)); err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "write manifest %s", p)
	}
	return nil
}

// readManifest fetches and decodes the manifest at path.
func (e *Engine) readManifest(ctx context.Context, p string) (manifest, error) {
	r, err := e.objects.Get(ctx, p)
	if err != nil {
		return manifest{}, opsmlerr.Wrap(opsmlerr.StorageErr, err, "read manifest %s", p)
	}
	defer r.Close()
	var m manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return manifest{}, opsmlerr.Wrap(opsmlerr.InternalErr, err, "decode manifest %s", p)
	}
	return m, nil
}

// saveMember invokes the member's own save routine at dstPrefix, per
// spec.md §4.7: data/model copy their artifact bytes (found under their
// own storage prefix) into the alias subpath; experiment/prompt save their
// metadata as a manifest; unknown registries (audit, nested service cards)
// are skipped rather than failing the whole save.
func (e *Engine) saveMember(ctx context.Context, ref card.ServiceCardRef, member card.Card, dstPrefix string) error {
	switch ref.RegistryType {
	case card.RegistryData, card.RegistryModel:
		srcPrefix := storagePrefix(ref.RegistryType, member.Header())
		paths, err := e.objects.Find(ctx, srcPrefix)
		if err != nil {
			return opsmlerr.Wrap(opsmlerr.StorageErr, err, "list member objects under %s", srcPrefix)
		}
		for _, src := range paths {
			dst := dstPrefix + strings.TrimPrefix(src, srcPrefix+"/")
			if err := e.objects.Copy(ctx, src, dst); err != nil {
				return opsmlerr.Wrap(opsmlerr.StorageErr, err, "copy %s to %s", src, dst)
			}
		}
		body, err := json.Marshal(member)
		if err != nil {
			return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal member %s", ref.Alias)
		}
		return e.writeManifest(ctx, dstPrefix+manifestName, member.Header(), body)
	case card.RegistryExperiment, card.RegistryPrompt:
		body, err := json.Marshal(member)
		if err != nil {
			return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal member %s", ref.Alias)
		}
		return e.writeManifest(ctx, dstPrefix+manifestName, member.Header(), body)
	default:
		return nil
	}
}

// Save persists svc itself (the manifest) via the catalog, having already
// validated that every ServiceCardRef names an existing card, then writes
// each member's artifact into its own alias subpath under the service's
// storage prefix, and finally the service's own manifest at the prefix
// root (spec.md §4.7's save contract).
func (e *Engine) Save(ctx context.Context, svc card.ServiceCard) error {
	members := make([]card.Card, len(svc.Cards))
	for i, ref := range svc.Cards {
		cards, err := e.catalog.Query(ctx, ref.RegistryType, sqlstore.CardQueryArgs{UID: ref.UID, Limit: 1})
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			return opsmlerr.New(opsmlerr.InvalidRequest, "service card member %s (%s) does not exist", ref.Alias, ref.UID)
		}
		members[i] = cards[0]
	}

	if err := e.catalog.Insert(ctx, card.RegistryService, svc); err != nil {
		return err
	}

	if e.objects == nil {
		return nil
	}

	svcPrefix := storagePrefix(card.RegistryService, svc.Hdr)
	for i, ref := range svc.Cards {
		dstPrefix := aliasPrefix(svcPrefix, ref.Alias)
		if err := e.saveMember(ctx, ref, members[i], dstPrefix); err != nil {
			return err
		}
	}

	body, err := json.Marshal(svc)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal service card")
	}
	return e.writeManifest(ctx, svcPrefix+"/"+manifestName, svc.Hdr, body)
}

// Load fetches every member named in svc.Cards by reading its saved
// {alias}/card.json manifest, tolerating individual member failures: a
// dangling or deleted reference, or one never saved with an object store
// configured, is reported in that member's MemberResult.Err without
// aborting the other members' loads, matching spec.md §9's weak-reference
// tolerance.
func (e *Engine) Load(ctx context.Context, svc card.ServiceCard) []MemberResult {
	results := make([]MemberResult, 0, len(svc.Cards))
	svcPrefix := storagePrefix(card.RegistryService, svc.Hdr)
	for _, ref := range svc.Cards {
		result := MemberResult{Alias: ref.Alias, RegistryType: ref.RegistryType}
		if e.objects == nil {
			result.Err = opsmlerr.New(opsmlerr.InvalidRequest, "no object store configured to load member %s", ref.Alias)
			results = append(results, result)
			continue
		}
		manifestPath := aliasPrefix(svcPrefix, ref.Alias) + manifestName
		m, err := e.readManifest(ctx, manifestPath)
		if err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}
		c, err := card.Unmarshal(ref.RegistryType, m.Header, m.Body)
		if err != nil {
			result.Err = err
		} else {
			result.Card = c
		}
		results = append(results, result)
	}
	return results
}

// AliasPath returns the storage-key subpath a member's artifact bytes and
// manifest live under within the service card's own storage prefix, e.g.
// "<service-prefix>/<alias>/".
func AliasPath(svcPrefix, alias string) string {
	return aliasPrefix(svcPrefix, alias)
}
