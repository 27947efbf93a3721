package catalog

import (
	"github.com/opsml/registry/card"
	"github.com/opsml/registry/opsmlerr"
)

// unmarshalVariant decodes a raw card_json blob into the concrete type for
// registryType and attaches hdr, the header scanned separately from the
// row's own columns, which replaces the header fields the JSON body also
// carries. Unknown fields in data are ignored by
// encoding/json by default, satisfying spec.md §6's "unknown fields on
// read are ignored". The actual per-variant switch lives in card.Unmarshal
// so package servicecard can reuse it for member manifests.
func unmarshalVariant(registryType card.RegistryType, hdr card.Header, data []byte) (card.Card, error) {
	c, err := card.Unmarshal(registryType, hdr, data)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.InternalErr, err, "unmarshal %s card", registryType)
	}
	return c, nil
}
