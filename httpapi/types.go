package httpapi

import (
	"encoding/json"
	"time"

	"github.com/opsml/registry/card"
	"github.com/opsml/registry/semver"
	"github.com/opsml/registry/sqlstore"
)

// UidRequest narrows a lookup by uid, per spec.md §6.
type UidRequest struct {
	UID          string            `json:"uid"`
	RegistryType card.RegistryType `json:"registry_type"`
}

// UidResponse reports whether a uid currently resolves to a row.
type UidResponse struct {
	Exists bool `json:"exists"`
}

// CreateCardRequest is the body of POST /card/create. Card carries the
// variant-specific fields the caller wants persisted; Header fields other
// than space/name/version/tags are server-assigned.
type CreateCardRequest struct {
	RegistryType   card.RegistryType `json:"registry_type"`
	Space          string            `json:"space"`
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	VersionRequest semver.Bump       `json:"version_request"`
	Tags           []string          `json:"tags,omitempty"`
	AppEnv         string            `json:"app_env,omitempty"`
	Card           json.RawMessage   `json:"card"`
}

// CreateCardResponse is the result of a successful create.
type CreateCardResponse struct {
	Registered bool          `json:"registered"`
	Version    string        `json:"version"`
	Key        keystoreKeyDTO `json:"key"`
}

// keystoreKeyDTO is the wire shape of a keystore.Key: EncryptedKey is
// base64-encoded by encoding/json's []byte handling.
type keystoreKeyDTO struct {
	UID          string            `json:"uid"`
	Space        string            `json:"space"`
	RegistryType card.RegistryType `json:"registry_type"`
	EncryptedKey []byte            `json:"encrypted_key"`
	StorageKey   string            `json:"storage_key"`
}

// UpdateCardRequest is the body of POST /card/update.
type UpdateCardRequest struct {
	RegistryType card.RegistryType `json:"registry_type"`
	UID          string            `json:"uid"`
	Tags         []string          `json:"tags,omitempty"`
	AppEnv       string            `json:"app_env,omitempty"`
	Card         json.RawMessage   `json:"card"`
}

// UpdateCardResponse reports whether the update applied.
type UpdateCardResponse struct {
	Updated bool `json:"updated"`
}

// DeleteCardRequest is the body of DELETE /card/delete.
type DeleteCardRequest struct {
	UID          string            `json:"uid"`
	Space        string            `json:"space"`
	RegistryType card.RegistryType `json:"registry_type"`
}

// RegistryStatsRequest narrows GET /card/registry/stats.
type RegistryStatsRequest struct {
	RegistryType card.RegistryType `json:"registry_type"`
	SearchTerm   string            `json:"search_term,omitempty"`
	Spaces       []string          `json:"spaces,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

// RegistryStatsResponse wraps the stats payload.
type RegistryStatsResponse struct {
	Stats sqlstore.Stats `json:"stats"`
}

// QueryPageRequest narrows GET /card/registry/page.
type QueryPageRequest struct {
	RegistryType card.RegistryType `json:"registry_type"`
	SortBy       sqlstore.SortBy   `json:"sort_by,omitempty"`
	Limit        int               `json:"limit,omitempty"`
	Offset       int               `json:"offset,omitempty"`
	SearchTerm   string            `json:"search_term,omitempty"`
	Spaces       []string          `json:"spaces,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
}

// SummariesResponse wraps a page of summaries of type T.
type SummariesResponse[T any] struct {
	Summaries []T  `json:"summaries"`
	HasMore   bool `json:"has_more"`
}

// VersionPageRequest narrows GET /card/registry/version/page.
type VersionPageRequest struct {
	RegistryType card.RegistryType `json:"registry_type"`
	Space        string            `json:"space"`
	Name         string            `json:"name"`
	Offset       int               `json:"offset,omitempty"`
	Limit        int               `json:"limit,omitempty"`
}

// SpaceRequest narrows GET /card/spaces.
type SpaceRequest struct {
	RegistryType card.RegistryType `json:"registry_type"`
}

// SpacesResponse wraps a get_spaces listing: each space's description and
// its materialized card count for the requested registry.
type SpacesResponse struct {
	Spaces []sqlstore.SpaceStats `json:"spaces"`
}

// SpaceDescriptionRequest is the body of POST /card/space/description.
type SpaceDescriptionRequest struct {
	Space       string `json:"space"`
	Description string `json:"description"`
}

// CreateReadeMe is the body of POST /card/readme. The misspelling matches
// the wire contract this handler was asked to serve.
type CreateReadeMe struct {
	UID          string            `json:"uid"`
	RegistryType card.RegistryType `json:"registry_type"`
	Markdown     string            `json:"markdown"`
}

// ReadmeResponse is the result of GET /card/readme.
type ReadmeResponse struct {
	Exists bool   `json:"exists"`
	Readme string `json:"readme,omitempty"`
}

// okResponse is the generic {ok: true} acknowledgement spec.md §6 uses for
// several write endpoints.
type okResponse struct {
	OK bool `json:"ok"`
}

// tokenResponse wraps a signed token, for both login and refresh.
type tokenResponse struct {
	Token string `json:"token"`
}

// uploadInitRequest is the body of POST /upload/start: the caller names
// the storage path it wants a session opened against.
type uploadInitRequest struct {
	Path string `json:"path"`
}

type uploadInitResponse struct {
	SessionID string `json:"session_id"`
}

// uploadStatusResponse reports a chunked upload's state, returned by the
// chunk, complete and status endpoints.
type uploadStatusResponse struct {
	State        string `json:"state"`
	LastOKIndex  int    `json:"last_ok_index"`
}

// cardQueryParams mirrors sqlstore.CardQueryArgs for GET query-string
// decoding (§6's CardQueryArgs input to /card/list, /card/load).
type cardQueryParams struct {
	UID              string
	Space            string
	Name             string
	Version          string
	VersionSpecifier string
	RegistryType     card.RegistryType
	Tags             []string
	Limit            int
	SortByTimestamp  bool
	MaxDate          *time.Time
}

func (p cardQueryParams) toArgs() sqlstore.CardQueryArgs {
	return sqlstore.CardQueryArgs{
		UID:              p.UID,
		Space:            p.Space,
		Name:             p.Name,
		Version:          p.Version,
		VersionSpecifier: p.VersionSpecifier,
		MaxDate:          p.MaxDate,
		Tags:             p.Tags,
		Limit:            p.Limit,
		SortByTimestamp:  p.SortByTimestamp,
	}
}
