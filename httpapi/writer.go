// Package httpapi implements the registry API surface (spec.md §4.8, §6):
// thin HTTP handlers adapting the wire JSON shapes to the catalog,
// keystore, upload, servicecard, telemetry, and auth packages. Routing
// follows the teacher's gorilla/mux conventions (see server/server.go's
// registerHandler); error-to-status mapping follows the teacher's
// server/writer package, narrowed to opsmlerr's taxonomy.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsml/registry/opsmlerr"
)

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON shape returned for every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps err to an HTTP status via opsmlerr.HTTPStatus and writes
// the corresponding errorResponse. Errors that aren't *opsmlerr.Error are
// treated as internal.
func writeError(w http.ResponseWriter, err error) {
	code := opsmlerr.InternalErr
	var oe *opsmlerr.Error
	if errors.As(err, &oe) {
		code = oe.Code
	}
	writeJSON(w, opsmlerr.HTTPStatus(code), errorResponse{Code: code.String(), Message: err.Error()})
}

// decodeJSON decodes the request body into v, returning an InvalidRequest
// error on malformed JSON.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return opsmlerr.Wrap(opsmlerr.InvalidRequest, err, "decode request body")
	}
	return nil
}
