package upload

import (
	"errors"
	"net/http"
	"time"

	"github.com/opsml/registry/util"
)

// httpStatusError is implemented by backend errors that carry an HTTP
// response status, letting uploadPartWithRetry distinguish transient 5xx
// failures from fatal 4xx ones without depending on any specific SDK's
// error type.
type httpStatusError interface {
	StatusCode() int
}

func isRetryable(err error) bool {
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode() >= http.StatusInternalServerError
	}
	// Unclassified errors (e.g. a dropped connection) are assumed
	// transient, matching how OPA's downloader retries on any transport
	// failure rather than only on specific status codes.
	return true
}

func backoffDelay(retries int) time.Duration {
	return util.DefaultBackoff(float64(minRetryDelay), float64(maxRetryDelay), retries)
}

// sleep is a package-level var so tests can stub it out and run retry
// loops without actually waiting.
var sleep = time.Sleep

const (
	minRetryDelay = 100 * time.Millisecond
	maxRetryDelay = 2 * time.Second
)
