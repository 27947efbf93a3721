package sqlstore

import (
	"strings"

	"github.com/google/uuid"
)

// uuidParse parses a stored uid column back into a uuid.UUID, tolerating a
// zero value on failure so a malformed row doesn't abort a whole page scan.
func uuidParse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// fallbackDuplicateKeyDetector recognizes the common substrings the three
// backends emit for a unique-constraint violation when a dialect package
// does not supply a typed detector. Dialect packages should prefer a typed
// errors.As check against their driver's error type; this exists so
// BaseClient has a safe default.
func fallbackDuplicateKeyDetector(err error) bool {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate"):
		return true
	case strings.Contains(msg, "unique constraint"):
		return true
	case strings.Contains(msg, "23505"):
		return true
	case strings.Contains(msg, "1062"):
		return true
	default:
		return false
	}
}
