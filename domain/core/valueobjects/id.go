package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// newPrefixedID mints a "<prefix>_<uuid>" identifier, the opaque
// identifier-with-stable-prefix shape the data model requires for every
// node and edge.
func newPrefixedID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// parsePrefixedID validates that s has the form "<prefix>_<uuid>" and
// returns it unchanged on success.
func parsePrefixedID(prefix, s string) (string, error) {
	if s == "" {
		return "", errors.New("id cannot be empty")
	}
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return "", errors.New("id missing expected prefix " + prefix + "_")
	}
	if _, err := uuid.Parse(rest); err != nil {
		return "", errors.New("id suffix must be a valid UUID")
	}
	return s, nil
}
