package importer

import (
	"errors"
	"strings"
)

// ErrInvalidLinkedInURL is returned when normalization yields nothing usable.
var ErrInvalidLinkedInURL = errors.New("invalid linkedin url")

// NormalizeLinkedInURL canonicalizes a LinkedIn profile URL for use as a
// deduplication key: lowercase, query string stripped, any "/overlay/…"
// suffix stripped, trailing slash removed. Idempotent.
func NormalizeLinkedInURL(raw string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return "", ErrInvalidLinkedInURL
	}

	if i := strings.Index(u, "?"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "/overlay/"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")

	if u == "" {
		return "", ErrInvalidLinkedInURL
	}
	return u, nil
}
