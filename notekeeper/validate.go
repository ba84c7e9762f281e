package notekeeper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Goldenmist00/WebMark/idgen"
)

// validateURL accepts only absolute http/https URLs. Notes are keyed by
// URL, so a malformed key would orphan the note forever.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: bad url: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https, got %q", ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidInput)
	}
	return nil
}

// validateNoteID rejects identifiers that cannot be note IDs — the
// "note_" prefix over a UUID — before any storage round trip.
func validateNoteID(id string) error {
	raw, ok := strings.CutPrefix(id, "note_")
	if !ok {
		return fmt.Errorf("%w: bad note id %q", ErrInvalidInput, id)
	}
	if _, err := idgen.Parse(raw); err != nil {
		return fmt.Errorf("%w: bad note id %q", ErrInvalidInput, id)
	}
	return nil
}

// validateSelection rejects selections that are empty after trimming.
// Whitespace-only anchors can never be re-found reliably.
func validateSelection(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNoSelection
	}
	return nil
}
