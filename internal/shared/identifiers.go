package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID indicates a malformed document identifier. Malformed IDs are
// rejected before any storage lookup.
var ErrInvalidID = errors.New("invalid identifier")

// ValidateID checks that id is a canonical RFC 4122 UUID (version 1-5,
// RFC variant).
func ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	// uuid.Parse accepts urn: and braced forms; require the canonical one.
	if parsed.String() != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if parsed.Variant() != uuid.RFC4122 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if v := parsed.Version(); v < 1 || v > 5 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// FilterValidIDs splits ids into canonical UUIDs and rejects. Order is
// preserved for stable downstream processing.
func FilterValidIDs(ids []string) (valid []string, rejected []string) {
	for _, id := range ids {
		if ValidateID(id) == nil {
			valid = append(valid, id)
		} else {
			rejected = append(rejected, id)
		}
	}
	return valid, rejected
}
