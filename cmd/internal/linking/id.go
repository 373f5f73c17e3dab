package linking

import (
	"time"

	"walink/cmd/identity/ids"
)

// NewSessionID returns "<kind>_<ULID>", e.g. "pair_01JA...".
// The ULID doubles as the credential store key, so it must stay path-safe.
func NewSessionID(kind Kind, now time.Time) (string, error) {
	id, err := ids.NewULID(now)
	if err != nil {
		return "", err
	}
	return kind.String() + "_" + id, nil
}
