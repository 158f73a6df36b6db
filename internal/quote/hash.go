package quote

import (
	"crypto/sha256"
	"encoding/hex"

	json "github.com/goccy/go-json"
)

// Hash returns a stable digest of a configuration snapshot. It keys the
// calculation coalescing and the staleness guard: two configurations price
// identically exactly when their hashes match.
func Hash(cfg Configuration) string {
	// Struct field order is fixed, so marshaling is canonical.
	raw, err := json.Marshal(cfg)
	if err != nil {
		// Configuration contains only marshalable field types.
		panic("marshal configuration for hashing: " + err.Error())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
