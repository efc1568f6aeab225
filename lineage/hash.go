package lineage

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cache"
)

// Hash renders v through cache.Canonical and returns its sha256 hex digest,
// used for LineageRecord.InputHash/OutputHash (§4.9 step 8).
func Hash(v interface{}) string {
	sum := sha256.Sum256([]byte(cache.Canonical(v)))
	return hex.EncodeToString(sum[:])
}
