package enrichment

import (
	"encoding/json"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// encodeCachedResponse/decodeCachedResponse (de)serialize a cached
// EnrichmentResponse for storage behind core.CacheAdapter, which only deals
// in []byte. DurationMillis is overwritten by the caller on a cache hit, so
// it is not meaningful in the stored bytes.
func encodeCachedResponse(resp core.EnrichmentResponse) ([]byte, bool) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, false
	}
	return data, true
}

func decodeCachedResponse(raw []byte) (core.EnrichmentResponse, bool) {
	var resp core.EnrichmentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return core.EnrichmentResponse{}, false
	}
	return resp, true
}
