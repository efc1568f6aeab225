// Package cache implements the optional CacheAdapter port (§4.3) plus the
// canonical keying scheme shared by the enrichment pipeline and the
// operation dispatcher.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Canonical renders v as lexicographically-keyed JSON with stable array
// order, so two semantically-equal maps always hash identically regardless
// of insertion order.
func Canonical(v interface{}) string {
	data, err := json.Marshal(canonicalize(v))
	if err != nil {
		return ""
	}
	return string(data)
}

func canonicalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make([]canonicalEntry, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, canonicalEntry{Key: k, Value: canonicalize(val[k])})
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return val
	}
}

// canonicalEntry marshals as a fixed two-field object so Go's map
// nondeterminism never leaks into the JSON byte stream.
type canonicalEntry struct {
	Key   string      `json:"k"`
	Value interface{} `json:"v"`
}

// EnrichmentKey builds the §4.3 cache key:
// sha256("enr:" + type + ":" + tenantIdOrGlobal + ":" + canonical(sourceData) + ":" + canonical(parameters) + ":" + strategy).
func EnrichmentKey(req core.EnrichmentRequest) string {
	tenant := req.TenantID
	if tenant == "" {
		tenant = core.GlobalTenantID
	}
	raw := "enr:" + req.Type + ":" + tenant + ":" +
		Canonical(req.SourceData) + ":" + Canonical(req.Parameters) + ":" + string(req.Strategy)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// OperationKey extends EnrichmentKey-style keying with the operationId and
// canonical request body, for the operation dispatcher's optional cache
// (§4.12).
func OperationKey(enricherType, tenantID, operationID string, request interface{}) string {
	tenant := tenantID
	if tenant == "" {
		tenant = core.GlobalTenantID
	}
	raw := "op:" + enricherType + ":" + tenant + ":" + operationID + ":" + Canonical(request)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
