package enrichment

import "github.com/fireflyframework/fireflyframework-starter-data-sub000/core"

// ApplyStrategy merges source (caller data) and target (provider-mapped
// data) per the §4.9 strategy rules:
//
//   - ENHANCE: insert target's value for any key not already set to a
//     non-null value in source. Source wins on conflict.
//   - MERGE: union both maps; target wins on conflict, but a non-null value
//     always wins over a null one regardless of side.
//   - REPLACE / RAW: result is target verbatim; source is discarded. The
//     two strategies are semantically identical (spec.md §9 Open
//     Question); REPLACE and RAW are preserved as distinct enum values
//     purely to record caller intent in audit trails.
//
// Returns the merged map and the count of keys whose resulting value
// differs from source's original value (fieldsEnriched, §8).
func ApplyStrategy(strategy core.Strategy, source, target map[string]interface{}) (map[string]interface{}, int) {
	switch strategy {
	case core.StrategyReplace, core.StrategyRaw:
		result := make(map[string]interface{}, len(target))
		for k, v := range target {
			result[k] = v
		}
		return result, countDiff(source, result)

	case core.StrategyMerge:
		result := make(map[string]interface{}, len(source)+len(target))
		for k, v := range source {
			result[k] = v
		}
		for k, v := range target {
			if existing, ok := result[k]; !ok || existing == nil || v != nil {
				result[k] = v
			}
		}
		return result, countDiff(source, result)

	case core.StrategyEnhance:
		fallthrough
	default:
		result := make(map[string]interface{}, len(source)+len(target))
		for k, v := range source {
			result[k] = v
		}
		for k, v := range target {
			if existing, ok := result[k]; !ok || existing == nil {
				result[k] = v
			}
		}
		return result, countDiff(source, result)
	}
}

// countDiff counts keys whose value in result differs from source's value
// for that key (absence counts as differing from any present value).
func countDiff(source, result map[string]interface{}) int {
	count := 0
	for k, v := range result {
		sv, ok := source[k]
		if !ok || sv != v {
			count++
		}
	}
	return count
}
