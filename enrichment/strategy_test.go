package enrichment

import (
	"testing"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/stretchr/testify/require"
)

// TestApplyStrategy_Enhance reproduces spec.md scenario S1: source wins on
// conflict, target fills in the null/missing fields.
func TestApplyStrategy_Enhance(t *testing.T) {
	source := map[string]interface{}{
		"companyId":   "12345",
		"name":        "Acme Corp",
		"creditScore": nil,
		"rating":      nil,
	}
	target := map[string]interface{}{
		"name":        "ACME CORPORATION",
		"creditScore": 750,
		"rating":      "A",
	}

	merged, fieldsEnriched := ApplyStrategy(core.StrategyEnhance, source, target)

	require.Equal(t, "12345", merged["companyId"])
	require.Equal(t, "Acme Corp", merged["name"], "source wins on conflict under ENHANCE")
	require.Equal(t, 750, merged["creditScore"])
	require.Equal(t, "A", merged["rating"])
	require.Equal(t, 2, fieldsEnriched)
}

// TestApplyStrategy_Merge reproduces spec.md scenario S2: target wins on
// conflict, but a non-null value always beats a null one regardless of side.
func TestApplyStrategy_Merge(t *testing.T) {
	source := map[string]interface{}{
		"companyId":   "12345",
		"name":        "Acme Corp",
		"creditScore": nil,
		"rating":      "B",
	}
	target := map[string]interface{}{
		"name":        "ACME CORPORATION",
		"creditScore": 750,
		"rating":      nil,
	}

	merged, fieldsEnriched := ApplyStrategy(core.StrategyMerge, source, target)

	require.Equal(t, "12345", merged["companyId"])
	require.Equal(t, "ACME CORPORATION", merged["name"], "target wins on conflict under MERGE")
	require.Equal(t, 750, merged["creditScore"])
	require.Equal(t, "B", merged["rating"], "non-null source beats null target")
	require.Equal(t, 2, fieldsEnriched, "only name and creditScore differ from source")
}

func TestApplyStrategy_ReplaceAndRawAreIdentical(t *testing.T) {
	source := map[string]interface{}{"a": 1, "b": 2}
	target := map[string]interface{}{"a": 9}

	replaced, replacedCount := ApplyStrategy(core.StrategyReplace, source, target)
	raw, rawCount := ApplyStrategy(core.StrategyRaw, source, target)

	require.Equal(t, replaced, raw)
	require.Equal(t, replacedCount, rawCount)
	require.Equal(t, map[string]interface{}{"a": 9}, replaced)
}
