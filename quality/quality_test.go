package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

func floatPtr(f float64) *float64 { return &f }

// TestEngine_FailFastScenario reproduces spec.md scenario S5.
func TestEngine_FailFastScenario(t *testing.T) {
	notNull := NewNotNullRule("id", core.SeverityCritical)
	pattern, err := NewPatternRule("email", `^[^@]+@[^@]+\.[^@]+$`, core.SeverityWarning)
	require.NoError(t, err)
	rangeRule := NewRangeRule("age", floatPtr(0), floatPtr(150), core.SeverityCritical)

	value := map[string]interface{}{"id": nil, "email": "bad", "age": 200}

	e := NewEngine(nil, nil)
	report := e.Evaluate(context.Background(), []Rule{notNull, pattern, rangeRule}, value, FailFast)

	require.Len(t, report.Results, 1)
	require.False(t, report.Passed)
	require.Equal(t, core.SeverityCritical, report.Results[0].Severity)
	require.Equal(t, "not-null:id", report.Results[0].RuleName)
}

func TestEngine_CollectAll_EvaluatesEveryRule(t *testing.T) {
	rules := []Rule{
		NewNotNullRule("id", core.SeverityCritical),
		NewNotNullRule("name", core.SeverityWarning),
		NewNotNullRule("score", core.SeverityInfo),
	}
	value := map[string]interface{}{"id": "1"}

	e := NewEngine(nil, nil)
	report := e.Evaluate(context.Background(), rules, value, CollectAll)

	require.Len(t, report.Results, len(rules))
	require.Equal(t, 1, report.PassedRules)
	require.Equal(t, 2, report.FailedRules)
}

func TestEngine_PassedIffNoCriticalFailure(t *testing.T) {
	rules := []Rule{
		NewNotNullRule("a", core.SeverityWarning),
		NewNotNullRule("b", core.SeverityCritical),
	}
	value := map[string]interface{}{"b": "x"}

	e := NewEngine(nil, nil)
	report := e.Evaluate(context.Background(), rules, value, CollectAll)
	require.True(t, report.Passed, "no CRITICAL failure should leave the report passed")
}
