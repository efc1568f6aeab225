// Package quality implements the data-quality engine (§4.4): a named rule
// set evaluated under FAIL_FAST or COLLECT_ALL, producing a
// core.QualityReport and publishing a quality.evaluated event.
package quality

import (
	"context"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Strategy selects how the engine walks the rule set.
type Strategy string

const (
	// FailFast stops at the first CRITICAL failure; earlier non-CRITICAL
	// failures remain in the report.
	FailFast Strategy = "FAIL_FAST"
	// CollectAll evaluates every rule regardless of outcome.
	CollectAll Strategy = "COLLECT_ALL"
)

// Rule is a deterministic predicate producing a core.QualityResult.
type Rule interface {
	Name() string
	Severity() core.Severity
	Evaluate(value interface{}) core.QualityResult
}

// Engine evaluates a Rule set against a target value.
type Engine struct {
	publisher core.EventPublisher
	logger    core.Logger
}

// NewEngine builds a quality Engine. publisher may be nil (no event is
// published in that case).
func NewEngine(publisher core.EventPublisher, logger core.Logger) *Engine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("quality")
	}
	return &Engine{publisher: publisher, logger: logger}
}

// Evaluate runs rules against value under strategy and returns the report.
func (e *Engine) Evaluate(ctx context.Context, rules []Rule, value interface{}, strategy Strategy) core.QualityReport {
	report := core.QualityReport{
		TotalRules: len(rules),
		Timestamp:  time.Now(),
		Results:    make([]core.QualityResult, 0, len(rules)),
	}

	for _, rule := range rules {
		result := rule.Evaluate(value)
		report.Results = append(report.Results, result)
		if result.Passed {
			report.PassedRules++
		} else {
			report.FailedRules++
		}

		if strategy == FailFast && !result.Passed && result.Severity == core.SeverityCritical {
			break
		}
	}

	report.Passed = true
	for _, r := range report.Results {
		if !r.Passed && r.Severity == core.SeverityCritical {
			report.Passed = false
			break
		}
	}

	if e.publisher != nil {
		e.publisher.Publish(ctx, core.TopicQualityEvaluated, report)
	}
	e.logger.Debug("quality evaluated", map[string]interface{}{
		"strategy": string(strategy), "total": report.TotalRules, "passed": report.Passed,
	})

	return report
}
