package quality

import (
	"fmt"
	"regexp"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// extract reads field from value when value is a map[string]interface{}.
// Any other shape or a missing key yields (nil, false).
func extract(value interface{}, field string) (interface{}, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := m[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// NotNullRule passes iff the named field is present and non-null.
// Rule name: "not-null:<field>".
type NotNullRule struct {
	Field    string
	Sev      core.Severity
}

func NewNotNullRule(field string, severity core.Severity) *NotNullRule {
	return &NotNullRule{Field: field, Sev: severity}
}

func (r *NotNullRule) Name() string            { return "not-null:" + r.Field }
func (r *NotNullRule) Severity() core.Severity { return r.Sev }

func (r *NotNullRule) Evaluate(value interface{}) core.QualityResult {
	_, ok := extract(value, r.Field)
	result := core.QualityResult{RuleName: r.Name(), Severity: r.Sev, FieldName: r.Field}
	if ok {
		result.Passed = true
	} else {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q is null or missing", r.Field)
	}
	return result
}

// PatternRule passes iff the named field's string value matches a compiled
// regex. A null or missing field fails. Rule name: "pattern:<field>".
type PatternRule struct {
	Field   string
	Regex   *regexp.Regexp
	Sev     core.Severity
}

func NewPatternRule(field, pattern string, severity core.Severity) (*PatternRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, core.NewFrameworkError("NewPatternRule", core.KindValidation,
			&core.FrameworkError{Message: "invalid pattern: " + err.Error(), Err: core.ErrValidationFailed})
	}
	return &PatternRule{Field: field, Regex: re, Sev: severity}, nil
}

func (r *PatternRule) Name() string            { return "pattern:" + r.Field }
func (r *PatternRule) Severity() core.Severity { return r.Sev }

func (r *PatternRule) Evaluate(value interface{}) core.QualityResult {
	result := core.QualityResult{RuleName: r.Name(), Severity: r.Sev, FieldName: r.Field}
	v, ok := extract(value, r.Field)
	if !ok {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q is null or missing", r.Field)
		return result
	}
	s := fmt.Sprintf("%v", v)
	result.ActualValue = v
	if r.Regex.MatchString(s) {
		result.Passed = true
	} else {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q value %q does not match pattern", r.Field, s)
	}
	return result
}

// RangeRule passes iff the named field's numeric value falls within
// [Min, Max] inclusive. Either bound may be nil for an open range. A
// non-comparable or missing value fails. Rule name: "range:<field>".
type RangeRule struct {
	Field string
	Min   *float64
	Max   *float64
	Sev   core.Severity
}

func NewRangeRule(field string, min, max *float64, severity core.Severity) *RangeRule {
	return &RangeRule{Field: field, Min: min, Max: max, Sev: severity}
}

func (r *RangeRule) Name() string            { return "range:" + r.Field }
func (r *RangeRule) Severity() core.Severity { return r.Sev }

func (r *RangeRule) Evaluate(value interface{}) core.QualityResult {
	result := core.QualityResult{RuleName: r.Name(), Severity: r.Sev, FieldName: r.Field}
	v, ok := extract(value, r.Field)
	if !ok {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q is null or missing", r.Field)
		return result
	}
	result.ActualValue = v

	num, ok := toFloat(v)
	if !ok {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q value %v is not comparable", r.Field, v)
		return result
	}

	if r.Min != nil && num < *r.Min {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q value %v is below minimum %v", r.Field, num, *r.Min)
		return result
	}
	if r.Max != nil && num > *r.Max {
		result.Passed = false
		result.Message = fmt.Sprintf("field %q value %v is above maximum %v", r.Field, num, *r.Max)
		return result
	}
	result.Passed = true
	return result
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
