package models

// RuleType identifies a field-level validation rule.
type RuleType string

const (
	RuleRequired    RuleType = "required"
	RuleMinLength   RuleType = "min_length"
	RuleMaxLength   RuleType = "max_length"
	RuleMinValue    RuleType = "min_value"
	RuleMaxValue    RuleType = "max_value"
	RulePattern     RuleType = "pattern"
	RuleEmail       RuleType = "email"
	RuleURL         RuleType = "url"
	RulePhone       RuleType = "phone"
	RuleDateRange   RuleType = "date_range"
	RuleFileType    RuleType = "file_type"
	RuleFileSize    RuleType = "file_size"
	RuleInSet       RuleType = "in_set"
	RuleUniqueItems RuleType = "unique_items"
	RuleCustom      RuleType = "custom"

	// Cross-field rules, applied once per form after per-field rules.
	RuleDependentField RuleType = "dependent_field"
	RuleBeforeField    RuleType = "before_field"
	RuleAfterField     RuleType = "after_field"
)

// Valid reports whether the rule type is a member of the closed set.
func (t RuleType) Valid() bool {
	switch t {
	case RuleRequired, RuleMinLength, RuleMaxLength, RuleMinValue,
		RuleMaxValue, RulePattern, RuleEmail, RuleURL, RulePhone,
		RuleDateRange, RuleFileType, RuleFileSize, RuleInSet,
		RuleUniqueItems, RuleCustom,
		RuleDependentField, RuleBeforeField, RuleAfterField:
		return true
	}

	return false
}

// CrossField reports whether the rule type references another field's
// submitted value and therefore runs at form level.
func (t RuleType) CrossField() bool {
	switch t {
	case RuleDependentField, RuleBeforeField, RuleAfterField:
		return true
	}

	return false
}

// Severity classifies a validation outcome. Only error severity flips
// overall validity to false; warning and info are informational.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether the severity is a member of the closed set.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return true
	}

	return false
}

// ValidationRule is one declared rule on a field. A rule whose gating
// Conditions are not met is skipped entirely, neither satisfied nor
// violated.
type ValidationRule struct {
	ID   string   `json:"id,omitempty"`
	Type RuleType `json:"type"              validate:"required"`
	// Field is the target field for cross-field rules declared at form
	// level; per-field rules leave it empty.
	Field string `json:"field,omitempty"`
	// Value is the rule configuration payload: a number for length and
	// value bounds, a pattern string, a list for in_set and file_type, a
	// {"min","max"} object for date_range, or another field id for the
	// cross-field rules.
	Value      any         `json:"value,omitempty"`
	Message    string      `json:"message,omitempty"`
	Severity   Severity    `json:"severity,omitempty"   validate:"omitempty,oneof=error warning info"`
	Conditions []Condition `json:"conditions,omitempty" validate:"omitempty,dive"`
	// CustomFunc names a validator function registered before evaluation.
	// Only consulted when Type is "custom".
	CustomFunc string `json:"custom_func,omitempty"`
}

// EffectiveSeverity returns the rule severity, defaulting to error.
func (r ValidationRule) EffectiveSeverity() Severity {
	if r.Severity == "" {
		return SeverityError
	}

	return r.Severity
}

// ValidationIssue is one structured validation outcome for one field.
type ValidationIssue struct {
	Field    string   `json:"field"`
	Rule     RuleType `json:"rule,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
