package models

// EvaluationConfig is the full caller-supplied configuration for one
// evaluation: the form fields with their rules, the decision options, and
// the compliance frameworks to consult. It is immutable during a pass.
type EvaluationConfig struct {
	ID     string  `json:"id"               validate:"required"`
	Name   string  `json:"name,omitempty"`
	Fields []Field `json:"fields,omitempty" validate:"omitempty,dive"`
	// CrossFieldRules run once per form after all per-field rules and may
	// reference any field's submitted value.
	CrossFieldRules []ValidationRule `json:"cross_field_rules,omitempty" validate:"omitempty,dive"`
	Options         []DecisionOption `json:"options,omitempty"           validate:"omitempty,dive"`
	// DefaultOption is selected with confidence 0 when no option matches.
	DefaultOption string `json:"default_option,omitempty"`
	// Manual marks a human-in-the-loop decision: the selector never
	// auto-selects and the evaluation parks in waiting_approval.
	Manual bool `json:"manual,omitempty"`
	// Frameworks lists compliance framework names to check against fields
	// that declare compliance_required.
	Frameworks []string `json:"frameworks,omitempty"`
}
