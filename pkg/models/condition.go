// Package models defines the core domain models for rule evaluation and auditing.
package models

// Operator identifies a single comparison applied to one context field.
// The set is closed: configurations carrying an operator outside this list
// are rejected as configuration errors, never treated as a silent pass.
type Operator string

const (
	OperatorEquals         Operator = "equals"
	OperatorNotEquals      Operator = "not_equals"
	OperatorGreaterThan    Operator = "greater_than"
	OperatorLessThan       Operator = "less_than"
	OperatorGreaterOrEqual Operator = "greater_or_equal"
	OperatorLessOrEqual    Operator = "less_or_equal"
	OperatorContains       Operator = "contains"
	OperatorNotContains    Operator = "not_contains"
	OperatorStartsWith     Operator = "starts_with"
	OperatorEndsWith       Operator = "ends_with"
	OperatorRegex          Operator = "regex"
	OperatorExists         Operator = "exists"
	OperatorNotExists      Operator = "not_exists"
	OperatorInList         Operator = "in_list"
	OperatorNotInList      Operator = "not_in_list"
	OperatorCustom         Operator = "custom"
)

// Operators returns every member of the closed operator set in a stable order.
func Operators() []Operator {
	return []Operator{
		OperatorEquals,
		OperatorNotEquals,
		OperatorGreaterThan,
		OperatorLessThan,
		OperatorGreaterOrEqual,
		OperatorLessOrEqual,
		OperatorContains,
		OperatorNotContains,
		OperatorStartsWith,
		OperatorEndsWith,
		OperatorRegex,
		OperatorExists,
		OperatorNotExists,
		OperatorInList,
		OperatorNotInList,
		OperatorCustom,
	}
}

// Valid reports whether the operator is a member of the closed set.
func (o Operator) Valid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEqual, OperatorLessOrEqual,
		OperatorContains, OperatorNotContains,
		OperatorStartsWith, OperatorEndsWith,
		OperatorRegex, OperatorExists, OperatorNotExists,
		OperatorInList, OperatorNotInList, OperatorCustom:
		return true
	}

	return false
}

// Condition is a single testable comparison against one field of the input
// context. Field is a dot-addressable path; missing intermediate keys resolve
// to nil rather than raising.
type Condition struct {
	ID         string   `json:"id"                    validate:"required"`
	Field      string   `json:"field"                 validate:"required"`
	Operator   Operator `json:"operator"              validate:"required"`
	Value      any      `json:"value,omitempty"`
	Weight     *float64 `json:"weight,omitempty"      validate:"omitempty,gte=0"`
	Required   bool     `json:"required,omitempty"`
	IgnoreCase bool     `json:"ignore_case,omitempty"`
	// CustomFunc names a condition function registered before evaluation.
	// Only consulted when Operator is "custom".
	CustomFunc string `json:"custom_func,omitempty"`
}

// EffectiveWeight returns the condition weight, defaulting to 1 when unset.
func (c Condition) EffectiveWeight() float64 {
	if c.Weight == nil {
		return 1
	}

	return *c.Weight
}
