package models

// DecisionOption is a named candidate outcome gated by its own condition set
// and priority. Among all options whose conditions evaluate true, the one
// with the highest priority wins; ties break by declaration order, first
// wins. The tie-break is deterministic and part of the contract.
type DecisionOption struct {
	ID         string      `json:"id"                   validate:"required"`
	Name       string      `json:"name,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" validate:"omitempty,dive"`
	// Logic overrides the combinator for this option; nil means AND.
	Logic    *LogicSpec `json:"logic,omitempty"`
	Priority int        `json:"priority,omitempty"`
	// NextStep is an opaque reference handed back to the caller with the
	// selection; the engine never interprets it.
	NextStep string `json:"next_step,omitempty"`
}
