package models

// LogicKind selects how multiple condition results combine into one
// pass/fail outcome plus a numeric score.
type LogicKind string

const (
	LogicAnd      LogicKind = "and"      // All conditions true
	LogicOr       LogicKind = "or"       // Any condition true
	LogicNot      LogicKind = "not"      // Negate the first condition only
	LogicXor      LogicKind = "xor"      // Exactly one condition true
	LogicWeighted LogicKind = "weighted" // Weight ratio compared against a threshold
	LogicCustom   LogicKind = "custom"   // Registered combinator or CEL expression
)

// Valid reports whether the kind is a member of the closed set.
func (k LogicKind) Valid() bool {
	switch k {
	case LogicAnd, LogicOr, LogicNot, LogicXor, LogicWeighted, LogicCustom:
		return true
	}

	return false
}

// LogicSpec describes how a set of condition results is combined.
//
// For the weighted kind, the score is the weight ratio of passing conditions
// and the outcome passes when score >= Threshold (default 1.0, meaning all
// weight is required). A weighted set whose total weight is zero carries no
// requirement: it scores 1 and passes at any threshold, the same vacuous
// truth an empty AND set has. For the custom kind, either Combinator names a
// combinator function registered before evaluation, or Expression carries a
// CEL expression evaluated against the named condition-result map only; the
// expression has no access to ambient state.
type LogicSpec struct {
	Kind       LogicKind `json:"kind"                 validate:"required"`
	Threshold  *float64  `json:"threshold,omitempty"  validate:"omitempty,gte=0,lte=1"`
	Combinator string    `json:"combinator,omitempty"`
	Expression string    `json:"expression,omitempty"`
}

// EffectiveThreshold returns the weighted threshold, defaulting to 1.0.
func (s LogicSpec) EffectiveThreshold() float64 {
	if s.Threshold == nil {
		return 1.0
	}

	return *s.Threshold
}

// DefaultLogic is the combinator applied when a decision option does not
// declare its own: plain AND semantics.
func DefaultLogic() LogicSpec {
	return LogicSpec{Kind: LogicAnd}
}
