package models

import "time"

// ComplianceStatus is the per-framework verdict.
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
	// ComplianceExempt is returned for frameworks with no registered
	// checker; an absent framework must not block execution.
	ComplianceExempt ComplianceStatus = "exempt"
)

// FieldComplianceResult is the outcome for one field under one framework.
type FieldComplianceResult struct {
	FieldID   string `json:"field_id"`
	Compliant bool   `json:"compliant"`
	Message   string `json:"message,omitempty"`
}

// ComplianceVerdict is the outcome of checking one framework against the
// fields that declare compliance_required.
type ComplianceVerdict struct {
	Framework string                  `json:"framework"`
	Status    ComplianceStatus        `json:"status"`
	Message   string                  `json:"message,omitempty"`
	Fields    []FieldComplianceResult `json:"fields,omitempty"`
}

// DecisionOutcome is the selected option with its rationale. Pending marks a
// manually-gated decision awaiting a human; no option is auto-selected in
// that mode.
type DecisionOutcome struct {
	OptionID string `json:"option_id,omitempty"`
	// Confidence is in [0,1]: the combinator score of the winning option,
	// or 0 when the configured default was used.
	Confidence float64  `json:"confidence"`
	Pending    bool     `json:"pending,omitempty"`
	NextStep   string   `json:"next_step,omitempty"`
	Trace      []string `json:"trace,omitempty"`
}

// EvaluationResult is the single object returned from a top-level evaluation
// call. Every failure mode is representable here; nothing below the entry
// point escapes as a panic. The trail is frozen once the result is returned.
type EvaluationResult struct {
	ExecutionID string              `json:"execution_id"`
	ConfigID    string              `json:"config_id,omitempty"`
	Status      ExecutionState      `json:"status"`
	Valid       bool                `json:"valid"`
	Errors      []ValidationIssue   `json:"errors,omitempty"`
	Warnings    []ValidationIssue   `json:"warnings,omitempty"`
	Compliance  []ComplianceVerdict `json:"compliance,omitempty"`
	Decision    *DecisionOutcome    `json:"decision,omitempty"`
	Trail       []AuditEntry        `json:"trail,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
}
