package models

import "time"

// Audit action names used by the engine. Callers may append entries with
// their own action names alongside these.
const (
	AuditEvaluationStarted  = "evaluation_started"
	AuditEvaluationFinished = "evaluation_finished"
	AuditFieldValidated     = "field_validated"
	AuditFieldSkipped       = "field_skipped"
	AuditComplianceChecked  = "compliance_checked"
	AuditOptionEvaluated    = "option_evaluated"
	AuditDecisionMade       = "decision_made"
	AuditDecisionPending    = "decision_pending"
	AuditApprovalGranted    = "approval_granted"
	AuditApprovalRejected   = "approval_rejected"
	AuditRetryRequested     = "retry_requested"
	AuditErrorOccurred      = "error_occurred"
	AuditCancelled          = "evaluation_cancelled"
)

// AuditEntry is one timestamped record of something that happened during an
// evaluation. Entries are append-only: once recorded they are never edited
// or removed, which is the integrity property compliance review depends on.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
}
