// Package events defines event types for evaluation lifecycle and audit
// notifications.
package events

import (
	"time"

	"github.com/rulekit/rulekit/pkg/models"
)

type EventType string

// Topic carries every engine event on the bus.
const Topic = "rulekit.events"

const EventTypeMetadataKey = "event_type"
const EventKeyMetadataKey = "key"

const (
	EvaluationStartedEvent   EventType = "evaluation.started"
	EvaluationCompletedEvent EventType = "evaluation.completed"
	EvaluationFailedEvent    EventType = "evaluation.failed"
	EvaluationCancelledEvent EventType = "evaluation.cancelled"
	EvaluationPendingEvent   EventType = "evaluation.pending_approval"
	AuditEntryRecordedEvent  EventType = "audit.entry_recorded"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"execution_id"`
	ConfigID    string    `json:"config_id,omitempty"`
}

func (e BaseEvent) GetType() EventType {
	return e.Type
}

type EvaluationStarted struct {
	BaseEvent

	FieldCount  int `json:"field_count"`
	OptionCount int `json:"option_count"`
}

type EvaluationCompleted struct {
	BaseEvent

	Valid          bool    `json:"valid"`
	SelectedOption string  `json:"selected_option,omitempty"`
	Confidence     float64 `json:"confidence"`
}

type EvaluationFailed struct {
	BaseEvent

	ErrorCount int    `json:"error_count"`
	Reason     string `json:"reason,omitempty"`
}

type EvaluationCancelled struct {
	BaseEvent
}

type EvaluationPending struct {
	BaseEvent
}

type AuditEntryRecorded struct {
	BaseEvent

	Entry models.AuditEntry `json:"entry"`
}
