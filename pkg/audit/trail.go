// Package audit records an ordered, append-only log of what happened during
// one evaluation.
package audit

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rulekit/rulekit/pkg/models"
)

// ErrFrozen is returned when appending to a trail that has been handed back
// to the caller.
var ErrFrozen = errors.New("audit trail is frozen")

// Trail accumulates audit entries for one execution id. Appends preserve
// insertion order and are safe for concurrent use; entries are never edited
// or removed after append. Freeze makes the trail read-only, which happens
// once the evaluation result is returned to the caller.
type Trail struct {
	mu          sync.Mutex
	executionID string
	entries     []models.AuditEntry
	frozen      bool
}

// NewTrail creates an empty trail for the given execution id.
func NewTrail(executionID string) *Trail {
	return &Trail{executionID: executionID}
}

// ExecutionID returns the execution this trail belongs to.
func (t *Trail) ExecutionID() string {
	return t.executionID
}

// Append records one action. The entry id and timestamp are assigned here.
func (t *Trail) Append(action, actor string, details map[string]any) (models.AuditEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return models.AuditEntry{}, ErrFrozen
	}

	entry := models.AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Actor:     actor,
		Details:   details,
	}

	t.entries = append(t.entries, entry)

	return entry, nil
}

// Len returns the number of recorded entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Entries returns a copy of the recorded entries in insertion order.
func (t *Trail) Entries() []models.AuditEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.AuditEntry, len(t.entries))
	copy(out, t.entries)

	return out
}

// Freeze makes the trail read-only. Further appends fail with ErrFrozen.
func (t *Trail) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frozen = true
}

// Frozen reports whether the trail has been frozen.
func (t *Trail) Frozen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.frozen
}
