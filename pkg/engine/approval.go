package engine

import (
	"context"
	"time"

	"github.com/rulekit/rulekit/pkg/events"
	"github.com/rulekit/rulekit/pkg/models"
)

// Approve resolves a waiting evaluation in the actor's favor. When optionID
// is non-empty it must name a declared option; the human's pick carries
// confidence 1.0. The transition is waiting_approval -> approved ->
// completed; anything else is rejected by the state machine.
func (ev *Evaluation) Approve(ctx context.Context, actor, optionID string) (*models.EvaluationResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	outcome := &models.DecisionOutcome{Pending: false, Confidence: 1.0}

	if optionID != "" {
		option, ok := ev.findOption(optionID)
		if !ok {
			return nil, models.NewConfigError(
				"approval", "option %q is not declared in config %s", optionID, ev.cfg.ID)
		}

		outcome.OptionID = option.ID
		outcome.NextStep = option.NextStep
	}

	if err := ev.machine.Transition(models.StateApproved); err != nil {
		return nil, err
	}

	ev.record(models.AuditApprovalGranted, actor, map[string]any{
		"option": optionID,
	})

	if err := ev.machine.Transition(models.StateCompleted); err != nil {
		return nil, err
	}

	result := ev.resolve(models.StateCompleted, outcome)

	ev.engine.publish(ctx, ev.executionID, events.EvaluationCompleted{
		BaseEvent:      ev.baseEvent(events.EvaluationCompletedEvent),
		Valid:          result.Valid,
		SelectedOption: outcome.OptionID,
		Confidence:     outcome.Confidence,
	})

	ev.engine.logger.Info("Evaluation approved",
		"execution_id", ev.executionID, "actor", actor, "option", optionID)

	return result, nil
}

// Reject resolves a waiting evaluation against the actor's approval. The
// transition is waiting_approval -> rejected -> failed.
func (ev *Evaluation) Reject(ctx context.Context, actor, reason string) (*models.EvaluationResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if err := ev.machine.Transition(models.StateRejected); err != nil {
		return nil, err
	}

	ev.record(models.AuditApprovalRejected, actor, map[string]any{
		"reason": reason,
	})

	if err := ev.machine.Transition(models.StateFailed); err != nil {
		return nil, err
	}

	result := ev.resolve(models.StateFailed, nil)

	ev.engine.publish(ctx, ev.executionID, events.EvaluationFailed{
		BaseEvent:  ev.baseEvent(events.EvaluationFailedEvent),
		ErrorCount: len(result.Errors),
		Reason:     reason,
	})

	ev.engine.logger.Info("Evaluation rejected",
		"execution_id", ev.executionID, "actor", actor, "reason", reason)

	return result, nil
}

// Retry re-runs a failed evaluation. The state machine permits the failed
// to in-progress transition exactly once, and only on this explicit call;
// a second retry fails with ErrRetryExhausted.
func (ev *Evaluation) Retry(ctx context.Context) (*models.EvaluationResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if err := ev.machine.Transition(models.StateInProgress); err != nil {
		return nil, err
	}

	// The previous attempt froze the trail; retries continue the same
	// execution with a fresh trail carrying the retry marker.
	ev.reopenTrail()
	ev.record(models.AuditRetryRequested, actorEngine, nil)

	startedAt := time.Now().UTC()

	if err := ev.engine.checkConfig(ev.cfg); err != nil {
		return ev.fail(ctx, startedAt, nil, nil, err)
	}

	return ev.run(ctx, startedAt)
}

func (ev *Evaluation) findOption(optionID string) (models.DecisionOption, bool) {
	for _, option := range ev.cfg.Options {
		if option.ID == optionID {
			return option, true
		}
	}

	return models.DecisionOption{}, false
}

// resolve finalizes the result after an approval-flow transition and
// freezes the trail.
func (ev *Evaluation) resolve(status models.ExecutionState, outcome *models.DecisionOutcome) *models.EvaluationResult {
	result := ev.result
	if result == nil {
		result = &models.EvaluationResult{
			ExecutionID: ev.executionID,
			ConfigID:    ev.cfg.ID,
			StartedAt:   time.Now().UTC(),
		}
	}

	result.Status = status

	if outcome != nil {
		result.Decision = outcome
	}

	if status == models.StateFailed {
		result.Valid = false
	}

	result.Trail = ev.trail.Entries()
	result.FinishedAt = time.Now().UTC()
	ev.trail.Freeze()
	ev.result = result

	return result
}
