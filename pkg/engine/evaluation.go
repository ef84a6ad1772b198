package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rulekit/rulekit/pkg/audit"
	"github.com/rulekit/rulekit/pkg/dotpath"
	"github.com/rulekit/rulekit/pkg/events"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/tracer"
	"github.com/rulekit/rulekit/pkg/validation"
)

// actorEngine marks audit entries recorded by the engine itself, as opposed
// to a human actor in the approval flow.
const actorEngine = "engine"

// Evaluation is one evaluation in flight: the configuration, the input, the
// lifecycle state machine, and the audit trail. Keep the handle when the
// flow needs approval or an explicit retry; otherwise Engine.Evaluate is
// enough.
type Evaluation struct {
	engine      *Engine
	cfg         *models.EvaluationConfig
	input       map[string]any
	machine     *models.StateMachine
	trail       *audit.Trail
	executionID string

	mu     sync.Mutex
	result *models.EvaluationResult
}

// NewEvaluation prepares an evaluation without running it.
func (e *Engine) NewEvaluation(cfg *models.EvaluationConfig, input map[string]any) *Evaluation {
	executionID := uuid.New().String()

	return &Evaluation{
		engine:      e,
		cfg:         cfg,
		input:       input,
		machine:     models.NewStateMachine(),
		trail:       audit.NewTrail(executionID),
		executionID: executionID,
	}
}

// reopenTrail starts a fresh trail for a retry attempt. The previous trail
// was frozen and returned with the failed result; it is never mutated.
func (ev *Evaluation) reopenTrail() {
	ev.trail = audit.NewTrail(ev.executionID)
}

// ExecutionID returns the id assigned to this evaluation.
func (ev *Evaluation) ExecutionID() string {
	return ev.executionID
}

// State returns the current lifecycle state.
func (ev *Evaluation) State() models.ExecutionState {
	return ev.machine.State()
}

// Result returns the last produced result, nil before Run.
func (ev *Evaluation) Result() *models.EvaluationResult {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	return ev.result
}

// Run executes the evaluation. Configuration errors surface as a failed
// result plus the error; validation errors in the data never do, they are
// collected inside the result. Context cancellation yields a cancelled
// result and the context error.
func (ev *Evaluation) Run(ctx context.Context) (*models.EvaluationResult, error) {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if ev.cfg == nil {
		return nil, models.NewConfigError("config", "configuration is nil")
	}

	startedAt := time.Now().UTC()

	if err := ev.engine.checkConfig(ev.cfg); err != nil {
		// Keep the machine consistent even for a config rejection.
		_ = ev.machine.Transition(models.StateInProgress)

		return ev.fail(ctx, startedAt, nil, nil, err)
	}

	if err := ev.machine.Transition(models.StateInProgress); err != nil {
		return nil, err
	}

	ev.record(models.AuditEvaluationStarted, actorEngine, map[string]any{
		"config_id": ev.cfg.ID,
		"fields":    len(ev.cfg.Fields),
		"options":   len(ev.cfg.Options),
	})
	ev.engine.publish(ctx, ev.executionID, events.EvaluationStarted{
		BaseEvent:   ev.baseEvent(events.EvaluationStartedEvent),
		FieldCount:  len(ev.cfg.Fields),
		OptionCount: len(ev.cfg.Options),
	})

	return ev.run(ctx, startedAt)
}

// run performs the evaluation phases with the machine already in progress.
func (ev *Evaluation) run(ctx context.Context, startedAt time.Time) (*models.EvaluationResult, error) {
	if ev.engine.tracer != nil {
		var span trace.Span

		ctx, span = tracer.StartSpan(ctx, ev.engine.tracer, "evaluation",
			attribute.String(tracer.ExecutionIDKey, ev.executionID),
			attribute.String(tracer.ConfigIDKey, ev.cfg.ID),
		)
		defer span.End()
	}

	form, err := ev.validateFields(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ev.cancel(ctx, startedAt, form, nil)
		}

		return ev.fail(ctx, startedAt, form, nil, err)
	}

	ev.recordValidation(form)

	verdicts, err := ev.checkCompliance(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ev.cancel(ctx, startedAt, form, verdicts)
		}

		return ev.fail(ctx, startedAt, form, verdicts, err)
	}

	outcome, pending, err := ev.selectOption(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ev.cancel(ctx, startedAt, form, verdicts)
		}

		return ev.fail(ctx, startedAt, form, verdicts, err)
	}

	if pending {
		return ev.waitApproval(ctx, startedAt, form, verdicts, outcome)
	}

	return ev.complete(ctx, startedAt, form, verdicts, outcome)
}

// validateFields runs the validation rule engine over every field,
// sequentially by default or fanned out when the engine was configured for
// concurrent fields. Cancellation is checked between fields on both paths.
func (ev *Evaluation) validateFields(ctx context.Context) (*validation.FormResult, error) {
	form := validation.FormResult{Valid: true}

	if ev.engine.concurrent && len(ev.cfg.Fields) >= 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		type fieldOutcome struct {
			result validation.FieldResult
			err    error
		}

		outcomes := make([]fieldOutcome, len(ev.cfg.Fields))

		var wg sync.WaitGroup

		for i, field := range ev.cfg.Fields {
			wg.Add(1)

			go func(i int, field models.Field) {
				defer wg.Done()

				value, _ := dotpath.Resolve(field.ID, ev.input)
				result, err := ev.engine.validation.ValidateField(field, value, ev.input)
				outcomes[i] = fieldOutcome{result: result, err: err}
			}(i, field)
		}

		wg.Wait()

		// Absorbing in declaration order keeps the aggregate deterministic
		// regardless of goroutine scheduling.
		for _, outcome := range outcomes {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if outcome.err != nil {
				return nil, outcome.err
			}

			form.Absorb(outcome.result)
		}
	} else {
		for _, field := range ev.cfg.Fields {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			value, _ := dotpath.Resolve(field.ID, ev.input)

			result, err := ev.engine.validation.ValidateField(field, value, ev.input)
			if err != nil {
				return nil, err
			}

			form.Absorb(result)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crossForm, err := ev.engine.validation.ValidateForm(nil, ev.cfg.CrossFieldRules, ev.input)
	if err != nil {
		return nil, err
	}

	form.Errors = append(form.Errors, crossForm.Errors...)
	form.Warnings = append(form.Warnings, crossForm.Warnings...)
	form.FuncErrors = append(form.FuncErrors, crossForm.FuncErrors...)

	if !crossForm.Valid {
		form.Valid = false
	}

	return &form, nil
}

// recordValidation turns per-field outcomes into audit entries, in field
// declaration order.
func (ev *Evaluation) recordValidation(form *validation.FormResult) {
	for _, field := range form.Fields {
		if field.Skipped {
			ev.record(models.AuditFieldSkipped, actorEngine, map[string]any{
				"field": field.FieldID,
			})

			continue
		}

		ev.record(models.AuditFieldValidated, actorEngine, map[string]any{
			"field":    field.FieldID,
			"errors":   len(field.Errors),
			"warnings": len(field.Warnings),
		})
	}

	for _, funcErr := range form.FuncErrors {
		ev.record(models.AuditErrorOccurred, actorEngine, map[string]any{
			"error": funcErr.Error(),
		})
	}
}

func (ev *Evaluation) checkCompliance(ctx context.Context) ([]models.ComplianceVerdict, error) {
	verdicts := make([]models.ComplianceVerdict, 0, len(ev.cfg.Frameworks))

	for _, framework := range ev.cfg.Frameworks {
		if err := ctx.Err(); err != nil {
			return verdicts, err
		}

		verdict, funcErrors := ev.engine.compliance.Check(framework, ev.cfg.Fields, ev.input)
		verdicts = append(verdicts, verdict)

		ev.record(models.AuditComplianceChecked, actorEngine, map[string]any{
			"framework": framework,
			"status":    string(verdict.Status),
		})

		for _, funcErr := range funcErrors {
			ev.record(models.AuditErrorOccurred, actorEngine, map[string]any{
				"error": funcErr.Error(),
			})
		}
	}

	return verdicts, nil
}

// selectOption runs the decision selector when the configuration declares
// options or a manual gate.
func (ev *Evaluation) selectOption(ctx context.Context) (*models.DecisionOutcome, bool, error) {
	if len(ev.cfg.Options) == 0 && !ev.cfg.Manual {
		return nil, false, nil
	}

	selection, err := ev.engine.selector.Select(
		ctx, ev.cfg.Options, ev.input, ev.cfg.DefaultOption, ev.cfg.Manual)
	if err != nil {
		return nil, false, err
	}

	for _, funcErr := range selection.FuncErrors {
		ev.record(models.AuditErrorOccurred, actorEngine, map[string]any{
			"error": funcErr.Error(),
		})
	}

	outcome := &models.DecisionOutcome{
		OptionID:   selection.OptionID,
		Confidence: selection.Confidence,
		Pending:    selection.Pending,
		NextStep:   selection.NextStep,
		Trace:      selection.Trace,
	}

	if selection.Pending {
		ev.record(models.AuditDecisionPending, actorEngine, map[string]any{
			"trace": selection.Trace,
		})

		return outcome, true, nil
	}

	ev.record(models.AuditDecisionMade, actorEngine, map[string]any{
		"option":     selection.OptionID,
		"confidence": selection.Confidence,
		"trace":      selection.Trace,
	})

	return outcome, false, nil
}

func (ev *Evaluation) complete(ctx context.Context, startedAt time.Time, form *validation.FormResult, verdicts []models.ComplianceVerdict, outcome *models.DecisionOutcome) (*models.EvaluationResult, error) {
	ev.record(models.AuditEvaluationFinished, actorEngine, map[string]any{
		"valid": form.Valid,
	})

	if err := ev.machine.Transition(models.StateCompleted); err != nil {
		return nil, err
	}

	result := ev.buildResult(models.StateCompleted, form, verdicts, outcome, startedAt)
	ev.trail.Freeze()
	ev.result = result

	ev.engine.publish(ctx, ev.executionID, events.EvaluationCompleted{
		BaseEvent:      ev.baseEvent(events.EvaluationCompletedEvent),
		Valid:          result.Valid,
		SelectedOption: selectedOption(outcome),
		Confidence:     confidence(outcome),
	})

	ev.engine.logger.Info("Evaluation completed",
		"execution_id", ev.executionID, "config_id", ev.cfg.ID, "valid", result.Valid)

	return result, nil
}

func (ev *Evaluation) waitApproval(ctx context.Context, startedAt time.Time, form *validation.FormResult, verdicts []models.ComplianceVerdict, outcome *models.DecisionOutcome) (*models.EvaluationResult, error) {
	if err := ev.machine.Transition(models.StateWaitingApproval); err != nil {
		return nil, err
	}

	// The trail stays open: the approval decision is still to be recorded.
	result := ev.buildResult(models.StateWaitingApproval, form, verdicts, outcome, startedAt)
	ev.result = result

	ev.engine.publish(ctx, ev.executionID, events.EvaluationPending{
		BaseEvent: ev.baseEvent(events.EvaluationPendingEvent),
	})

	ev.engine.logger.Info("Evaluation waiting for approval",
		"execution_id", ev.executionID, "config_id", ev.cfg.ID)

	return result, nil
}

// fail terminates the evaluation on a configuration or internal error. The
// result still carries everything collected so far, including the trail, so
// the caller can explain the failure.
func (ev *Evaluation) fail(ctx context.Context, startedAt time.Time, form *validation.FormResult, verdicts []models.ComplianceVerdict, cause error) (*models.EvaluationResult, error) {
	ev.record(models.AuditErrorOccurred, actorEngine, map[string]any{
		"error": cause.Error(),
	})
	ev.record(models.AuditEvaluationFinished, actorEngine, map[string]any{
		"status": string(models.StateFailed),
	})

	_ = ev.machine.Transition(models.StateFailed)

	result := ev.buildResult(models.StateFailed, form, verdicts, nil, startedAt)
	ev.trail.Freeze()
	ev.result = result

	ev.engine.publish(ctx, ev.executionID, events.EvaluationFailed{
		BaseEvent:  ev.baseEvent(events.EvaluationFailedEvent),
		ErrorCount: len(result.Errors),
		Reason:     cause.Error(),
	})

	ev.engine.logger.Error("Evaluation failed",
		"execution_id", ev.executionID, "error", cause)

	return result, cause
}

// cancel terminates the evaluation cooperatively. The status is a distinct
// terminal state so callers can tell "the data is invalid" apart from "the
// system could not finish evaluating".
func (ev *Evaluation) cancel(ctx context.Context, startedAt time.Time, form *validation.FormResult, verdicts []models.ComplianceVerdict) (*models.EvaluationResult, error) {
	ev.record(models.AuditCancelled, actorEngine, nil)

	_ = ev.machine.Transition(models.StateCancelled)

	result := ev.buildResult(models.StateCancelled, form, verdicts, nil, startedAt)
	ev.trail.Freeze()
	ev.result = result

	// Publish with a fresh context; the evaluation context is already done.
	ev.engine.publish(context.WithoutCancel(ctx), ev.executionID, events.EvaluationCancelled{
		BaseEvent: ev.baseEvent(events.EvaluationCancelledEvent),
	})

	ev.engine.logger.Warn("Evaluation cancelled", "execution_id", ev.executionID)

	return result, ctx.Err()
}

func (ev *Evaluation) buildResult(status models.ExecutionState, form *validation.FormResult, verdicts []models.ComplianceVerdict, outcome *models.DecisionOutcome, startedAt time.Time) *models.EvaluationResult {
	result := &models.EvaluationResult{
		ExecutionID: ev.executionID,
		ConfigID:    ev.cfg.ID,
		Status:      status,
		Valid:       status != models.StateFailed,
		Compliance:  verdicts,
		Decision:    outcome,
		Trail:       ev.trail.Entries(),
		StartedAt:   startedAt,
		FinishedAt:  time.Now().UTC(),
	}

	if form != nil {
		result.Valid = form.Valid && status != models.StateFailed
		result.Errors = form.Errors
		result.Warnings = form.Warnings
	}

	return result
}

// record appends to the trail and mirrors the entry to the sink. Append
// failures are impossible before freeze; afterwards they indicate a caller
// bug and are logged.
func (ev *Evaluation) record(action, actor string, details map[string]any) {
	entry, err := ev.trail.Append(action, actor, details)
	if err != nil {
		ev.engine.logger.Error("Failed to append audit entry", "action", action, "error", err)

		return
	}

	ev.engine.publish(context.Background(), ev.executionID, events.AuditEntryRecorded{
		BaseEvent: ev.baseEvent(events.AuditEntryRecordedEvent),
		Entry:     entry,
	})
}

func (ev *Evaluation) baseEvent(eventType events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: ev.executionID,
		ConfigID:    ev.cfg.ID,
	}
}

func selectedOption(outcome *models.DecisionOutcome) string {
	if outcome == nil {
		return ""
	}

	return outcome.OptionID
}

func confidence(outcome *models.DecisionOutcome) float64 {
	if outcome == nil {
		return 0
	}

	return outcome.Confidence
}
