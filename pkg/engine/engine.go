// Package engine orchestrates one evaluation pass: configuration checks,
// field validation, compliance, decision selection, and the audit trail that
// explains the outcome.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	"github.com/rulekit/rulekit/pkg/compliance"
	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/decision"
	"github.com/rulekit/rulekit/pkg/eventbus"
	"github.com/rulekit/rulekit/pkg/logic"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
	"github.com/rulekit/rulekit/pkg/validation"
)

// Engine evaluates configurations against input contexts. It is stateless
// across calls; the only shared structure is the caller-owned registry,
// which must be populated before first use and treated as read-only.
type Engine struct {
	registry   *registry.Registry
	evaluator  *condition.Evaluator
	combinator *logic.Combinator
	validation *validation.Engine
	selector   *decision.Selector
	compliance *compliance.Checker
	validate   *validator.Validate
	logger     *slog.Logger
	sink       eventbus.Sink
	tracer     trace.Tracer
	concurrent bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithSink forwards evaluation and audit events to an external sink. The
// sink is notified one-way; its errors are logged and never alter the
// evaluation result.
func WithSink(sink eventbus.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithTracer opens a span per evaluation on the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithCustomTimeout bounds each custom predicate call.
func WithCustomTimeout(d time.Duration) Option {
	return func(e *Engine) { e.evaluator.SetCustomTimeout(d) }
}

// WithConcurrentFields validates independent fields concurrently. Audit
// entries are still recorded in field declaration order, so results stay
// deterministic.
func WithConcurrentFields() Option {
	return func(e *Engine) { e.concurrent = true }
}

// New creates an engine around the caller-owned registry.
func New(reg *registry.Registry, opts ...Option) (*Engine, error) {
	logger := slog.Default()

	eng := &Engine{
		registry:  reg,
		evaluator: condition.NewEvaluator(reg, logger),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	comb, err := logic.NewCombinator(eng.evaluator, reg, eng.logger)
	if err != nil {
		return nil, err
	}

	eng.combinator = comb
	eng.validation = validation.NewEngine(eng.evaluator, reg, eng.logger)
	eng.selector = decision.NewSelector(comb, eng.logger)
	eng.compliance = compliance.NewChecker(reg, eng.logger)

	return eng, nil
}

// Evaluate runs one full evaluation and returns the result. For flows that
// need approval or retry, use NewEvaluation and keep the handle.
func (e *Engine) Evaluate(ctx context.Context, cfg *models.EvaluationConfig, input map[string]any) (*models.EvaluationResult, error) {
	return e.NewEvaluation(cfg, input).Run(ctx)
}

// checkConfig surfaces caller bugs in the configuration before anything is
// evaluated: struct-tag violations, unknown operators, unknown logic kinds,
// duplicate field ids, and dangling default options.
func (e *Engine) checkConfig(cfg *models.EvaluationConfig) error {
	if cfg == nil {
		return models.NewConfigError("config", "configuration is nil")
	}

	if err := e.validate.Struct(cfg); err != nil {
		return models.NewConfigError("config "+cfg.ID, "%v", err)
	}

	seen := make(map[string]struct{}, len(cfg.Fields))

	for _, field := range cfg.Fields {
		if _, dup := seen[field.ID]; dup {
			return models.NewConfigError("config "+cfg.ID, "duplicate field id %q", field.ID)
		}

		seen[field.ID] = struct{}{}

		if !field.Type.Valid() {
			return models.NewConfigError("field "+field.ID, "unknown field type %q", field.Type)
		}

		if err := checkConditions(field.ShowConditions); err != nil {
			return err
		}

		for _, rule := range field.Rules {
			if err := checkRule(rule); err != nil {
				return err
			}
		}
	}

	for _, rule := range cfg.CrossFieldRules {
		if err := checkRule(rule); err != nil {
			return err
		}
	}

	optionIDs := make(map[string]struct{}, len(cfg.Options))

	for _, option := range cfg.Options {
		if _, dup := optionIDs[option.ID]; dup {
			return models.NewConfigError("config "+cfg.ID, "duplicate option id %q", option.ID)
		}

		optionIDs[option.ID] = struct{}{}

		if option.Logic != nil && !option.Logic.Kind.Valid() {
			return models.NewConfigError(
				"option "+option.ID, "%v: %q", models.ErrUnknownLogicKind, option.Logic.Kind)
		}

		if err := checkConditions(option.Conditions); err != nil {
			return err
		}
	}

	if cfg.DefaultOption != "" {
		if _, ok := optionIDs[cfg.DefaultOption]; !ok {
			return models.NewConfigError(
				"config "+cfg.ID, "default option %q is not declared", cfg.DefaultOption)
		}
	}

	return nil
}

func checkConditions(conds []models.Condition) error {
	for _, cond := range conds {
		if !cond.Operator.Valid() {
			return models.NewConfigError(
				"condition "+cond.ID, "%v: %q", models.ErrUnknownOperator, cond.Operator)
		}

		if cond.Weight != nil && *cond.Weight < 0 {
			return models.NewConfigError(
				"condition "+cond.ID, "weight must be non-negative, got %g", *cond.Weight)
		}
	}

	return nil
}

func checkRule(rule models.ValidationRule) error {
	if !rule.Type.Valid() {
		return models.NewConfigError(
			"rule "+rule.ID, "%v: %q", models.ErrUnknownRuleType, rule.Type)
	}

	if rule.Severity != "" && !rule.Severity.Valid() {
		return models.NewConfigError("rule "+rule.ID, "unknown severity %q", rule.Severity)
	}

	return checkConditions(rule.Conditions)
}

// publish forwards an event to the sink, if any. Sink failures are logged
// and never influence the evaluation.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.sink == nil {
		return
	}

	if err := e.sink.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish engine event",
			"event_type", string(event.GetType()), "error", fmt.Sprintf("%v", err))
	}
}
