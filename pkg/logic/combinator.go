// Package logic combines multiple condition results into a single pass/fail
// outcome plus a numeric confidence score.
package logic

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

// celCostLimit bounds custom expression evaluation so a pathological
// expression cannot exhaust the evaluator.
const celCostLimit = 1_000_000

// Result is the outcome of combining one condition set.
//
// Trace is a first-class output, not a debug side-channel: the lines are
// appended verbatim to the audit trail and downstream compliance review
// depends on them.
type Result struct {
	Passed bool
	Score  float64
	Trace  []string
	// Errors collects custom-function failures. Each one already counted
	// as a false condition; the caller records them as error_occurred
	// audit entries.
	Errors []error
}

// Combinator evaluates condition sets under a logic specification. Custom
// expressions run in a closed CEL environment that exposes only the named
// condition-result map and the score; compiled programs are cached by
// expression string.
type Combinator struct {
	evaluator *condition.Evaluator
	registry  *registry.Registry
	logger    *slog.Logger

	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCombinator creates a combinator backed by the given condition evaluator
// and registry.
func NewCombinator(eval *condition.Evaluator, reg *registry.Registry, logger *slog.Logger) (*Combinator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("results", cel.MapType(cel.StringType, cel.BoolType)),
		cel.Variable("score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	return &Combinator{
		evaluator: eval,
		registry:  reg,
		logger:    logger,
		env:       env,
		programs:  make(map[string]cel.Program),
	}, nil
}

// Combine evaluates every condition against the context and folds the
// results per the logic specification. Configuration errors (unknown
// operator, malformed spec) return a non-nil error; custom-function
// failures are collected in Result.Errors with the condition counted as
// false.
func (c *Combinator) Combine(spec models.LogicSpec, conds []models.Condition, ctx map[string]any) (Result, error) {
	if !spec.Kind.Valid() {
		return Result{}, models.NewConfigError(
			"logic spec", "%v: %q", models.ErrUnknownLogicKind, spec.Kind)
	}

	if spec.Kind == models.LogicNot && len(conds) == 0 {
		return Result{}, models.NewConfigError("logic spec", "not requires at least one condition")
	}

	var result Result

	passedCount := 0
	passedWeight := 0.0
	totalWeight := 0.0
	byID := make(map[string]bool, len(conds))
	passes := make([]bool, len(conds))

	for i, cond := range conds {
		weight := cond.EffectiveWeight()
		if weight < 0 {
			return Result{}, models.NewConfigError(
				"condition "+cond.ID, "weighted logic requires a non-negative weight, got %g", weight)
		}

		passed, err := c.evaluator.Evaluate(cond, ctx)
		if err != nil {
			var funcErr *condition.FuncError
			if !errors.As(err, &funcErr) {
				return Result{}, err
			}

			// A failing custom function makes its condition false and is
			// reported, never propagated.
			result.Errors = append(result.Errors, err)
			passed = false
		}

		passes[i] = passed
		byID[cond.ID] = passed
		totalWeight += weight

		if passed {
			passedCount++
			passedWeight += weight
		}

		result.Trace = append(result.Trace, fmt.Sprintf(
			"%s %s %v => %s (weight: %g)",
			cond.Field, cond.Operator, cond.Value, passLabel(passed), weight))
	}

	total := len(conds)

	switch spec.Kind {
	case models.LogicAnd:
		result.Passed = passedCount == total
		result.Score = countScore(passedCount, total, 1)
	case models.LogicOr:
		result.Passed = passedCount > 0
		result.Score = countScore(passedCount, total, 0)
	case models.LogicNot:
		result.Passed = !passes[0]
		result.Score = countScore(passedCount, total, 0)
	case models.LogicXor:
		result.Passed = passedCount == 1
		result.Score = countScore(passedCount, total, 0)
	case models.LogicWeighted:
		if totalWeight > 0 {
			result.Score = passedWeight / totalWeight
		} else {
			result.Score = 1
		}

		result.Passed = result.Score >= spec.EffectiveThreshold()
	case models.LogicCustom:
		result.Score = countScore(passedCount, total, 1)

		passed, err := c.combineCustom(spec, byID, result.Score)
		if err != nil {
			if models.IsConfigError(err) {
				return Result{}, err
			}

			result.Errors = append(result.Errors, err)
			passed = false
		}

		result.Passed = passed
	}

	result.Trace = append(result.Trace, fmt.Sprintf(
		"%s => %s (score: %.2f)", spec.Kind, passLabel(result.Passed), result.Score))

	return result, nil
}

// combineCustom dispatches to a registered combinator by name, or compiles
// and evaluates a CEL expression over the result map.
func (c *Combinator) combineCustom(spec models.LogicSpec, results map[string]bool, score float64) (bool, error) {
	if spec.Combinator != "" {
		fn, ok := c.registry.Combinator(spec.Combinator)
		if !ok {
			return false, models.NewConfigError(
				"logic spec", "combinator function %q not registered", spec.Combinator)
		}

		return callCombinator(spec.Combinator, fn, results)
	}

	if spec.Expression == "" {
		return false, models.NewConfigError(
			"logic spec", "custom logic requires combinator or expression")
	}

	prog, err := c.program(spec.Expression)
	if err != nil {
		return false, err
	}

	out, _, err := prog.Eval(map[string]any{
		"results": results,
		"score":   score,
	})
	if err != nil {
		return false, &condition.FuncError{Func: "cel:" + spec.Expression, Err: err}
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return false, models.NewConfigError(
			"logic spec", "expression %q does not evaluate to a boolean", spec.Expression)
	}

	return passed, nil
}

func (c *Combinator) program(expression string) (cel.Program, error) {
	c.mu.RLock()
	prog, ok := c.programs[expression]
	c.mu.RUnlock()

	if ok {
		return prog, nil
	}

	ast, issues := c.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, models.NewConfigError(
			"logic spec", "invalid expression %q: %v", expression, issues.Err())
	}

	prog, err := c.env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, models.NewConfigError(
			"logic spec", "expression %q: %v", expression, err)
	}

	c.mu.Lock()
	c.programs[expression] = prog
	c.mu.Unlock()

	return prog, nil
}

// callCombinator isolates panics inside a registered combinator.
func callCombinator(name string, fn registry.CombinatorFunc, results map[string]bool) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			passed = false
			err = &condition.FuncError{Func: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	passed, callErr := fn(results)
	if callErr != nil {
		return false, &condition.FuncError{Func: name, Err: callErr}
	}

	return passed, nil
}

// countScore is passedCount/totalCount, kept for observability even where
// the pass decision is boolean. empty defines the empty-set score.
func countScore(passed, total int, empty float64) float64 {
	if total == 0 {
		return empty
	}

	return float64(passed) / float64(total)
}

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}

	return "FAIL"
}
