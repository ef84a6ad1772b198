// Package condition evaluates single typed comparisons against a field value
// drawn from a JSON-like input context.
package condition

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rulekit/rulekit/pkg/dotpath"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

// DefaultCustomTimeout bounds one custom predicate call. A predicate that
// blocks past the deadline is treated as failed, not hung.
const DefaultCustomTimeout = 5 * time.Second

// FuncError marks a failure inside a caller-supplied custom function. The
// condition is treated as false; the error is recorded in the audit trail
// by the caller and never propagated further.
type FuncError struct {
	ConditionID string
	Func        string
	Err         error
}

func (e *FuncError) Error() string {
	return fmt.Sprintf("custom function %q for condition %q failed: %v", e.Func, e.ConditionID, e.Err)
}

func (e *FuncError) Unwrap() error {
	return e.Err
}

// Evaluator evaluates conditions. Compiled regex patterns are cached by
// pattern string; the cache is safe for concurrent use.
type Evaluator struct {
	registry      *registry.Registry
	logger        *slog.Logger
	customTimeout time.Duration

	mu         sync.RWMutex
	regexCache map[string]*regexp.Regexp
}

// NewEvaluator creates an evaluator backed by the given registry for custom
// predicates.
func NewEvaluator(reg *registry.Registry, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Evaluator{
		registry:      reg,
		logger:        logger,
		customTimeout: DefaultCustomTimeout,
		regexCache:    make(map[string]*regexp.Regexp),
	}
}

// SetCustomTimeout overrides the per-call bound on custom predicates.
func (e *Evaluator) SetCustomTimeout(d time.Duration) {
	if d > 0 {
		e.customTimeout = d
	}
}

// Evaluate resolves the condition's field via dot-path lookup and applies
// the operator. Missing intermediate keys resolve to nil rather than
// raising. The returned error is either a *models.ConfigError for a
// malformed condition or a *FuncError for a failed custom predicate; in the
// FuncError case the boolean result is already the final value (false).
func (e *Evaluator) Evaluate(cond models.Condition, ctx map[string]any) (bool, error) {
	if !cond.Operator.Valid() {
		return false, models.NewConfigError(
			"condition "+cond.ID, "%v: %q", models.ErrUnknownOperator, cond.Operator)
	}

	value, _ := dotpath.Resolve(cond.Field, ctx)

	switch cond.Operator {
	case models.OperatorExists:
		return dotpath.Exists(cond.Field, ctx), nil
	case models.OperatorNotExists:
		return !dotpath.Exists(cond.Field, ctx), nil
	case models.OperatorEquals:
		return equals(value, cond.Value, cond.IgnoreCase), nil
	case models.OperatorNotEquals:
		return !equals(value, cond.Value, cond.IgnoreCase), nil
	case models.OperatorGreaterThan:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a > b }), nil
	case models.OperatorLessThan:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a < b }), nil
	case models.OperatorGreaterOrEqual:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a >= b }), nil
	case models.OperatorLessOrEqual:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a <= b }), nil
	case models.OperatorContains:
		return contains(value, cond.Value, cond.IgnoreCase), nil
	case models.OperatorNotContains:
		return !contains(value, cond.Value, cond.IgnoreCase), nil
	case models.OperatorStartsWith:
		return compareStrings(value, cond.Value, cond.IgnoreCase, strings.HasPrefix), nil
	case models.OperatorEndsWith:
		return compareStrings(value, cond.Value, cond.IgnoreCase, strings.HasSuffix), nil
	case models.OperatorRegex:
		return e.matchRegex(cond, value)
	case models.OperatorInList:
		return inList(value, cond.Value, cond.IgnoreCase), nil
	case models.OperatorNotInList:
		return !inList(value, cond.Value, cond.IgnoreCase), nil
	case models.OperatorCustom:
		return e.evaluateCustom(cond, value, ctx)
	}

	// Unreachable: Valid() covers the full set.
	return false, models.NewConfigError(
		"condition "+cond.ID, "%v: %q", models.ErrUnknownOperator, cond.Operator)
}

func (e *Evaluator) matchRegex(cond models.Condition, value any) (bool, error) {
	pattern, ok := cond.Value.(string)
	if !ok {
		return false, models.NewConfigError(
			"condition "+cond.ID, "regex operator requires a string pattern, got %T", cond.Value)
	}

	if cond.IgnoreCase && !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}

	re, err := e.compile(pattern)
	if err != nil {
		return false, models.NewConfigError(
			"condition "+cond.ID, "invalid regex pattern %q: %v", pattern, err)
	}

	str, ok := asString(value)
	if !ok {
		return false, nil
	}

	return re.MatchString(str), nil
}

// MatchPattern matches s against a pattern through the shared regex cache.
func (e *Evaluator) MatchPattern(pattern, s string) (bool, error) {
	re, err := e.compile(pattern)
	if err != nil {
		return false, err
	}

	return re.MatchString(s), nil
}

func (e *Evaluator) compile(pattern string) (*regexp.Regexp, error) {
	e.mu.RLock()
	re, ok := e.regexCache[pattern]
	e.mu.RUnlock()

	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.regexCache[pattern] = re
	e.mu.Unlock()

	return re, nil
}

// evaluateCustom runs a registered predicate under the configured timeout,
// recovering panics. Any failure makes the condition false with a FuncError
// for the caller's audit trail.
func (e *Evaluator) evaluateCustom(cond models.Condition, value any, ctx map[string]any) (bool, error) {
	name := cond.CustomFunc
	if name == "" {
		return false, models.NewConfigError(
			"condition "+cond.ID, "custom operator requires custom_func")
	}

	fn, ok := e.registry.Condition(name)
	if !ok {
		return false, models.NewConfigError(
			"condition "+cond.ID, "condition function %q not registered", name)
	}

	type outcome struct {
		passed bool
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()

		passed, err := fn(value, ctx)
		done <- outcome{passed: passed, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return false, &FuncError{ConditionID: cond.ID, Func: name, Err: out.err}
		}

		return out.passed, nil
	case <-time.After(e.customTimeout):
		return false, &FuncError{
			ConditionID: cond.ID,
			Func:        name,
			Err:         fmt.Errorf("timed out after %s", e.customTimeout),
		}
	}
}

// ToNumber coerces JSON-typical scalar values to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

// asString accepts only genuinely textual values. Numbers and booleans are
// not silently stringified for the string operators.
func asString(v any) (string, bool) {
	s, ok := v.(string)

	return s, ok
}

func fold(s string, ignoreCase bool) string {
	if ignoreCase {
		return strings.ToLower(s)
	}

	return s
}

// equals compares numerically when both sides coerce to numbers, textually
// for strings, and by deep equality otherwise.
func equals(actual, expected any, ignoreCase bool) bool {
	if an, ok := ToNumber(actual); ok {
		if en, ok := ToNumber(expected); ok {
			return an == en
		}
	}

	if as, ok := asString(actual); ok {
		if es, ok := asString(expected); ok {
			return fold(as, ignoreCase) == fold(es, ignoreCase)
		}
	}

	return reflect.DeepEqual(actual, expected)
}

// compareNumeric coerces both sides to numbers; non-numeric operands make
// the comparison false, never an error.
func compareNumeric(actual, expected any, cmp func(a, b float64) bool) bool {
	a, ok := ToNumber(actual)
	if !ok {
		return false
	}

	b, ok := ToNumber(expected)
	if !ok {
		return false
	}

	return cmp(a, b)
}

func compareStrings(actual, expected any, ignoreCase bool, cmp func(s, sub string) bool) bool {
	a, ok := asString(actual)
	if !ok {
		return false
	}

	b, ok := asString(expected)
	if !ok {
		return false
	}

	return cmp(fold(a, ignoreCase), fold(b, ignoreCase))
}

// contains matches substring containment for strings and membership for
// list values.
func contains(actual, expected any, ignoreCase bool) bool {
	if items, ok := actual.([]any); ok {
		for _, item := range items {
			if equals(item, expected, ignoreCase) {
				return true
			}
		}

		return false
	}

	return compareStrings(actual, expected, ignoreCase, strings.Contains)
}

// inList checks membership of the actual value in the configured list.
func inList(actual, expected any, ignoreCase bool) bool {
	items, ok := expected.([]any)
	if !ok {
		return false
	}

	for _, item := range items {
		if equals(actual, item, ignoreCase) {
			return true
		}
	}

	return false
}
