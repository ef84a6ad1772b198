// Package registry holds the caller-owned tables of named custom functions:
// condition predicates, validation functions, logic combinators, and
// compliance framework checkers.
//
// The registry is constructed explicitly and passed into the engine rather
// than living as module state, so tests and concurrent hosts stay isolated.
// Populate it once at startup and treat it as read-only afterwards;
// concurrent registration is not supported.
package registry

import (
	"log/slog"

	"github.com/rulekit/rulekit/pkg/models"
)

// ConditionFunc is a caller-registered predicate for custom conditions. It
// receives the resolved field value and the whole input context and must be
// pure and side-effect free.
type ConditionFunc func(value any, ctx map[string]any) (bool, error)

// ValidatorFunc is a caller-registered check for custom validation rules. A
// non-nil error marks the rule as violated with the error text as message.
type ValidatorFunc func(value any, ctx map[string]any) error

// CombinatorFunc combines named condition results for custom logic specs.
// It sees nothing beyond the supplied result map.
type CombinatorFunc func(results map[string]bool) (bool, error)

// ComplianceFunc checks one field under one compliance framework.
type ComplianceFunc func(field models.Field, value any) bool

// Registry is the explicit, caller-owned registration table.
type Registry struct {
	logger      *slog.Logger
	conditions  map[string]ConditionFunc
	validators  map[string]ValidatorFunc
	combinators map[string]CombinatorFunc
	frameworks  map[string]ComplianceFunc
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:      logger,
		conditions:  make(map[string]ConditionFunc),
		validators:  make(map[string]ValidatorFunc),
		combinators: make(map[string]CombinatorFunc),
		frameworks:  make(map[string]ComplianceFunc),
	}
}

// RegisterCondition registers a named condition predicate.
func (r *Registry) RegisterCondition(name string, fn ConditionFunc) {
	r.conditions[name] = fn
	r.logger.Debug("Registered condition function", "name", name)
}

// RegisterValidator registers a named validation function.
func (r *Registry) RegisterValidator(name string, fn ValidatorFunc) {
	r.validators[name] = fn
	r.logger.Debug("Registered validator function", "name", name)
}

// RegisterCombinator registers a named logic combinator.
func (r *Registry) RegisterCombinator(name string, fn CombinatorFunc) {
	r.combinators[name] = fn
	r.logger.Debug("Registered combinator function", "name", name)
}

// RegisterFramework registers a compliance framework checker.
func (r *Registry) RegisterFramework(name string, fn ComplianceFunc) {
	r.frameworks[name] = fn
	r.logger.Debug("Registered compliance framework", "name", name)
}

// Condition looks up a condition predicate by name.
func (r *Registry) Condition(name string) (ConditionFunc, bool) {
	fn, ok := r.conditions[name]

	return fn, ok
}

// Validator looks up a validation function by name.
func (r *Registry) Validator(name string) (ValidatorFunc, bool) {
	fn, ok := r.validators[name]

	return fn, ok
}

// Combinator looks up a logic combinator by name.
func (r *Registry) Combinator(name string) (CombinatorFunc, bool) {
	fn, ok := r.combinators[name]

	return fn, ok
}

// Framework looks up a compliance framework checker by name.
func (r *Registry) Framework(name string) (ComplianceFunc, bool) {
	fn, ok := r.frameworks[name]

	return fn, ok
}

// FrameworkNames returns the registered framework names.
func (r *Registry) FrameworkNames() []string {
	names := make([]string, 0, len(r.frameworks))
	for name := range r.frameworks {
		names = append(names, name)
	}

	return names
}
