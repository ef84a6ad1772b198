// Package validation applies ordered field-level and cross-field rules to
// submitted values, producing structured errors and warnings.
package validation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/dotpath"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

// Engine runs declared validation rules. Violations are collected, never
// thrown: a failing rule does not stop evaluation of subsequent rules, so
// the caller always receives the complete report in one pass.
type Engine struct {
	evaluator *condition.Evaluator
	registry  *registry.Registry
	logger    *slog.Logger
}

// NewEngine creates a validation engine sharing the given condition
// evaluator.
func NewEngine(eval *condition.Evaluator, reg *registry.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{evaluator: eval, registry: reg, logger: logger}
}

// FieldResult is the outcome of validating one field.
type FieldResult struct {
	FieldID string
	// Skipped marks fields that did not participate: disabled, or show
	// conditions evaluated false.
	Skipped  bool
	Errors   []models.ValidationIssue
	Warnings []models.ValidationIssue
	// FuncErrors collects custom-function failures for the audit trail.
	FuncErrors []error
}

// FormResult aggregates a whole form pass.
type FormResult struct {
	Valid      bool
	Errors     []models.ValidationIssue
	Warnings   []models.ValidationIssue
	Fields     []FieldResult
	FuncErrors []error
}

// ValidateField validates one field value. Processing order: show-condition
// gate, required short-circuit, declared rules in declaration order, then
// the built-in check for the field's declared type. Rules on an optional
// empty field are skipped.
func (e *Engine) ValidateField(field models.Field, value any, ctx map[string]any) (FieldResult, error) {
	result := FieldResult{FieldID: field.ID}

	if field.Disabled {
		result.Skipped = true

		return result, nil
	}

	for _, cond := range field.ShowConditions {
		shown, err := e.evaluator.Evaluate(cond, ctx)
		if err != nil {
			var funcErr *condition.FuncError
			if !errors.As(err, &funcErr) {
				return result, err
			}

			result.FuncErrors = append(result.FuncErrors, err)
			shown = false
		}

		if !shown {
			result.Skipped = true

			return result, nil
		}
	}

	// Required check runs first; an empty required field yields exactly one
	// error and skips every remaining rule for the field.
	if isEmpty(value) {
		if field.Required {
			result.Errors = append(result.Errors, models.ValidationIssue{
				Field:    field.ID,
				Rule:     models.RuleRequired,
				Message:  fmt.Sprintf("%s is required", displayName(field)),
				Severity: models.SeverityError,
			})
		}

		return result, nil
	}

	for _, rule := range field.Rules {
		if rule.Type.CrossField() {
			// Cross-field rules run once per form, not per field.
			continue
		}

		applies, err := e.ruleApplies(rule, ctx, &result)
		if err != nil {
			return result, err
		}

		if !applies {
			continue
		}

		issue, err := e.applyRule(field, rule, value, ctx)
		if err != nil {
			var funcErr *condition.FuncError
			if !errors.As(err, &funcErr) {
				return result, err
			}

			result.FuncErrors = append(result.FuncErrors, err)
			issue = &models.ValidationIssue{
				Field:    field.ID,
				Rule:     rule.Type,
				Message:  fmt.Sprintf("%s could not be validated", displayName(field)),
				Severity: rule.EffectiveSeverity(),
			}
		}

		if issue != nil {
			result.add(*issue)
		}
	}

	if issue := checkType(field, value); issue != nil {
		result.add(*issue)
	}

	return result, nil
}

// ValidateForm validates every field and then the cross-field rules.
// Severity error flips Valid to false; warnings and info never do.
func (e *Engine) ValidateForm(fields []models.Field, crossRules []models.ValidationRule, values map[string]any) (FormResult, error) {
	form := FormResult{Valid: true}

	for _, field := range fields {
		value, _ := dotpath.Resolve(field.ID, values)

		fieldResult, err := e.ValidateField(field, value, values)
		if err != nil {
			return form, err
		}

		form.Absorb(fieldResult)
	}

	for _, rule := range crossRules {
		if !rule.Type.CrossField() {
			return form, models.NewConfigError(
				"cross-field rule "+rule.ID, "%q is not a cross-field rule type", rule.Type)
		}

		var gate FieldResult

		applies, err := e.ruleApplies(rule, values, &gate)
		if err != nil {
			return form, err
		}

		form.FuncErrors = append(form.FuncErrors, gate.FuncErrors...)

		if !applies {
			continue
		}

		issue, err := e.applyCrossFieldRule(rule, values)
		if err != nil {
			return form, err
		}

		if issue != nil {
			if issue.Severity == models.SeverityError {
				form.Errors = append(form.Errors, *issue)
				form.Valid = false
			} else {
				form.Warnings = append(form.Warnings, *issue)
			}
		}
	}

	return form, nil
}

// ruleApplies evaluates the rule's gating conditions. A gated rule whose
// conditions are not met is skipped entirely, neither satisfied nor
// violated.
func (e *Engine) ruleApplies(rule models.ValidationRule, ctx map[string]any, result *FieldResult) (bool, error) {
	for _, cond := range rule.Conditions {
		met, err := e.evaluator.Evaluate(cond, ctx)
		if err != nil {
			var funcErr *condition.FuncError
			if !errors.As(err, &funcErr) {
				return false, err
			}

			result.FuncErrors = append(result.FuncErrors, err)
			met = false
		}

		if !met {
			return false, nil
		}
	}

	return true, nil
}

func (r *FieldResult) add(issue models.ValidationIssue) {
	if issue.Severity == models.SeverityError {
		r.Errors = append(r.Errors, issue)
	} else {
		r.Warnings = append(r.Warnings, issue)
	}
}

// Absorb folds one field outcome into the form aggregate.
func (f *FormResult) Absorb(field FieldResult) {
	f.Fields = append(f.Fields, field)
	f.Errors = append(f.Errors, field.Errors...)
	f.Warnings = append(f.Warnings, field.Warnings...)
	f.FuncErrors = append(f.FuncErrors, field.FuncErrors...)

	if len(field.Errors) > 0 {
		f.Valid = false
	}
}

// isEmpty treats nil, empty strings, and empty collections as absent.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func displayName(field models.Field) string {
	if field.Name != "" {
		return field.Name
	}

	return field.ID
}
