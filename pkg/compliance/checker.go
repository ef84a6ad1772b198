// Package compliance checks fields against named, pluggable rule-set
// frameworks.
package compliance

import (
	"fmt"
	"log/slog"

	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/dotpath"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

// Checker runs registered compliance frameworks against field metadata.
// Frameworks are pluggable: an unknown framework name yields an exempt
// verdict with an explanatory message, never an error, so the absence of a
// validator cannot block execution.
type Checker struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewChecker creates a checker backed by the given registry.
func NewChecker(reg *registry.Registry, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{registry: reg, logger: logger}
}

// Check evaluates one framework against the fields that declare
// compliance_required. A panicking checker marks only its field
// non-compliant; the failure is reported for the audit trail, never
// propagated.
func (c *Checker) Check(framework string, fields []models.Field, values map[string]any) (models.ComplianceVerdict, []error) {
	fn, ok := c.registry.Framework(framework)
	if !ok {
		return models.ComplianceVerdict{
			Framework: framework,
			Status:    models.ComplianceExempt,
			Message:   fmt.Sprintf("no checker registered for framework %q", framework),
		}, nil
	}

	verdict := models.ComplianceVerdict{
		Framework: framework,
		Status:    models.ComplianceCompliant,
	}

	var funcErrors []error

	for _, field := range fields {
		if !field.ComplianceRequired {
			continue
		}

		value, _ := dotpath.Resolve(field.ID, values)

		compliant, err := checkField(framework, fn, field, value)
		if err != nil {
			funcErrors = append(funcErrors, err)
		}

		result := models.FieldComplianceResult{FieldID: field.ID, Compliant: compliant}
		if !compliant {
			result.Message = fmt.Sprintf("field %s is non-compliant under %s", field.ID, framework)
			verdict.Status = models.ComplianceNonCompliant
		}

		verdict.Fields = append(verdict.Fields, result)
	}

	if len(verdict.Fields) == 0 {
		verdict.Status = models.ComplianceExempt
		verdict.Message = "no fields require compliance checks"
	}

	return verdict, funcErrors
}

// checkField isolates panics inside a framework checker; a panic counts as
// non-compliant for that field only.
func checkField(framework string, fn registry.ComplianceFunc, field models.Field, value any) (compliant bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			compliant = false
			err = &condition.FuncError{
				Func: "compliance:" + framework,
				Err:  fmt.Errorf("panic checking field %s: %v", field.ID, r),
			}
		}
	}()

	return fn(field, value), nil
}
