package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

func newTestChecker(t *testing.T) (*Checker, *registry.Registry) {
	t.Helper()

	reg := registry.New(nil)

	return NewChecker(reg, nil), reg
}

func TestCheck_UnregisteredFrameworkIsExempt(t *testing.T) {
	checker, _ := newTestChecker(t)

	fields := []models.Field{
		{ID: "ssn", Name: "SSN", Type: models.FieldTypeText, ComplianceRequired: true},
	}

	verdict, funcErrors := checker.Check("gdpr", fields, map[string]any{"ssn": "123"})
	assert.Empty(t, funcErrors)
	assert.Equal(t, models.ComplianceExempt, verdict.Status)
	assert.Contains(t, verdict.Message, "gdpr")
	assert.Empty(t, verdict.Fields, "nothing was checked")
}

func TestCheck_CompliantAndNonCompliantFields(t *testing.T) {
	checker, reg := newTestChecker(t)

	reg.RegisterFramework("pii", func(field models.Field, value any) bool {
		s, ok := value.(string)

		return ok && s != ""
	})

	fields := []models.Field{
		{ID: "ssn", Name: "SSN", Type: models.FieldTypeText, ComplianceRequired: true},
		{ID: "note", Name: "Note", Type: models.FieldTypeText},
		{ID: "dob", Name: "DOB", Type: models.FieldTypeText, ComplianceRequired: true},
	}

	verdict, funcErrors := checker.Check("pii", fields, map[string]any{
		"ssn":  "masked",
		"note": "ignored either way",
	})
	assert.Empty(t, funcErrors)
	assert.Equal(t, models.ComplianceNonCompliant, verdict.Status)

	// Only compliance_required fields are checked.
	require.Len(t, verdict.Fields, 2)
	assert.True(t, verdict.Fields[0].Compliant)
	assert.False(t, verdict.Fields[1].Compliant)
	assert.Contains(t, verdict.Fields[1].Message, "dob")
}

func TestCheck_AllCompliant(t *testing.T) {
	checker, reg := newTestChecker(t)

	reg.RegisterFramework("always", func(models.Field, any) bool { return true })

	fields := []models.Field{
		{ID: "a", Name: "A", Type: models.FieldTypeText, ComplianceRequired: true},
	}

	verdict, _ := checker.Check("always", fields, map[string]any{"a": "x"})
	assert.Equal(t, models.ComplianceCompliant, verdict.Status)
}

func TestCheck_NoFieldsRequireChecks(t *testing.T) {
	checker, reg := newTestChecker(t)

	reg.RegisterFramework("pii", func(models.Field, any) bool { return true })

	fields := []models.Field{
		{ID: "note", Name: "Note", Type: models.FieldTypeText},
	}

	verdict, _ := checker.Check("pii", fields, nil)
	assert.Equal(t, models.ComplianceExempt, verdict.Status)
	assert.Equal(t, "no fields require compliance checks", verdict.Message)
}

func TestCheck_PanickingCheckerIsolated(t *testing.T) {
	checker, reg := newTestChecker(t)

	reg.RegisterFramework("flaky", func(field models.Field, _ any) bool {
		if field.ID == "bad" {
			panic("nil dereference")
		}

		return true
	})

	fields := []models.Field{
		{ID: "good", Name: "Good", Type: models.FieldTypeText, ComplianceRequired: true},
		{ID: "bad", Name: "Bad", Type: models.FieldTypeText, ComplianceRequired: true},
	}

	verdict, funcErrors := checker.Check("flaky", fields, nil)

	require.Len(t, funcErrors, 1)

	var funcErr *condition.FuncError
	assert.ErrorAs(t, funcErrors[0], &funcErr)

	assert.Equal(t, models.ComplianceNonCompliant, verdict.Status)
	require.Len(t, verdict.Fields, 2)
	assert.True(t, verdict.Fields[0].Compliant, "the panic only affects its own field")
	assert.False(t, verdict.Fields[1].Compliant)
}

func TestCheck_DotPathFieldValues(t *testing.T) {
	checker, reg := newTestChecker(t)

	var seen any

	reg.RegisterFramework("capture", func(_ models.Field, value any) bool {
		seen = value

		return true
	})

	fields := []models.Field{
		{ID: "patient.ssn", Name: "SSN", Type: models.FieldTypeText, ComplianceRequired: true},
	}

	_, _ = checker.Check("capture", fields, map[string]any{
		"patient": map[string]any{"ssn": "masked"},
	})

	assert.Equal(t, "masked", seen)
}
