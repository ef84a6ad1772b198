package condition

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

func newTestEvaluator(t *testing.T) (*Evaluator, *registry.Registry) {
	t.Helper()

	reg := registry.New(nil)

	return NewEvaluator(reg, nil), reg
}

func TestEvaluate_Operators(t *testing.T) {
	eval, _ := newTestEvaluator(t)

	ctx := map[string]any{
		"amount":  float64(1500),
		"status":  "active",
		"email":   "ada@example.com",
		"tags":    []any{"vip", "beta"},
		"country": "BR",
		"nested":  map[string]any{"value": "deep"},
		"blank":   "",
		"nothing": nil,
	}

	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"equals string", models.Condition{ID: "c", Field: "status", Operator: models.OperatorEquals, Value: "active"}, true},
		{"equals mismatch", models.Condition{ID: "c", Field: "status", Operator: models.OperatorEquals, Value: "inactive"}, false},
		{"equals numeric coercion", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorEquals, Value: 1500}, true},
		{"equals numeric string", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorEquals, Value: "1500"}, true},
		{"not equals", models.Condition{ID: "c", Field: "status", Operator: models.OperatorNotEquals, Value: "inactive"}, true},
		{"greater than", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorGreaterThan, Value: float64(1000)}, true},
		{"greater than false", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorGreaterThan, Value: float64(2000)}, false},
		{"greater than non-numeric", models.Condition{ID: "c", Field: "status", Operator: models.OperatorGreaterThan, Value: float64(10)}, false},
		{"less than", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorLessThan, Value: float64(2000)}, true},
		{"greater or equal boundary", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorGreaterOrEqual, Value: float64(1500)}, true},
		{"less or equal boundary", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorLessOrEqual, Value: float64(1500)}, true},
		{"contains substring", models.Condition{ID: "c", Field: "email", Operator: models.OperatorContains, Value: "@example"}, true},
		{"contains list membership", models.Condition{ID: "c", Field: "tags", Operator: models.OperatorContains, Value: "vip"}, true},
		{"not contains", models.Condition{ID: "c", Field: "tags", Operator: models.OperatorNotContains, Value: "gamma"}, true},
		{"starts with", models.Condition{ID: "c", Field: "email", Operator: models.OperatorStartsWith, Value: "ada"}, true},
		{"ends with", models.Condition{ID: "c", Field: "email", Operator: models.OperatorEndsWith, Value: ".com"}, true},
		{"starts with on number is false", models.Condition{ID: "c", Field: "amount", Operator: models.OperatorStartsWith, Value: "15"}, false},
		{"regex", models.Condition{ID: "c", Field: "email", Operator: models.OperatorRegex, Value: `^[a-z]+@`}, true},
		{"in list", models.Condition{ID: "c", Field: "country", Operator: models.OperatorInList, Value: []any{"BR", "AR"}}, true},
		{"not in list", models.Condition{ID: "c", Field: "country", Operator: models.OperatorNotInList, Value: []any{"US", "CA"}}, true},
		{"exists", models.Condition{ID: "c", Field: "nested.value", Operator: models.OperatorExists}, true},
		{"exists empty string", models.Condition{ID: "c", Field: "blank", Operator: models.OperatorExists}, true},
		{"exists nil value", models.Condition{ID: "c", Field: "nothing", Operator: models.OperatorExists}, false},
		{"not exists", models.Condition{ID: "c", Field: "missing.path", Operator: models.OperatorNotExists}, true},
		{"missing field equals is false", models.Condition{ID: "c", Field: "missing", Operator: models.OperatorEquals, Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(tt.cond, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_IgnoreCase(t *testing.T) {
	eval, _ := newTestEvaluator(t)
	ctx := map[string]any{"status": "Active"}

	sensitive := models.Condition{ID: "c", Field: "status", Operator: models.OperatorEquals, Value: "active"}
	got, err := eval.Evaluate(sensitive, ctx)
	require.NoError(t, err)
	assert.False(t, got, "comparison is case-sensitive by default")

	insensitive := sensitive
	insensitive.IgnoreCase = true
	got, err = eval.Evaluate(insensitive, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	regex := models.Condition{ID: "c", Field: "status", Operator: models.OperatorRegex, Value: "^active$", IgnoreCase: true}
	got, err = eval.Evaluate(regex, ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	eval, _ := newTestEvaluator(t)

	_, err := eval.Evaluate(models.Condition{ID: "c", Field: "x", Operator: "between"}, nil)
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
	assert.ErrorContains(t, err, "between")
}

func TestEvaluate_InvalidRegex(t *testing.T) {
	eval, _ := newTestEvaluator(t)

	_, err := eval.Evaluate(models.Condition{
		ID: "c", Field: "x", Operator: models.OperatorRegex, Value: "([",
	}, map[string]any{"x": "y"})
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestEvaluate_RegexCacheReuse(t *testing.T) {
	eval, _ := newTestEvaluator(t)
	ctx := map[string]any{"email": "ada@example.com"}
	cond := models.Condition{ID: "c", Field: "email", Operator: models.OperatorRegex, Value: `@example\.com$`}

	for n := 0; n < 3; n++ {
		got, err := eval.Evaluate(cond, ctx)
		require.NoError(t, err)
		assert.True(t, got)
	}

	assert.Len(t, eval.regexCache, 1)
}

func TestEvaluate_CustomFunction(t *testing.T) {
	eval, reg := newTestEvaluator(t)

	reg.RegisterCondition("is_even", func(value any, _ map[string]any) (bool, error) {
		n, ok := ToNumber(value)

		return ok && int(n)%2 == 0, nil
	})

	cond := models.Condition{
		ID: "c", Field: "n", Operator: models.OperatorCustom, CustomFunc: "is_even",
	}

	got, err := eval.Evaluate(cond, map[string]any{"n": float64(4)})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = eval.Evaluate(cond, map[string]any{"n": float64(3)})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_CustomFunctionError(t *testing.T) {
	eval, reg := newTestEvaluator(t)

	reg.RegisterCondition("boom", func(_ any, _ map[string]any) (bool, error) {
		return false, errors.New("backend unavailable")
	})

	got, err := eval.Evaluate(models.Condition{
		ID: "c1", Field: "x", Operator: models.OperatorCustom, CustomFunc: "boom",
	}, nil)

	assert.False(t, got)

	var funcErr *FuncError
	require.ErrorAs(t, err, &funcErr)
	assert.Equal(t, "c1", funcErr.ConditionID)
	assert.Equal(t, "boom", funcErr.Func)
}

func TestEvaluate_CustomFunctionPanic(t *testing.T) {
	eval, reg := newTestEvaluator(t)

	reg.RegisterCondition("panics", func(_ any, _ map[string]any) (bool, error) {
		panic("unexpected nil")
	})

	got, err := eval.Evaluate(models.Condition{
		ID: "c1", Field: "x", Operator: models.OperatorCustom, CustomFunc: "panics",
	}, nil)

	assert.False(t, got)

	var funcErr *FuncError
	require.ErrorAs(t, err, &funcErr)
	assert.ErrorContains(t, funcErr, "panic")
}

func TestEvaluate_CustomFunctionTimeout(t *testing.T) {
	eval, reg := newTestEvaluator(t)
	eval.SetCustomTimeout(20 * time.Millisecond)

	reg.RegisterCondition("slow", func(_ any, _ map[string]any) (bool, error) {
		time.Sleep(500 * time.Millisecond)

		return true, nil
	})

	got, err := eval.Evaluate(models.Condition{
		ID: "c1", Field: "x", Operator: models.OperatorCustom, CustomFunc: "slow",
	}, nil)

	assert.False(t, got)

	var funcErr *FuncError
	require.ErrorAs(t, err, &funcErr)
	assert.ErrorContains(t, funcErr, "timed out")
}

func TestEvaluate_CustomFunctionNotRegistered(t *testing.T) {
	eval, _ := newTestEvaluator(t)

	_, err := eval.Evaluate(models.Condition{
		ID: "c1", Field: "x", Operator: models.OperatorCustom, CustomFunc: "ghost",
	}, nil)

	require.Error(t, err)
	assert.True(t, models.IsConfigError(err), "unregistered function is a caller bug, not a FuncError")
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float64", float64(1.5), 1.5, true},
		{"int", 42, 42, true},
		{"int64", int64(7), 7, true},
		{"numeric string", "1500", 1500, true},
		{"padded numeric string", " 1500 ", 1500, true},
		{"non-numeric string", "abc", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}
