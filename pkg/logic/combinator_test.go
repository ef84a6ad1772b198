package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/registry"
)

func newTestCombinator(t *testing.T) (*Combinator, *registry.Registry) {
	t.Helper()

	reg := registry.New(nil)
	eval := condition.NewEvaluator(reg, nil)

	comb, err := NewCombinator(eval, reg, nil)
	require.NoError(t, err)

	return comb, reg
}

func cond(id, field string, op models.Operator, value any) models.Condition {
	return models.Condition{ID: id, Field: field, Operator: op, Value: value}
}

func weighted(id, field string, op models.Operator, value any, weight float64) models.Condition {
	c := cond(id, field, op, value)
	c.Weight = &weight

	return c
}

func TestCombine_And(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": "x"}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicAnd}, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, "x"),
	}, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.InDelta(t, 1.0, result.Score, 0.0001)

	result, err = comb.Combine(models.LogicSpec{Kind: models.LogicAnd}, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, "y"),
	}, ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.InDelta(t, 0.5, result.Score, 0.0001)
}

func TestCombine_AndEmptySetPasses(t *testing.T) {
	comb, _ := newTestCombinator(t)

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicAnd}, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.InDelta(t, 1.0, result.Score, 0.0001)
}

func TestCombine_Or(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1)}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicOr}, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(2)),
		cond("c2", "a", models.OperatorEquals, float64(1)),
	}, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)

	result, err = comb.Combine(models.LogicSpec{Kind: models.LogicOr}, nil, ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed, "empty OR set fails")
}

func TestCombine_Not(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1)}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicNot}, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(2)),
	}, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)

	_, err = comb.Combine(models.LogicSpec{Kind: models.LogicNot}, nil, ctx)
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestCombine_Xor(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": float64(1)}

	one := []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, float64(2)),
	}
	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicXor}, one, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)

	both := []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, float64(1)),
	}
	result, err = comb.Combine(models.LogicSpec{Kind: models.LogicXor}, both, ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed, "exactly one must pass")
}

func TestCombine_Weighted(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": float64(2), "c": float64(99)}

	threshold := 0.6
	spec := models.LogicSpec{Kind: models.LogicWeighted, Threshold: &threshold}

	conds := []models.Condition{
		weighted("c1", "a", models.OperatorEquals, float64(1), 3),
		weighted("c2", "b", models.OperatorEquals, float64(2), 1),
		weighted("c3", "c", models.OperatorEquals, float64(0), 2),
	}

	result, err := comb.Combine(spec, conds, ctx)
	require.NoError(t, err)
	assert.InDelta(t, 4.0/6.0, result.Score, 0.0001)
	assert.True(t, result.Passed)

	strict := 0.7
	spec.Threshold = &strict
	result, err = comb.Combine(spec, conds, ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestCombine_WeightedScoreMonotonic(t *testing.T) {
	comb, _ := newTestCombinator(t)

	threshold := 0.0
	spec := models.LogicSpec{Kind: models.LogicWeighted, Threshold: &threshold}

	conds := []models.Condition{
		weighted("c1", "a", models.OperatorEquals, float64(1), 1),
		weighted("c2", "b", models.OperatorEquals, float64(1), 1),
		weighted("c3", "c", models.OperatorEquals, float64(1), 1),
	}

	// Flipping one more condition to pass never lowers the score.
	prev := -1.0
	for passing := 0; passing <= 3; passing++ {
		ctx := map[string]any{}
		for i, key := range []string{"a", "b", "c"} {
			if i < passing {
				ctx[key] = float64(1)
			} else {
				ctx[key] = float64(0)
			}
		}

		result, err := comb.Combine(spec, conds, ctx)
		require.NoError(t, err)
		assert.Greater(t, result.Score, prev)
		prev = result.Score
	}
}

func TestCombine_WeightedDefaultThresholdRequiresAll(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": float64(0)}

	conds := []models.Condition{
		weighted("c1", "a", models.OperatorEquals, float64(1), 1),
		weighted("c2", "b", models.OperatorEquals, float64(1), 1),
	}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicWeighted}, conds, ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed, "default threshold is 1.0")
}

func TestCombine_WeightedZeroTotalWeightIsVacuous(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(0), "b": float64(0)}

	// With all weights zero there is no requirement to satisfy: the set
	// scores 1 and passes at any threshold, even when every condition fails.
	conds := []models.Condition{
		weighted("c1", "a", models.OperatorEquals, float64(1), 0),
		weighted("c2", "b", models.OperatorEquals, float64(1), 0),
	}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicWeighted}, conds, ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Score, 0.0001)
	assert.True(t, result.Passed)
}

func TestCombine_CustomExpression(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": float64(0)}

	spec := models.LogicSpec{
		Kind:       models.LogicCustom,
		Expression: `results["c1"] && !results["c2"]`,
	}

	result, err := comb.Combine(spec, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, float64(1)),
	}, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestCombine_CustomExpressionUsesScore(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": float64(0)}

	spec := models.LogicSpec{Kind: models.LogicCustom, Expression: `score >= 0.5`}

	result, err := comb.Combine(spec, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, float64(1)),
	}, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestCombine_CustomExpressionInvalid(t *testing.T) {
	comb, _ := newTestCombinator(t)

	tests := []struct {
		name       string
		expression string
	}{
		{"syntax error", `results[`},
		{"non-boolean result", `score`},
		{"unknown variable", `input.secret == "x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := models.LogicSpec{Kind: models.LogicCustom, Expression: tt.expression}

			_, err := comb.Combine(spec, nil, nil)
			require.Error(t, err)
			assert.True(t, models.IsConfigError(err))
		})
	}
}

func TestCombine_CustomExpressionCached(t *testing.T) {
	comb, _ := newTestCombinator(t)

	spec := models.LogicSpec{Kind: models.LogicCustom, Expression: `score >= 0.0`}

	for n := 0; n < 3; n++ {
		_, err := comb.Combine(spec, nil, nil)
		require.NoError(t, err)
	}

	assert.Len(t, comb.programs, 1)
}

func TestCombine_CustomCombinatorFunction(t *testing.T) {
	comb, reg := newTestCombinator(t)

	reg.RegisterCombinator("majority", func(results map[string]bool) (bool, error) {
		passed := 0
		for _, ok := range results {
			if ok {
				passed++
			}
		}

		return passed*2 > len(results), nil
	})

	spec := models.LogicSpec{Kind: models.LogicCustom, Combinator: "majority"}
	ctx := map[string]any{"a": float64(1), "b": float64(1), "c": float64(0)}

	result, err := comb.Combine(spec, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, float64(1)),
		cond("c3", "c", models.OperatorEquals, float64(1)),
	}, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed)
}

func TestCombine_CustomCombinatorPanicIsolated(t *testing.T) {
	comb, reg := newTestCombinator(t)

	reg.RegisterCombinator("panics", func(_ map[string]bool) (bool, error) {
		panic("nil map")
	})

	spec := models.LogicSpec{Kind: models.LogicCustom, Combinator: "panics"}

	result, err := comb.Combine(spec, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Errors, 1)

	var funcErr *condition.FuncError
	assert.ErrorAs(t, result.Errors[0], &funcErr)
}

func TestCombine_FuncErrorCountsAsFalse(t *testing.T) {
	comb, reg := newTestCombinator(t)

	reg.RegisterCondition("boom", func(_ any, _ map[string]any) (bool, error) {
		return false, errors.New("backend down")
	})

	conds := []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		{ID: "c2", Field: "a", Operator: models.OperatorCustom, CustomFunc: "boom"},
	}
	ctx := map[string]any{"a": float64(1)}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicAnd}, conds, ctx)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Len(t, result.Errors, 1)

	result, err = comb.Combine(models.LogicSpec{Kind: models.LogicOr}, conds, ctx)
	require.NoError(t, err)
	assert.True(t, result.Passed, "the healthy condition still passes the OR")
}

func TestCombine_TraceRecordsEveryCondition(t *testing.T) {
	comb, _ := newTestCombinator(t)
	ctx := map[string]any{"a": float64(1), "b": float64(0)}

	result, err := comb.Combine(models.LogicSpec{Kind: models.LogicAnd}, []models.Condition{
		cond("c1", "a", models.OperatorEquals, float64(1)),
		cond("c2", "b", models.OperatorEquals, float64(1)),
	}, ctx)
	require.NoError(t, err)

	require.Len(t, result.Trace, 3)
	assert.Contains(t, result.Trace[0], "PASS")
	assert.Contains(t, result.Trace[1], "FAIL")
	assert.Contains(t, result.Trace[2], "and =>")
}

func TestCombine_UnknownKind(t *testing.T) {
	comb, _ := newTestCombinator(t)

	_, err := comb.Combine(models.LogicSpec{Kind: "nand"}, nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "nand")
}
