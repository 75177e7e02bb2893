package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesengine/rule"
)

func num(n float64) rule.Value    { return rule.Value{Kind: rule.KindNumber, Num: n} }
func str(s string) rule.Value     { return rule.Value{Kind: rule.KindString, Str: s} }
func boolean(b bool) rule.Value   { return rule.Value{Kind: rule.KindBool, Bool: b} }
func list(vs ...rule.Value) rule.Value {
	return rule.Value{Kind: rule.KindList, Items: vs}
}

func mustParse(t *testing.T, json string) *rule.Rule {
	t.Helper()
	r, err := rule.Parse([]byte(json), rule.DefaultLimits())
	require.NoError(t, err)
	return r
}

func TestScenarioSimpleNumericAnd(t *testing.T) {
	r := mustParse(t, `{"combinator":"and","rules":[{"field":"age","operator":">=","value":18}]}`)
	res, err := Evaluate(r, map[string]rule.Value{"age": num(25)}, EvalOptions{Trace: true})
	require.NoError(t, err)
	assert.True(t, res.Result)
	require.NotNil(t, res.Trace)
}

func TestScenarioCoercionAcrossNestedOr(t *testing.T) {
	r := mustParse(t, `{"combinator":"or","rules":[{"field":"status","operator":"=","value":"active"},{"field":"score","operator":">","value":"80"}]}`)
	res, err := Evaluate(r, map[string]rule.Value{"status": str("pending"), "score": num(85)}, EvalOptions{})
	require.NoError(t, err)
	assert.True(t, res.Result)
}

func TestEmptyRuleIsTrue(t *testing.T) {
	res, err := Evaluate(nil, nil, EvalOptions{})
	require.NoError(t, err)
	assert.True(t, res.Result)
}

func TestIsEmptyOnMissingField(t *testing.T) {
	r := mustParse(t, `{"field":"x","operator":"isEmpty","value":null}`)
	res, err := Evaluate(r, map[string]rule.Value{}, EvalOptions{})
	require.NoError(t, err)
	assert.True(t, res.Result)

	r2 := mustParse(t, `{"field":"x","operator":"isNotEmpty","value":null}`)
	res2, err := Evaluate(r2, map[string]rule.Value{}, EvalOptions{})
	require.NoError(t, err)
	assert.False(t, res2.Result)
}

func TestBetweenInclusiveAndReversedBounds(t *testing.T) {
	r := mustParse(t, `{"field":"x","operator":"between","value":[10,20]}`)
	res, _ := Evaluate(r, map[string]rule.Value{"x": num(10)}, EvalOptions{})
	assert.True(t, res.Result)
	res, _ = Evaluate(r, map[string]rule.Value{"x": num(20)}, EvalOptions{})
	assert.True(t, res.Result)
	res, _ = Evaluate(r, map[string]rule.Value{"x": num(21)}, EvalOptions{})
	assert.False(t, res.Result)

	reversed := mustParse(t, `{"field":"x","operator":"between","value":[20,10]}`)
	res, _ = Evaluate(reversed, map[string]rule.Value{"x": num(15)}, EvalOptions{})
	assert.False(t, res.Result)
}

func TestInNotIn(t *testing.T) {
	r := mustParse(t, `{"field":"tier","operator":"in","value":["gold","platinum"]}`)
	res, _ := Evaluate(r, map[string]rule.Value{"tier": str("gold")}, EvalOptions{})
	assert.True(t, res.Result)
	res, _ = Evaluate(r, map[string]rule.Value{"tier": str("silver")}, EvalOptions{})
	assert.False(t, res.Result)

	notIn := mustParse(t, `{"field":"tier","operator":"notIn","value":["gold","platinum"]}`)
	res, _ = Evaluate(notIn, map[string]rule.Value{"tier": str("silver")}, EvalOptions{})
	assert.True(t, res.Result)
}

func TestContainsOnListMembership(t *testing.T) {
	result, outcomeKind := evalLeaf(rule.OpContains, list(str("a"), str("b")), true, str("b"))
	assert.True(t, result)
	assert.Equal(t, OutcomeMatched, outcomeKind)
}

func TestNullEqualsOnlyNull(t *testing.T) {
	assert.True(t, valuesEqual(rule.Null, rule.Null))
	assert.False(t, valuesEqual(rule.Null, str("")))
	assert.False(t, valuesEqual(str(""), rule.Null))
}

func TestShortCircuitDoesNotChangeResult(t *testing.T) {
	r := mustParse(t, `{"combinator":"and","rules":[
		{"field":"a","operator":"=","value":1},
		{"field":"b","operator":"=","value":2}
	]}`)
	values := map[string]rule.Value{"a": num(9), "b": num(2)}

	withTrace, _ := Evaluate(r, values, EvalOptions{Trace: true})
	withoutTrace, _ := Evaluate(r, values, EvalOptions{Trace: false})
	assert.Equal(t, withTrace.Result, withoutTrace.Result)
	assert.False(t, withoutTrace.Result)
}

func TestCoercionFailureReducesLeafToFalse(t *testing.T) {
	r := mustParse(t, `{"field":"x","operator":">","value":"not-a-number"}`)
	res, err := Evaluate(r, map[string]rule.Value{"x": num(5)}, EvalOptions{Trace: true})
	require.NoError(t, err)
	assert.False(t, res.Result)
	entry, ok := res.Trace.Root.(*TraceEntry)
	require.True(t, ok)
	assert.Equal(t, OutcomeError, entry.Outcome)
}

func TestEvaluateAfterSerializeRoundTripIsIdentical(t *testing.T) {
	r := mustParse(t, `{"combinator":"or","rules":[{"field":"a","operator":"=","value":1},{"field":"b","operator":"=","value":2}]}`)
	serialized, err := rule.Serialize(r)
	require.NoError(t, err)
	r2, err := rule.Parse(serialized, rule.DefaultLimits())
	require.NoError(t, err)

	values := map[string]rule.Value{"a": num(5), "b": num(2)}
	res1, _ := Evaluate(r, values, EvalOptions{})
	res2, _ := Evaluate(r2, values, EvalOptions{})
	assert.Equal(t, res1.Result, res2.Result)
}

func TestBooleanCoercionAliases(t *testing.T) {
	for _, truthy := range []string{"true", "1", "yes", "YES"} {
		b, ok := asBool(str(truthy))
		assert.True(t, ok)
		assert.True(t, b)
	}
	for _, falsy := range []string{"false", "0", "no", "NO"} {
		b, ok := asBool(str(falsy))
		assert.True(t, ok)
		assert.False(t, b)
	}
	_ = boolean(true)
}
