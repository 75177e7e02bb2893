package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleLeaf(t *testing.T) {
	r, err := Parse([]byte(`{"combinator":"and","rules":[{"field":"age","operator":">=","value":18}]}`), DefaultLimits())
	require.NoError(t, err)
	group, ok := r.Root.(*Group)
	require.True(t, ok)
	assert.Equal(t, And, group.Combinator)
	require.Len(t, group.Rules, 1)
	leaf, ok := group.Rules[0].(*Condition)
	require.True(t, ok)
	assert.Equal(t, "age", leaf.Field)
	assert.Equal(t, OpGreaterOrEqual, leaf.Operator)
	assert.Equal(t, float64(18), leaf.Value.Num)
}

func TestParseEmptyDocumentIsTrue(t *testing.T) {
	r, err := Parse(nil, DefaultLimits())
	require.NoError(t, err)
	group, ok := r.Root.(*Group)
	require.True(t, ok)
	assert.Empty(t, group.Rules)
}

func TestParseRejectsTopLevelEmptyRules(t *testing.T) {
	_, err := Parse([]byte(`{"combinator":"and","rules":[]}`), DefaultLimits())
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "RULE_PARSE_ERROR", pe.Code)
}

func TestParseRejectsUnknownOperator(t *testing.T) {
	_, err := Parse([]byte(`{"combinator":"and","rules":[{"field":"x","operator":"~=","value":1}]}`), DefaultLimits())
	require.Error(t, err)
}

func TestParseRejectsUnknownCombinator(t *testing.T) {
	_, err := Parse([]byte(`{"combinator":"xor","rules":[{"field":"x","operator":"=","value":1}]}`), DefaultLimits())
	require.Error(t, err)
}

func TestParseRejectsEmptyFieldName(t *testing.T) {
	_, err := Parse([]byte(`{"combinator":"and","rules":[{"field":"","operator":"=","value":1}]}`), DefaultLimits())
	require.Error(t, err)
}

func TestParseRejectsExcessiveDepth(t *testing.T) {
	doc := `{"field":"x","operator":"=","value":1}`
	for i := 0; i < 5; i++ {
		doc = `{"combinator":"and","rules":[` + doc + `]}`
	}
	_, err := Parse([]byte(doc), Limits{MaxDepth: 2, MaxLeaves: 100})
	require.Error(t, err)
}

func TestParseRejectsExcessiveLeaves(t *testing.T) {
	doc := `{"combinator":"and","rules":[`
	for i := 0; i < 5; i++ {
		if i > 0 {
			doc += ","
		}
		doc += `{"field":"x","operator":"=","value":1}`
	}
	doc += `]}`
	_, err := Parse([]byte(doc), Limits{MaxDepth: 32, MaxLeaves: 3})
	require.Error(t, err)
}

func TestParseSerializeRoundTrip(t *testing.T) {
	original := `{"combinator":"or","rules":[{"field":"status","operator":"=","value":"active"},{"field":"score","operator":">","value":80}]}`
	r1, err := Parse([]byte(original), DefaultLimits())
	require.NoError(t, err)

	serialized, err := Serialize(r1)
	require.NoError(t, err)

	r2, err := Parse(serialized, DefaultLimits())
	require.NoError(t, err)

	reserialized, err := Serialize(r2)
	require.NoError(t, err)
	assert.JSONEq(t, string(serialized), string(reserialized))
}

func TestFieldNames(t *testing.T) {
	r, err := Parse([]byte(`{"combinator":"and","rules":[
		{"field":"age","operator":">=","value":18},
		{"combinator":"or","rules":[{"field":"status","operator":"=","value":"active"},{"field":"age","operator":"<","value":99}]}
	]}`), DefaultLimits())
	require.NoError(t, err)
	names := FieldNames(r)
	assert.ElementsMatch(t, []string{"age", "status"}, names)
}

func TestFieldConfigValidateRejectsDualConfig(t *testing.T) {
	fc := &FieldConfig{
		FieldName:         "totalAmount",
		DataServiceConfig: &DataServiceConfig{Kind: DataServiceREST, Endpoint: "https://example.test"},
		CalculatorConfig:  &CalculatorConfig{Kind: CalculatorExpression, Expression: "#a + #b"},
	}
	err := fc.Validate()
	require.Error(t, err)
}

func TestFieldConfigValidateRejectsMapperWithoutDataService(t *testing.T) {
	fc := &FieldConfig{
		FieldName:        "creditScore",
		MapperExpression: "data.score",
	}
	err := fc.Validate()
	require.Error(t, err)
}

func TestFieldConfigValidateRejectsBadFieldName(t *testing.T) {
	fc := &FieldConfig{FieldName: "9invalid"}
	err := fc.Validate()
	require.Error(t, err)
}

func TestMergedFieldMappingsChildWins(t *testing.T) {
	parent := &EntityType{FieldMappings: map[string]string{"name": "profile.name", "email": "profile.email"}}
	child := &EntityType{FieldMappings: map[string]string{"email": "contact.email"}}
	merged := MergedFieldMappings(parent, child)
	assert.Equal(t, "profile.name", merged["name"])
	assert.Equal(t, "contact.email", merged["email"])
}
