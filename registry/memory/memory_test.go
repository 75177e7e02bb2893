package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesengine/registry/memory"
	"rulesengine/rule"
)

func TestRegisterAndFindFieldConfig(t *testing.T) {
	reg := memory.New()
	require.NoError(t, reg.RegisterField(rule.FieldConfig{FieldName: "age", FieldType: rule.FieldNumber}))

	cfg, err := reg.FindFieldConfig("age")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, rule.FieldNumber, cfg.FieldType)

	exists, err := reg.ExistsFieldName("age")
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := reg.FindFieldConfig("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRegisterRejectsInvalidFieldConfig(t *testing.T) {
	reg := memory.New()
	both := &rule.CalculatorConfig{Kind: rule.CalculatorExpression, Expression: "1"}
	err := reg.RegisterField(rule.FieldConfig{
		FieldName:         "bad",
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST},
		CalculatorConfig:  both,
	})
	assert.Error(t, err)
}

func TestFindFieldConfigsByNameFiltersMisses(t *testing.T) {
	reg := memory.New()
	require.NoError(t, reg.RegisterField(rule.FieldConfig{FieldName: "a"}))
	require.NoError(t, reg.RegisterField(rule.FieldConfig{FieldName: "b"}))

	found, err := reg.FindFieldConfigsByName([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestVersionBumpsOnEveryMutation(t *testing.T) {
	reg := memory.New()
	assert.Equal(t, 0, reg.Version())
	require.NoError(t, reg.RegisterField(rule.FieldConfig{FieldName: "a"}))
	assert.Equal(t, 1, reg.Version())
	reg.UnregisterField("a")
	assert.Equal(t, 2, reg.Version())
}

func TestRegisterAndFindEntityType(t *testing.T) {
	reg := memory.New()
	reg.RegisterEntityType(rule.EntityType{TypeName: "account", FieldMappings: map[string]string{"status": "status"}})

	et, err := reg.FindEntityType("account")
	require.NoError(t, err)
	require.NotNil(t, et)
	assert.Equal(t, "status", et.FieldMappings["status"])

	missing, err := reg.FindEntityType("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
