package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesengine/cache"
	"rulesengine/cache/memory"
	"rulesengine/calculator"
	"rulesengine/dataservice"
	"rulesengine/depgraph"
	"rulesengine/resolver"
	"rulesengine/rule"
)

// fakeClient is a dataservice.Client test double that returns a canned
// response per endpoint after an artificial latency, and counts calls.
type fakeClient struct {
	latency   time.Duration
	responses map[string]map[string]interface{}
	calls     map[string]int
}

func newFakeClient(latency time.Duration) *fakeClient {
	return &fakeClient{latency: latency, responses: make(map[string]map[string]interface{}), calls: make(map[string]int)}
}

func (f *fakeClient) Execute(ctx context.Context, cfg rule.DataServiceConfig, variables map[string]interface{}) (*dataservice.Response, error) {
	f.calls[cfg.Endpoint]++
	select {
	case <-time.After(f.latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &dataservice.Response{StatusCode: 200, Data: f.responses[cfg.Endpoint]}, nil
}

func (f *fakeClient) Validate(ctx context.Context, cfg rule.DataServiceConfig) error { return nil }

func intField(name string) rule.FieldConfig {
	return rule.FieldConfig{FieldName: name, FieldType: rule.FieldNumber, Dependencies: map[string]struct{}{}}
}

func TestScenarioCalculatedFieldExpressionViaResolver(t *testing.T) {
	totalAmount := rule.FieldConfig{
		FieldName:    "totalAmount",
		FieldType:    rule.FieldNumber,
		IsCalculated: true,
		CalculatorConfig: &rule.CalculatorConfig{
			Kind:       rule.CalculatorExpression,
			Expression: "#price * #quantity",
		},
		Dependencies: map[string]struct{}{"price": {}, "quantity": {}},
	}
	configs := []rule.FieldConfig{intField("price"), intField("quantity"), totalAmount}

	g, _, err := depgraph.Build(configs)
	require.NoError(t, err)
	plan, err := depgraph.Plan(g, []string{"totalAmount"}, depgraph.PlanOptions{})
	require.NoError(t, err)

	execCtx := rule.ExecutionContext{FieldValues: map[string]rule.Value{
		"price":    {Kind: rule.KindNumber, Num: 10},
		"quantity": {Kind: rule.KindNumber, Num: 5},
	}}

	result, err := resolver.Resolve(context.Background(), plan, execCtx, memory.New(), resolver.Dependencies{
		Graph:       g,
		Calculators: calculator.NewRegistry(nil),
	})
	require.NoError(t, err)
	assert.False(t, result.HasErrors)
	assert.Equal(t, float64(50), result.Values["totalAmount"].Num)
	assert.Equal(t, resolver.StatusResolved, result.PerFieldStatus["totalAmount"])
}

func TestScenarioParallelFetchOfTwoIndependentDataServices(t *testing.T) {
	client := newFakeClient(100 * time.Millisecond)
	client.responses["https://credit.example.com"] = map[string]interface{}{"score": 720.0}
	client.responses["https://accounts.example.com"] = map[string]interface{}{"status": "active"}

	creditScore := rule.FieldConfig{
		FieldName: "creditScore", FieldType: rule.FieldNumber,
		MapperExpression:  "score",
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST, Endpoint: "https://credit.example.com", Method: "GET"},
		Dependencies:      map[string]struct{}{},
	}
	accountStatus := rule.FieldConfig{
		FieldName: "accountStatus", FieldType: rule.FieldString,
		MapperExpression:  "status",
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST, Endpoint: "https://accounts.example.com", Method: "GET"},
		Dependencies:      map[string]struct{}{},
	}

	g, _, err := depgraph.Build([]rule.FieldConfig{creditScore, accountStatus})
	require.NoError(t, err)
	plan, err := depgraph.Plan(g, []string{"creditScore", "accountStatus"}, depgraph.PlanOptions{})
	require.NoError(t, err)

	start := time.Now()
	result, err := resolver.Resolve(context.Background(), plan, rule.ExecutionContext{}, memory.New(), resolver.Dependencies{
		Graph:       g,
		DataService: client,
		Calculators: calculator.NewRegistry(nil),
	})
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.False(t, result.HasErrors)
	assert.Equal(t, float64(720), result.Values["creditScore"].Num)
	assert.Equal(t, "active", result.Values["accountStatus"].Str)
	assert.Less(t, elapsed, 180*time.Millisecond, "independent fetches should run concurrently, not sequentially")
}

func TestContextFieldValueShortCircuitsDataServiceCall(t *testing.T) {
	client := newFakeClient(0)
	client.responses["https://accounts.example.com"] = map[string]interface{}{"status": "active"}

	accountStatus := rule.FieldConfig{
		FieldName: "accountStatus", FieldType: rule.FieldString,
		MapperExpression:  "status",
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST, Endpoint: "https://accounts.example.com", Method: "GET"},
		Dependencies:      map[string]struct{}{},
	}

	g, _, err := depgraph.Build([]rule.FieldConfig{accountStatus})
	require.NoError(t, err)
	plan, err := depgraph.Plan(g, []string{"accountStatus"}, depgraph.PlanOptions{})
	require.NoError(t, err)

	execCtx := rule.ExecutionContext{FieldValues: map[string]rule.Value{"accountStatus": {Kind: rule.KindString, Str: "pending"}}}
	result, err := resolver.Resolve(context.Background(), plan, execCtx, memory.New(), resolver.Dependencies{
		Graph:       g,
		DataService: client,
		Calculators: calculator.NewRegistry(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", result.Values["accountStatus"].Str)
	assert.Equal(t, 0, client.calls["https://accounts.example.com"])
}

func TestRequiredFieldFailureDegradesToDefault(t *testing.T) {
	client := newFakeClient(0)
	defaultVal := rule.Value{Kind: rule.KindString, Str: "unknown"}
	creditRating := rule.FieldConfig{
		FieldName: "creditRating", FieldType: rule.FieldString, IsRequired: true,
		MapperExpression:  "missingKey",
		DefaultValue:      &defaultVal,
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST, Endpoint: "https://credit.example.com", Method: "GET"},
		Dependencies:      map[string]struct{}{},
	}
	client.responses["https://credit.example.com"] = map[string]interface{}{"other": "value"}

	g, _, err := depgraph.Build([]rule.FieldConfig{creditRating})
	require.NoError(t, err)
	plan, err := depgraph.Plan(g, []string{"creditRating"}, depgraph.PlanOptions{})
	require.NoError(t, err)

	result, err := resolver.Resolve(context.Background(), plan, rule.ExecutionContext{}, memory.New(), resolver.Dependencies{
		Graph:       g,
		DataService: client,
		Calculators: calculator.NewRegistry(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "unknown", result.Values["creditRating"].Str)
	assert.Equal(t, resolver.StatusDefaulted, result.PerFieldStatus["creditRating"])
	assert.True(t, result.HasErrors)
}

func TestMemoizationWithinOneResolution(t *testing.T) {
	client := newFakeClient(0)
	client.responses["https://shared.example.com"] = map[string]interface{}{"a": 1.0, "b": 2.0}

	fieldA := rule.FieldConfig{
		FieldName: "fieldA", FieldType: rule.FieldNumber, MapperExpression: "a",
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST, Endpoint: "https://shared.example.com", Method: "GET"},
		Dependencies:      map[string]struct{}{},
	}
	fieldB := rule.FieldConfig{
		FieldName: "fieldB", FieldType: rule.FieldNumber, MapperExpression: "b",
		DataServiceConfig: &rule.DataServiceConfig{Kind: rule.DataServiceREST, Endpoint: "https://shared.example.com", Method: "GET"},
		Dependencies:      map[string]struct{}{},
	}

	g, _, err := depgraph.Build([]rule.FieldConfig{fieldA, fieldB})
	require.NoError(t, err)
	plan, err := depgraph.Plan(g, []string{"fieldA", "fieldB"}, depgraph.PlanOptions{})
	require.NoError(t, err)
	// Same DataServiceConfig for both fields: the planner batches them into
	// one ParallelExecutionGroup, so only one call should ever be issued.
	require.Len(t, plan.ParallelGroups, 1)

	result, err := resolver.Resolve(context.Background(), plan, rule.ExecutionContext{}, memory.New(), resolver.Dependencies{
		Graph:       g,
		DataService: client,
		Calculators: calculator.NewRegistry(nil),
	})
	require.NoError(t, err)
	assert.False(t, result.HasErrors)
	assert.Equal(t, float64(1), result.Values["fieldA"].Num)
	assert.Equal(t, float64(2), result.Values["fieldB"].Num)
	assert.Equal(t, 1, client.calls["https://shared.example.com"])
}

var _ cache.RequestCache = (*memory.Cache)(nil)
