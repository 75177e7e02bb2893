// Package resolver implements the field resolver (C7): given a
// depgraph.ResolutionPlan and an ExecutionContext, it fans out to
// data-service clients concurrently, applies the reflective mapper,
// memoizes per-resolution, then runs calculators in topological order.
//
// Concurrency follows the teacher's worker.Pool fan-out idiom but is
// restructured onto golang.org/x/sync/errgroup bounded by semaphores
// sized to dataService.globalConcurrency/perEndpointConcurrency
// (spec.md §5), since each group's lifetime is scoped to one resolution
// rather than a long-running service.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rulesengine/cache"
	"rulesengine/calculator"
	"rulesengine/dataservice"
	"rulesengine/depgraph"
	"rulesengine/mapper"
	"rulesengine/rule"
)

// FieldStatus records how a field's value was obtained, or why it was not.
type FieldStatus string

const (
	StatusResolved  FieldStatus = "RESOLVED"
	StatusDefaulted FieldStatus = "DEFAULTED"
	StatusError     FieldStatus = "ERROR"
)

// Result is the caller-visible resolution-result contract (spec.md §6).
type Result struct {
	Values         map[string]rule.Value
	PerFieldStatus map[string]FieldStatus
	Errors         []FieldError
	TotalMs        float64
	HasErrors      bool
}

// Dependencies bundles the collaborators Resolve needs beyond the plan
// itself: the dependency graph (for per-field MapperExpression,
// FieldType, and CalculatorConfig, which ResolutionPlan does not carry),
// the data-service client, and the calculator registry.
type Dependencies struct {
	Graph                  *depgraph.Graph
	DataService            dataservice.Client
	Calculators            *calculator.Registry
	GlobalConcurrency      int
	PerEndpointConcurrency int
	CallTimeout            time.Duration
	OverallTimeout         time.Duration
}

func (d *Dependencies) withDefaults() Dependencies {
	out := *d
	if out.GlobalConcurrency <= 0 {
		out.GlobalConcurrency = 64
	}
	if out.PerEndpointConcurrency <= 0 {
		out.PerEndpointConcurrency = 16
	}
	if out.CallTimeout <= 0 {
		out.CallTimeout = 30 * time.Second
	}
	if out.OverallTimeout <= 0 {
		out.OverallTimeout = 60 * time.Second
	}
	return out
}

// Resolve executes plan per spec.md §4.7's algorithm: seed from context
// and static values, run each level's parallel groups concurrently,
// honor sequential chains, then run calculated fields in topological
// order. Fields supplied by execCtx are neither fetched nor calculated.
func Resolve(ctx context.Context, plan *depgraph.ResolutionPlan, execCtx rule.ExecutionContext, reqCache cache.RequestCache, deps Dependencies) (Result, error) {
	start := time.Now()
	deps = deps.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, deps.OverallTimeout)
	defer cancel()

	r := &resolution{
		ctx:      ctx,
		deps:     deps,
		cache:    reqCache,
		values:   make(map[string]rule.Value),
		status:   make(map[string]FieldStatus),
		global:   make(chan struct{}, deps.GlobalConcurrency),
		endpoint: make(map[string]chan struct{}),
	}

	for name, v := range plan.StaticValues {
		r.values[name] = v
		r.status[name] = StatusResolved
	}
	for name, v := range execCtx.FieldValues {
		r.values[name] = v
		r.status[name] = StatusResolved
	}

	unsupplied := func(fields []string) []string {
		var out []string
		for _, name := range fields {
			if _, ok := execCtx.FieldValues[name]; !ok {
				out = append(out, name)
			}
		}
		return out
	}

	byLevel := make(map[int][]depgraph.ParallelExecutionGroup)
	var levels []int
	for _, grp := range plan.ParallelGroups {
		grp.Fields = unsupplied(grp.Fields)
		if len(grp.Fields) == 0 {
			continue
		}
		if _, ok := byLevel[grp.Level]; !ok {
			levels = append(levels, grp.Level)
		}
		byLevel[grp.Level] = append(byLevel[grp.Level], grp)
	}
	sort.Ints(levels)

	for _, lvl := range levels {
		r.runLevel(byLevel[lvl])
		if ctx.Err() != nil {
			break
		}
	}

	for _, chain := range plan.SequentialChains {
		chain.Fields = unsupplied(chain.Fields)
		r.runChain(chain)
		if ctx.Err() != nil {
			break
		}
	}

	for _, name := range unsupplied(plan.CalculatedOrder) {
		r.runCalculated(name)
		if ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		for _, name := range plan.CalculatedOrder {
			if _, ok := r.status[name]; !ok {
				r.recordError(name, codeTimeout, "resolution overall timeout exceeded")
			}
		}
	}

	result := Result{
		Values:         r.values,
		PerFieldStatus: r.status,
		Errors:         r.errors,
		TotalMs:        float64(time.Since(start).Microseconds()) / 1000.0,
		HasErrors:      len(r.errors) > 0,
	}
	return result, nil
}

type resolution struct {
	ctx   context.Context
	deps  Dependencies
	cache cache.RequestCache

	mu     sync.Mutex
	values map[string]rule.Value
	status map[string]FieldStatus
	errors []FieldError

	global   chan struct{}
	endpointMu sync.Mutex
	endpoint map[string]chan struct{}
}

func (r *resolution) endpointSem(endpoint string) chan struct{} {
	r.endpointMu.Lock()
	defer r.endpointMu.Unlock()
	sem, ok := r.endpoint[endpoint]
	if !ok {
		sem = make(chan struct{}, r.deps.PerEndpointConcurrency)
		r.endpoint[endpoint] = sem
	}
	return sem
}

// runLevel launches every group at one dependency level concurrently and
// awaits all of them; a failure in one group does not abort siblings
// (spec.md §4.7 step 2c).
func (r *resolution) runLevel(groups []depgraph.ParallelExecutionGroup) error {
	g, ctx := errgroup.WithContext(r.ctx)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			r.runGroup(ctx, grp)
			return nil
		})
	}
	return g.Wait()
}

func (r *resolution) runGroup(ctx context.Context, grp depgraph.ParallelExecutionGroup) {
	variables := r.buildVariables(grp.Fields)

	select {
	case r.global <- struct{}{}:
		defer func() { <-r.global }()
	case <-ctx.Done():
		r.recordTimeoutAll(grp.Fields)
		return
	}

	sem := r.endpointSem(grp.DataServiceConfig.Endpoint)
	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		r.recordTimeoutAll(grp.Fields)
		return
	}

	resp, err := r.fetch(ctx, grp.DataServiceConfig, variables)
	if err != nil {
		for _, name := range grp.Fields {
			r.degradeOrError(name, codeDataServiceError, err.Error())
		}
		return
	}

	for _, name := range grp.Fields {
		r.applyMapper(name, resp.Data)
	}
}

// runChain resolves a SequentialExecutionChain in order, feeding each
// member's resolved value forward as a call variable for later members
// (spec.md §4.7 step 3).
func (r *resolution) runChain(chain depgraph.SequentialExecutionChain) {
	for _, name := range chain.Fields {
		if r.ctx.Err() != nil {
			r.recordError(name, codeTimeout, "resolution overall timeout exceeded")
			continue
		}
		node := r.deps.Graph.Node(name)
		if node == nil || node.Config.DataServiceConfig == nil {
			r.recordError(name, codeFieldNotFound, "chain field has no data-service config")
			continue
		}
		variables := r.buildVariables([]string{name})

		sem := r.endpointSem(node.Config.DataServiceConfig.Endpoint)
		select {
		case sem <- struct{}{}:
		case <-r.ctx.Done():
			r.recordError(name, codeTimeout, "resolution overall timeout exceeded")
			continue
		}
		resp, err := r.fetch(r.ctx, *node.Config.DataServiceConfig, variables)
		<-sem
		if err != nil {
			r.degradeOrError(name, codeDataServiceError, err.Error())
			continue
		}
		r.applyMapper(name, resp.Data)
	}
}

// fetch checks the request-time cache before issuing an outbound call,
// honoring P6 (identical endpoint/query/variables produce exactly one
// call within one resolution).
func (r *resolution) fetch(ctx context.Context, cfg rule.DataServiceConfig, variables map[string]interface{}) (*dataservice.Response, error) {
	queryOrMethod := cfg.Query
	if queryOrMethod == "" {
		queryOrMethod = cfg.Method
	}
	key := cache.Key(cfg.Endpoint, queryOrMethod, variables)

	if r.cache != nil {
		if entry, ok := r.cache.Get(key); ok {
			return &dataservice.Response{StatusCode: entry.StatusCode, Data: entry.Data}, nil
		}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if r.deps.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.deps.CallTimeout)
		defer cancel()
	}

	resp, err := r.deps.DataService.Execute(callCtx, cfg, variables)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(key, cache.Entry{StatusCode: resp.StatusCode, Data: resp.Data})
	}
	return resp, nil
}

// buildVariables unions the Dependencies of the named fields into a
// variables map drawn from already-resolved values, converted to plain
// Go values for the data-service client.
func (r *resolution) buildVariables(fields []string) map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	variables := make(map[string]interface{})
	for _, name := range fields {
		node := r.deps.Graph.Node(name)
		if node == nil {
			continue
		}
		for dep := range node.Dependencies {
			if v, ok := r.values[dep]; ok {
				variables[dep] = valueToInterface(v)
			}
		}
	}
	return variables
}

func (r *resolution) applyMapper(name string, response interface{}) {
	node := r.deps.Graph.Node(name)
	if node == nil {
		r.recordError(name, codeFieldNotFound, "field not found in dependency graph")
		return
	}
	if node.Config.MapperExpression == "" {
		r.degradeOrError(name, codeMappingError, "data-service field has no mapperExpression")
		return
	}
	value, err := mapper.Get(node.Config.MapperExpression, response, node.Config.FieldType)
	if err != nil {
		code := codeMappingError
		if me, ok := err.(*mapper.MappingError); ok && me.Kind == mapper.ConversionFailed {
			code = codeConversionError
		}
		r.degradeOrError(name, code, err.Error())
		return
	}
	r.recordValue(name, value, StatusResolved)
}

func (r *resolution) runCalculated(name string) {
	node := r.deps.Graph.Node(name)
	if node == nil || node.Config.CalculatorConfig == nil {
		r.recordError(name, codeFieldNotFound, "calculated field has no calculatorConfig")
		return
	}
	r.mu.Lock()
	snapshot := make(map[string]rule.Value, len(r.values))
	for k, v := range r.values {
		snapshot[k] = v
	}
	r.mu.Unlock()

	value, err := r.deps.Calculators.Calculate(node.Config.CalculatorConfig, name, snapshot)
	if err != nil {
		r.degradeOrError(name, codeCalculatorError, err.Error())
		return
	}
	r.recordValue(name, value, StatusResolved)
}

// degradeOrError applies spec.md §4.7 step 5: a required field with a
// default degrades to that default plus a warning; otherwise it is
// marked with hasErrors=true and left absent from values.
func (r *resolution) degradeOrError(name, code, message string) {
	node := r.deps.Graph.Node(name)
	if node != nil && node.Config.DefaultValue != nil {
		r.recordValue(name, *node.Config.DefaultValue, StatusDefaulted)
		r.recordWarning(name, code, message)
		return
	}
	r.recordError(name, code, message)
}

func (r *resolution) recordValue(name string, value rule.Value, status FieldStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
	r.status[name] = status
}

func (r *resolution) recordWarning(name, code, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, FieldError{FieldName: name, Code: code, Message: fmt.Sprintf("warning (defaulted): %s", message)})
}

func (r *resolution) recordError(name, code, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[name] = StatusError
	r.errors = append(r.errors, FieldError{FieldName: name, Code: code, Message: message})
}

func (r *resolution) recordTimeoutAll(fields []string) {
	for _, name := range fields {
		r.degradeOrError(name, codeTimeout, "resolution overall timeout exceeded")
	}
}

func valueToInterface(v rule.Value) interface{} {
	switch v.Kind {
	case rule.KindNull:
		return nil
	case rule.KindString, rule.KindDate, rule.KindDateTime:
		return v.Str
	case rule.KindNumber:
		return v.Num
	case rule.KindBool:
		return v.Bool
	case rule.KindList:
		out := make([]interface{}, 0, len(v.Items))
		for _, item := range v.Items {
			out = append(out, valueToInterface(item))
		}
		return out
	default:
		return nil
	}
}
