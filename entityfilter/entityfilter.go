// Package entityfilter implements the entity filter engine (C8): given an
// entity type, a set (or page) of entity IDs, and a rule, it retrieves and
// field-maps each entity, resolves any remaining computed fields through
// the field resolver (C7), evaluates the rule (C2), and assembles matched
// and unmatched results in input order.
//
// Batching and bounded per-batch concurrency generalize the teacher's
// worker.Pool fixed-worker-count idiom, restructured onto
// golang.org/x/sync/errgroup and scoped to one filter call rather than a
// long-running pool.
package entityfilter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rulesengine/cache"
	"rulesengine/cache/memory"
	"rulesengine/dataservice"
	"rulesengine/depgraph"
	"rulesengine/eval"
	"rulesengine/mapper"
	"rulesengine/resolver"
	"rulesengine/rule"
)

// Dependencies bundles the collaborators Filter needs: the data-service
// client used both for ID pagination and entity retrieval, and the
// resolver dependencies used to resolve any rule-referenced fields not
// covered by entityType.FieldMappings.
type Dependencies struct {
	DataService dataservice.Client
	Resolver    resolver.Dependencies
}

// Filter implements spec.md §4.8. If ids is empty, it first pages entity
// IDs from entityType.DataServiceConfig using opts.Page/opts.PageSize.
//
// ruleJSON is parsed once and memoized in a cache.RuleCache keyed by its
// canonical-JSON hash (spec.md §4.10), scoped to the lifetime of this
// call: every per-entity pipeline resolves the rule through that cache
// rather than closing over an already-parsed tree directly, so the
// memoization is actually exercised under the same concurrent access
// pattern a longer-lived cache would see.
func Filter(ctx context.Context, entityType rule.EntityTypeSnapshot, ids []string, ruleJSON []byte, limits rule.Limits, deps Dependencies, opts FilterOptions) (FilterResult, error) {
	opts = opts.withDefaults()

	ruleCache := cache.NewRuleCache()
	ruleKey := cache.RuleKey(ruleJSON)
	r, err := rule.Parse(ruleJSON, limits)
	if err != nil {
		return FilterResult{}, fmt.Errorf("parsing rule: %w", err)
	}
	ruleCache.Set(ruleKey, r)

	pagination := Pagination{Page: opts.Page, PageSize: opts.PageSize}
	if len(ids) == 0 {
		paged, hasMore, err := pageIDs(ctx, deps.DataService, entityType.DataServiceConfig, opts.Page, opts.PageSize)
		if err != nil {
			return FilterResult{}, fmt.Errorf("paging entity ids: %w", err)
		}
		ids = paged
		pagination.HasMore = hasMore
	}

	needed := rule.FieldNames(r)
	directFields := make(map[string]struct{}, len(entityType.FieldMappings))
	for name := range entityType.FieldMappings {
		directFields[name] = struct{}{}
	}
	var extra []string
	for _, name := range needed {
		if _, ok := directFields[name]; !ok {
			extra = append(extra, name)
		}
	}

	var plan *depgraph.ResolutionPlan
	if len(extra) > 0 && deps.Resolver.Graph != nil {
		p, err := depgraph.Plan(deps.Resolver.Graph, extra, depgraph.PlanOptions{})
		if err != nil {
			return FilterResult{}, fmt.Errorf("planning extra fields: %w", err)
		}
		plan = p
	}

	pipeline := &pipeline{
		deps:       deps,
		entityType: entityType,
		ruleCache:  ruleCache,
		ruleKey:    ruleKey,
		ruleJSON:   ruleJSON,
		limits:     limits,
		plan:       plan,
		opts:       opts,
	}

	result := FilterResult{
		RunID:      uuid.NewString(),
		Entities:   make([]EntityResult, len(ids)),
		Pagination: pagination,
	}

	batchCount := 0
	for start := 0; start < len(ids); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batchCount++
		pipeline.runBatch(ctx, ids[start:end], result.Entities[start:end])
	}

	for i := range result.Entities {
		er := result.Entities[i]
		result.TotalProcessed++
		if er.Error != nil {
			result.TotalFailed++
			result.Errors = append(result.Errors, *er.Error)
			continue
		}
		if er.Matched {
			result.TotalMatched++
		}
	}

	result.Metrics = Metrics{
		DataRetrievalMs: pipeline.dataRetrievalMs(),
		EvaluationMs:    pipeline.evaluationMs(),
		BatchCount:      batchCount,
		Summary: fmt.Sprintf("processed %s entities in %d batches", humanize.Comma(int64(result.TotalProcessed)), batchCount),
	}

	return result, nil
}

// pageIDs fetches one page of entity IDs from entityType's data service.
// The response's top-level data is expected to be a list of scalar IDs.
func pageIDs(ctx context.Context, client dataservice.Client, cfg rule.DataServiceConfig, page, pageSize int) ([]string, bool, error) {
	if client == nil {
		return nil, false, fmt.Errorf("no data-service client configured for entity-id pagination")
	}
	variables := map[string]interface{}{"page": page, "size": pageSize}
	resp, err := client.Execute(ctx, cfg, variables)
	if err != nil {
		return nil, false, err
	}
	items, ok := resp.Data.([]interface{})
	if !ok {
		return nil, false, nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, fmt.Sprint(item))
	}
	return ids, len(items) == pageSize, nil
}

// pipeline holds per-Filter-call state shared across batches: cumulative
// timing metrics, guarded by a mutex since batches within one call share
// it across concurrent entity pipelines.
type pipeline struct {
	deps       Dependencies
	entityType rule.EntityTypeSnapshot
	ruleCache  *cache.RuleCache
	ruleKey    string
	ruleJSON   []byte
	limits     rule.Limits
	plan       *depgraph.ResolutionPlan
	opts       FilterOptions

	mu              sync.Mutex
	dataRetrievalNs int64
	evaluationNs    int64
}

// resolveRule returns the parsed rule for this filter operation, a cache
// hit in every case but the first (Filter itself primes the entry before
// any batch runs). Re-parsing on a miss keeps this safe even if a future
// caller swaps in an eviction policy.
func (p *pipeline) resolveRule() (*rule.Rule, error) {
	if r, ok := p.ruleCache.Get(p.ruleKey); ok {
		return r, nil
	}
	r, err := rule.Parse(p.ruleJSON, p.limits)
	if err != nil {
		return nil, err
	}
	p.ruleCache.Set(p.ruleKey, r)
	return r, nil
}

func (p *pipeline) dataRetrievalMs() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.dataRetrievalNs) / 1e6
}

func (p *pipeline) evaluationMs() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.evaluationNs) / 1e6
}

func (p *pipeline) addDataRetrieval(d time.Duration) {
	p.mu.Lock()
	p.dataRetrievalNs += d.Nanoseconds()
	p.mu.Unlock()
}

func (p *pipeline) addEvaluation(d time.Duration) {
	p.mu.Lock()
	p.evaluationNs += d.Nanoseconds()
	p.mu.Unlock()
}

// runBatch runs one chunk of entities under a bounded errgroup, writing
// each result into out by index so input order survives goroutine
// completion order (spec.md P9).
func (p *pipeline) runBatch(ctx context.Context, ids []string, out []EntityResult) {
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.opts.Concurrency)

	for i, id := range ids {
		i, id := i, id
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			out[i] = EntityResult{EntityID: id, Error: &EntityProcessingError{EntityID: id, Code: codeTimeout, Message: "filter operation canceled"}}
			continue
		}
		g.Go(func() error {
			defer func() { <-sem }()
			out[i] = p.runOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

// runOne executes the per-entity pipeline from spec.md §4.8: retrieve,
// map, resolve remaining fields, evaluate.
func (p *pipeline) runOne(ctx context.Context, id string) EntityResult {
	ctx, cancel := context.WithTimeout(ctx, p.opts.PerEntityTimeout)
	defer cancel()

	retrieveStart := time.Now()
	resp, err := p.deps.DataService.Execute(ctx, p.entityType.DataServiceConfig, map[string]interface{}{"id": id})
	p.addDataRetrieval(time.Since(retrieveStart))
	if err != nil {
		return errored(id, codeDataServiceError, err.Error())
	}

	fieldValues := make(map[string]rule.Value, len(p.entityType.FieldMappings))
	for fieldName, expr := range p.entityType.FieldMappings {
		value, err := mapper.Get(expr, resp.Data, "")
		if err != nil {
			return errored(id, codeMappingError, err.Error())
		}
		fieldValues[fieldName] = value
	}

	if p.plan != nil {
		execCtx := rule.ExecutionContext{EntityID: id, EntityType: p.entityType.TypeName, FieldValues: fieldValues}
		res, err := resolver.Resolve(ctx, p.plan, execCtx, memory.New(), p.deps.Resolver)
		if err != nil {
			return errored(id, codeProcessingError, err.Error())
		}
		for name, v := range res.Values {
			fieldValues[name] = v
		}
	}

	r, err := p.resolveRule()
	if err != nil {
		return errored(id, codeProcessingError, err.Error())
	}

	evalStart := time.Now()
	evalResult, err := eval.Evaluate(r, fieldValues, eval.EvalOptions{Trace: p.opts.Trace})
	p.addEvaluation(time.Since(evalStart))
	if err != nil {
		return errored(id, codeProcessingError, err.Error())
	}

	out := EntityResult{EntityID: id, Matched: evalResult.Result}
	if p.opts.Trace {
		out.Trace = evalResult.Trace
	}
	if p.opts.IncludeEntityData {
		data := make(map[string]interface{}, len(fieldValues))
		for k, v := range fieldValues {
			data[k] = v.String()
		}
		out.EntityData = data
	}
	return out
}

func errored(id, code, message string) EntityResult {
	return EntityResult{EntityID: id, Error: &EntityProcessingError{EntityID: id, Code: code, Message: message}}
}

var _ cache.RequestCache = (*memory.Cache)(nil)
