package depgraph

import (
	"sort"

	"rulesengine/rule"
)

// ParallelExecutionGroup is a set of data-service fields resolvable
// concurrently at one dependency level, all served by one outbound call
// because their DataServiceConfig is identical.
type ParallelExecutionGroup struct {
	Level             int
	Fields            []string
	DataServiceConfig rule.DataServiceConfig
}

// SequentialExecutionChain is an ordered sequence of data-service fields
// where each member's call may use an earlier member's resolved value as
// a call variable.
type SequentialExecutionChain struct {
	Fields []string
}

// ResolutionPlan is the DAG-derived execution schedule for one set of
// fields (spec.md §3 "ResolutionPlan").
type ResolutionPlan struct {
	StaticValues     map[string]rule.Value
	ParallelGroups   []ParallelExecutionGroup
	SequentialChains []SequentialExecutionChain
	CalculatedOrder  []string
	EstimatedMs      float64
}

// PlanOptions configures planning heuristics (spec.md §6).
type PlanOptions struct {
	// MergeGroupThreshold merges parallel groups with fewer than this many
	// fields into one group when they hit the same endpoint. Default 3.
	MergeGroupThreshold int
}

// Plan builds a ResolutionPlan for fieldNames (the fields a rule
// references) restricted to the transitive dependency closure within g.
func Plan(g *Graph, fieldNames []string, opts PlanOptions) (*ResolutionPlan, error) {
	if opts.MergeGroupThreshold <= 0 {
		opts.MergeGroupThreshold = 3
	}
	scope := g.Closure(fieldNames)
	scopeSet := make(map[string]struct{}, len(scope))
	for _, name := range scope {
		scopeSet[name] = struct{}{}
	}

	levels := computeLevels(g, scope, scopeSet)

	chainFields, chains := buildChains(g, scope, scopeSet)

	groups := buildGroups(g, scope, scopeSet, chainFields, levels, opts.MergeGroupThreshold)

	calculatedOrder := buildCalculatedOrder(g, scope, levels)

	staticValues := make(map[string]rule.Value)
	for _, name := range scope {
		node := g.Node(name)
		if node == nil || node.Kind != NodeStatic {
			continue
		}
		if node.Config.DefaultValue != nil {
			staticValues[name] = *node.Config.DefaultValue
		}
	}

	estimated := estimateCost(groups, chains)

	return &ResolutionPlan{
		StaticValues:     staticValues,
		ParallelGroups:   groups,
		SequentialChains: chains,
		CalculatedOrder:  calculatedOrder,
		EstimatedMs:      estimated,
	}, nil
}

// computeLevels assigns each field in scope a dependencyLevel: 0 for
// roots, max(dependencyLevel(dep))+1 otherwise, restricted to dependency
// edges whose target is also in scope.
func computeLevels(g *Graph, scope []string, scopeSet map[string]struct{}) map[string]int {
	levels := make(map[string]int, len(scope))
	var compute func(name string) int
	visiting := make(map[string]bool)
	compute = func(name string) int {
		if lvl, ok := levels[name]; ok {
			return lvl
		}
		if visiting[name] {
			// Cycles are rejected at Build time; this is defensive only.
			return 0
		}
		visiting[name] = true
		defer delete(visiting, name)

		node := g.Node(name)
		max := -1
		if node != nil {
			for dep := range node.Dependencies {
				if _, ok := scopeSet[dep]; !ok {
					continue
				}
				depLevel := compute(dep)
				if depLevel > max {
					max = depLevel
				}
			}
		}
		lvl := max + 1
		levels[name] = lvl
		return lvl
	}
	for _, name := range scope {
		compute(name)
	}
	return levels
}

// buildChains finds connected runs of data-service fields that depend
// (directly) on other data-service fields within scope, and topologically
// sorts each run into a SequentialExecutionChain. Per the Open Question
// resolution in DESIGN.md, a field placed into a chain is omitted from
// parallel groups.
func buildChains(g *Graph, scope []string, scopeSet map[string]struct{}) (map[string]bool, []SequentialExecutionChain) {
	dsDeps := make(map[string][]string) // field -> its data-service deps (within scope)
	inChainEdge := make(map[string]bool)

	for _, name := range scope {
		node := g.Node(name)
		if node == nil || node.Kind != NodeDataService {
			continue
		}
		for dep := range node.Dependencies {
			if _, ok := scopeSet[dep]; !ok {
				continue
			}
			depNode := g.Node(dep)
			if depNode == nil || depNode.Kind != NodeDataService {
				continue
			}
			dsDeps[name] = append(dsDeps[name], dep)
			inChainEdge[name] = true
			inChainEdge[dep] = true
		}
	}
	for name := range dsDeps {
		sort.Strings(dsDeps[name])
	}

	if len(inChainEdge) == 0 {
		return nil, nil
	}

	// Union-find style connected components over the undirected view of
	// the chain-edge subgraph.
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for name := range inChainEdge {
		find(name)
	}
	for name, deps := range dsDeps {
		for _, dep := range deps {
			union(name, dep)
		}
	}

	components := make(map[string][]string)
	var members []string
	for name := range inChainEdge {
		members = append(members, name)
	}
	sort.Strings(members)
	for _, name := range members {
		root := find(name)
		components[root] = append(components[root], name)
	}

	var roots []string
	for root := range components {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	chainFields := make(map[string]bool)
	var chains []SequentialExecutionChain
	for _, root := range roots {
		compMembers := components[root]
		ordered := topoSortWithin(compMembers, dsDeps)
		chains = append(chains, SequentialExecutionChain{Fields: ordered})
		for _, f := range ordered {
			chainFields[f] = true
		}
	}
	return chainFields, chains
}

// topoSortWithin performs Kahn's algorithm restricted to members, using
// dsDeps edges (name depends on dsDeps[name]).
func topoSortWithin(members []string, dsDeps map[string][]string) []string {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	inDegree := make(map[string]int, len(members))
	dependents := make(map[string][]string)
	for _, m := range members {
		inDegree[m] = 0
	}
	for _, m := range members {
		for _, dep := range dsDeps[m] {
			if !memberSet[dep] {
				continue
			}
			inDegree[m]++
			dependents[dep] = append(dependents[dep], m)
		}
	}
	var queue []string
	for _, m := range members {
		if inDegree[m] == 0 {
			queue = append(queue, m)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		sort.Strings(queue)
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		next := append([]string{}, dependents[current]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(order) != len(members) {
		// Defensive: shouldn't happen since Build already rejects cycles.
		return members
	}
	return order
}

// buildGroups partitions data-service fields not claimed by a chain into
// ParallelExecutionGroups: one per (level, identical DataServiceConfig),
// then merges small same-endpoint groups per mergeThreshold.
func buildGroups(g *Graph, scope []string, scopeSet map[string]struct{}, chainFields map[string]bool, levels map[string]int, mergeThreshold int) []ParallelExecutionGroup {
	type levelGroups struct {
		level  int
		groups []*ParallelExecutionGroup
	}
	byLevel := make(map[int]*levelGroups)
	var levelOrder []int

	for _, name := range scope {
		node := g.Node(name)
		if node == nil || node.Kind != NodeDataService || chainFields[name] {
			continue
		}
		lvl := levels[name]
		lg, ok := byLevel[lvl]
		if !ok {
			lg = &levelGroups{level: lvl}
			byLevel[lvl] = lg
			levelOrder = append(levelOrder, lvl)
		}
		var target *ParallelExecutionGroup
		for _, grp := range lg.groups {
			if grp.DataServiceConfig.Equal(*node.Config.DataServiceConfig) {
				target = grp
				break
			}
		}
		if target == nil {
			target = &ParallelExecutionGroup{Level: lvl, DataServiceConfig: *node.Config.DataServiceConfig}
			lg.groups = append(lg.groups, target)
		}
		target.Fields = append(target.Fields, name)
	}

	sort.Ints(levelOrder)

	var result []ParallelExecutionGroup
	for _, lvl := range levelOrder {
		lg := byLevel[lvl]
		merged := mergeSmallGroups(lg.groups, mergeThreshold)
		sort.Slice(merged, func(i, j int) bool { return len(merged[i].Fields) < len(merged[j].Fields) })
		result = append(result, merged...)
	}
	return result
}

// mergeSmallGroups merges groups with fewer than threshold fields that
// target the same endpoint into a single group, per spec.md §4.6's
// optimization. The merged group keeps the first constituent's config as
// representative, since a single resolver call variable set targets one
// endpoint shape; fields from the other constituents are appended for the
// mapper pass to apply against that one response.
func mergeSmallGroups(groups []*ParallelExecutionGroup, threshold int) []ParallelExecutionGroup {
	byEndpoint := make(map[string][]*ParallelExecutionGroup)
	var endpointOrder []string
	for _, grp := range groups {
		ep := grp.DataServiceConfig.Endpoint
		if _, ok := byEndpoint[ep]; !ok {
			endpointOrder = append(endpointOrder, ep)
		}
		byEndpoint[ep] = append(byEndpoint[ep], grp)
	}
	sort.Strings(endpointOrder)

	var out []ParallelExecutionGroup
	for _, ep := range endpointOrder {
		candidates := byEndpoint[ep]
		var small, large []*ParallelExecutionGroup
		for _, grp := range candidates {
			if len(grp.Fields) < threshold {
				small = append(small, grp)
			} else {
				large = append(large, grp)
			}
		}
		if len(small) > 1 {
			merged := ParallelExecutionGroup{Level: small[0].Level, DataServiceConfig: small[0].DataServiceConfig}
			for _, grp := range small {
				merged.Fields = append(merged.Fields, grp.Fields...)
			}
			sort.Strings(merged.Fields)
			out = append(out, merged)
		} else {
			for _, grp := range small {
				out = append(out, *grp)
			}
		}
		for _, grp := range large {
			out = append(out, *grp)
		}
	}
	return out
}

// buildCalculatedOrder returns calculated fields in topological order
// (dependencyLevel ascending, name ascending for ties).
func buildCalculatedOrder(g *Graph, scope []string, levels map[string]int) []string {
	var calculated []string
	for _, name := range scope {
		node := g.Node(name)
		if node != nil && node.Kind == NodeCalculated {
			calculated = append(calculated, name)
		}
	}
	sort.Slice(calculated, func(i, j int) bool {
		li, lj := levels[calculated[i]], levels[calculated[j]]
		if li != lj {
			return li < lj
		}
		return calculated[i] < calculated[j]
	})
	return calculated
}

// estimateCost implements spec.md §4.6's heuristic: 100ms per field per
// parallel group, taking the max per level (groups run concurrently);
// 150ms per field in a sequential chain.
func estimateCost(groups []ParallelExecutionGroup, chains []SequentialExecutionChain) float64 {
	maxByLevel := make(map[int]float64)
	for _, grp := range groups {
		cost := float64(len(grp.Fields)) * 100
		if cost > maxByLevel[grp.Level] {
			maxByLevel[grp.Level] = cost
		}
	}
	var total float64
	for _, cost := range maxByLevel {
		total += cost
	}
	for _, chain := range chains {
		total += float64(len(chain.Fields)) * 150
	}
	return total
}
