// Package depgraph implements the dependency analyzer (C6): it builds a
// DAG over field configurations, detects cycles, and produces a
// resolution plan partitioning fields into parallel groups and sequential
// chains.
//
// Cycle detection and the topological ordering directly generalize the
// teacher's graph.GetExecutionOrder (Kahn's algorithm) and
// checkCycleRecursive (white/gray/black DFS) from "action requires" edges
// to "field depends-on" edges.
package depgraph

import (
	"fmt"
	"sort"

	"rulesengine/rule"
)

// NodeKind classifies a field for planning purposes.
type NodeKind string

const (
	NodeStatic      NodeKind = "STATIC"
	NodeDataService NodeKind = "DATA_SERVICE"
	NodeCalculated  NodeKind = "CALCULATED"
)

// Node is one field's planning-relevant metadata.
type Node struct {
	Name         string
	Kind         NodeKind
	Config       rule.FieldConfig
	Dependencies map[string]struct{}
}

// Graph is the dependency DAG over a set of field configurations, encoded
// as a map of nodes with adjacency sets keyed by field name — a
// structural property rather than a runtime hazard of pointer cycles, per
// spec.md §9.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order, for deterministic iteration
}

// CyclicDependencyError reports a field-dependency cycle. Path's first
// and last elements are equal (spec.md P3).
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("CYCLIC_DEPENDENCY: %v", e.Path)
}

// Build constructs a Graph from a set of field configurations and detects
// cycles. Dependencies naming a field absent from configs produce no edge
// (spec.md §4.6: "warnings but no edge") — warnings are returned
// alongside the graph rather than logged, since depgraph has no logger of
// its own.
func Build(configs []rule.FieldConfig) (*Graph, []string, error) {
	g := &Graph{nodes: make(map[string]*Node, len(configs))}
	for _, cfg := range configs {
		kind := classify(cfg)
		g.nodes[cfg.FieldName] = &Node{
			Name:         cfg.FieldName,
			Kind:         kind,
			Config:       cfg,
			Dependencies: cfg.Dependencies,
		}
		g.order = append(g.order, cfg.FieldName)
	}

	var warnings []string
	for _, name := range g.order {
		for dep := range g.nodes[name].Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				warnings = append(warnings, fmt.Sprintf("field %q depends on undefined field %q", name, dep))
			}
		}
	}
	sort.Strings(warnings)

	if cycle, ok := g.detectCycle(); ok {
		return nil, nil, &CyclicDependencyError{Path: cycle}
	}

	return g, warnings, nil
}

func classify(cfg rule.FieldConfig) NodeKind {
	switch {
	case cfg.DataServiceConfig != nil:
		return NodeDataService
	case cfg.IsCalculated || cfg.CalculatorConfig != nil:
		return NodeCalculated
	default:
		return NodeStatic
	}
}

// color states for the DFS cycle check.
type color int

const (
	white color = iota
	gray
	black
)

// detectCycle runs a white/gray/black DFS; the first gray-to-gray edge
// yields a concrete cycle path.
func (g *Graph) detectCycle() ([]string, bool) {
	colors := make(map[string]color, len(g.nodes))
	var stack []string

	var visit func(name string) ([]string, bool)
	visit = func(name string) ([]string, bool) {
		colors[name] = gray
		stack = append(stack, name)

		node := g.nodes[name]
		deps := sortedKeys(node.Dependencies)
		for _, dep := range deps {
			if _, ok := g.nodes[dep]; !ok {
				continue // undefined dependency: no edge, per spec.md §4.6
			}
			switch colors[dep] {
			case white:
				if cycle, found := visit(dep); found {
					return cycle, true
				}
			case gray:
				// Found the closing edge of a cycle: extract the path from
				// dep's first occurrence on the stack through to here.
				cyclePath := cyclePathFrom(stack, dep)
				return cyclePath, true
			case black:
				// already fully explored, no cycle through here
			}
		}

		colors[name] = black
		stack = stack[:len(stack)-1]
		return nil, false
	}

	for _, name := range g.order {
		if colors[name] == white {
			if cycle, found := visit(name); found {
				return cycle, true
			}
		}
	}
	return nil, false
}

// cyclePathFrom builds [start, ..., start] from stack, which holds the
// current DFS path ending at the node that closed the cycle back to start.
func cyclePathFrom(stack []string, start string) []string {
	idx := -1
	for i, name := range stack {
		if name == start {
			idx = i
			break
		}
	}
	if idx < 0 {
		return append(append([]string{}, stack...), start)
	}
	path := append([]string{}, stack[idx:]...)
	path = append(path, start)
	return path
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Node returns the node for name, or nil if absent.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Names returns every field name in the graph, in insertion order.
func (g *Graph) Names() []string {
	return append([]string{}, g.order...)
}

// Closure returns the transitive closure of scope (the field names a rule
// references) over the graph's dependency edges, used to restrict
// planning to only the fields a given rule needs.
func (g *Graph) Closure(scope []string) []string {
	seen := make(map[string]struct{})
	var visit func(string)
	visit = func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		node, ok := g.nodes[name]
		if !ok {
			return
		}
		seen[name] = struct{}{}
		for _, dep := range sortedKeys(node.Dependencies) {
			visit(dep)
		}
	}
	for _, name := range scope {
		visit(name)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
