package eval

import "rulesengine/rule"

// LeafOutcomeKind classifies a single leaf's evaluation outcome.
type LeafOutcomeKind string

const (
	OutcomeMatched   LeafOutcomeKind = "matched"
	OutcomeUnmatched LeafOutcomeKind = "unmatched"
	OutcomeError     LeafOutcomeKind = "error"
)

// TraceEntry is a per-leaf trace record. Path identifies the leaf's
// position in the tree as a dot-joined index path (e.g. "0.1" is the
// second child of the first top-level child).
type TraceEntry struct {
	Path     string
	Field    string
	Operator rule.Operator
	LHS      rule.Value
	RHS      rule.Value
	Outcome  LeafOutcomeKind
	Result   bool
}

// GroupTrace rolls up a group's combinator and its resolved boolean result,
// alongside the leaf/group traces of its children in tree order.
type GroupTrace struct {
	Path       string
	Combinator rule.Combinator
	Result     bool
	Children   []interface{} // *TraceEntry or *GroupTrace
}

// Trace is the root of a trace tree, present only when EvalOptions.Trace is
// true. Traces are deterministic given the same rule and values: no
// timestamps or other nondeterministic fields are interleaved.
type Trace struct {
	Root interface{} // *TraceEntry or *GroupTrace, nil for an empty rule
}
