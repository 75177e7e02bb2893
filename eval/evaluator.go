// Package eval implements the rule evaluator (C2): it walks a parsed
// rule.Rule against a map of resolved field values, applying the coercion
// ladder from spec.md §4.2 and producing a boolean result plus an optional
// trace.
package eval

import (
	"fmt"
	"strings"
	"time"

	"rulesengine/rule"
)

// EvalOptions controls evaluation behavior.
type EvalOptions struct {
	// Trace, when true, captures a full per-leaf trace. Disabled by
	// default since trace capture allocates.
	Trace bool
}

// Result is the outcome of evaluating a rule against a value map.
type Result struct {
	Result     bool
	Trace      *Trace
	DurationMs float64
}

// Evaluate evaluates rule r against fieldValues, short-circuiting AND at
// the first false child and OR at the first true child (P7: short-circuit
// never changes the boolean result). A nil or empty rule evaluates to true.
func Evaluate(r *rule.Rule, fieldValues map[string]rule.Value, opts EvalOptions) (Result, error) {
	start := time.Now()
	if r == nil || r.Root == nil {
		res := Result{Result: true, DurationMs: elapsedMs(start)}
		if opts.Trace {
			res.Trace = &Trace{}
		}
		return res, nil
	}

	ev := &evaluation{values: fieldValues, trace: opts.Trace}
	result, traceNode := ev.evalNode(r.Root, "0")
	out := Result{Result: result, DurationMs: elapsedMs(start)}
	if opts.Trace {
		out.Trace = &Trace{Root: traceNode}
	}
	return out, nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

type evaluation struct {
	values map[string]rule.Value
	trace  bool
}

func (ev *evaluation) evalNode(n rule.Node, path string) (bool, interface{}) {
	switch t := n.(type) {
	case *rule.Group:
		return ev.evalGroup(t, path)
	case *rule.Condition:
		return ev.evalCondition(t, path)
	default:
		return false, nil
	}
}

func (ev *evaluation) evalGroup(g *rule.Group, path string) (bool, interface{}) {
	if len(g.Rules) == 0 {
		result := true
		if ev.trace {
			return result, &GroupTrace{Path: path, Combinator: g.Combinator, Result: result}
		}
		return result, nil
	}

	var result bool
	var children []interface{}
	if ev.trace {
		children = make([]interface{}, 0, len(g.Rules))
	}

	switch g.Combinator {
	case rule.Or:
		result = false
		for i, child := range g.Rules {
			childResult, childTrace := ev.evalNode(child, childPath(path, i))
			if ev.trace {
				children = append(children, childTrace)
			}
			if childResult {
				result = true
				if !ev.trace {
					break
				}
			}
		}
	default: // AND
		result = true
		for i, child := range g.Rules {
			childResult, childTrace := ev.evalNode(child, childPath(path, i))
			if ev.trace {
				children = append(children, childTrace)
			}
			if !childResult {
				result = false
				if !ev.trace {
					break
				}
			}
		}
	}

	if !ev.trace {
		return result, nil
	}
	return result, &GroupTrace{Path: path, Combinator: g.Combinator, Result: result, Children: children}
}

func childPath(parent string, index int) string {
	return fmt.Sprintf("%s.%d", parent, index)
}

func (ev *evaluation) evalCondition(c *rule.Condition, path string) (bool, interface{}) {
	lhs, present := ev.values[c.Field]
	result, outcome := evalLeaf(c.Operator, lhs, present, c.Value)
	if !ev.trace {
		return result, nil
	}
	return result, &TraceEntry{
		Path:     path,
		Field:    c.Field,
		Operator: c.Operator,
		LHS:      lhs,
		RHS:      c.Value,
		Outcome:  outcome,
		Result:   result,
	}
}

// evalLeaf implements the per-operator semantics. A missing field makes
// every non-emptiness predicate false; isEmpty is true for missing values.
func evalLeaf(op rule.Operator, lhs rule.Value, present bool, rhs rule.Value) (bool, LeafOutcomeKind) {
	switch op {
	case rule.OpIsEmpty:
		return isEmptyValue(lhs, present), OutcomeMatched
	case rule.OpIsNotEmpty:
		return !isEmptyValue(lhs, present), OutcomeMatched
	}

	if !present {
		return false, OutcomeUnmatched
	}

	switch op {
	case rule.OpEqual:
		return outcome(valuesEqual(lhs, rhs))
	case rule.OpNotEqual:
		return outcome(!valuesEqual(lhs, rhs))
	case rule.OpLessThan:
		return orderOutcome(lhs, rhs, func(cmp int) bool { return cmp < 0 })
	case rule.OpLessOrEqual:
		return orderOutcome(lhs, rhs, func(cmp int) bool { return cmp <= 0 })
	case rule.OpGreaterThan:
		return orderOutcome(lhs, rhs, func(cmp int) bool { return cmp > 0 })
	case rule.OpGreaterOrEqual:
		return orderOutcome(lhs, rhs, func(cmp int) bool { return cmp >= 0 })
	case rule.OpContains:
		return containsOutcome(lhs, rhs, false)
	case rule.OpNotContains:
		matched, o := containsOutcome(lhs, rhs, false)
		return !matched, o
	case rule.OpStartsWith:
		if lhs.Kind != rule.KindString || rhs.Kind != rule.KindString {
			return false, OutcomeError
		}
		return outcome(strings.HasPrefix(lhs.Str, rhs.Str))
	case rule.OpEndsWith:
		if lhs.Kind != rule.KindString || rhs.Kind != rule.KindString {
			return false, OutcomeError
		}
		return outcome(strings.HasSuffix(lhs.Str, rhs.Str))
	case rule.OpIn:
		return membershipOutcome(lhs, rhs, true)
	case rule.OpNotIn:
		return membershipOutcome(lhs, rhs, false)
	case rule.OpBetween:
		return betweenOutcome(lhs, rhs)
	default:
		return false, OutcomeError
	}
}

func outcome(matched bool) (bool, LeafOutcomeKind) {
	if matched {
		return true, OutcomeMatched
	}
	return false, OutcomeUnmatched
}

func orderOutcome(lhs, rhs rule.Value, pred func(int) bool) (bool, LeafOutcomeKind) {
	cmp, ok := compareOrder(lhs, rhs)
	if !ok {
		return false, OutcomeError
	}
	return outcome(pred(cmp))
}

func containsOutcome(lhs, rhs rule.Value, _ bool) (bool, LeafOutcomeKind) {
	switch lhs.Kind {
	case rule.KindString:
		if rhs.Kind != rule.KindString {
			return false, OutcomeError
		}
		return outcome(strings.Contains(lhs.Str, rhs.Str))
	case rule.KindList:
		for _, item := range lhs.Items {
			if valuesEqual(item, rhs) {
				return true, OutcomeMatched
			}
		}
		return false, OutcomeUnmatched
	default:
		return false, OutcomeError
	}
}

// membershipOutcome implements in/notIn: rhs must be a list; lhs tests
// membership (or its negation) within it.
func membershipOutcome(lhs, rhs rule.Value, wantMember bool) (bool, LeafOutcomeKind) {
	if rhs.Kind != rule.KindList {
		return false, OutcomeError
	}
	member := false
	for _, item := range rhs.Items {
		if valuesEqual(lhs, item) {
			member = true
			break
		}
	}
	return outcome(member == wantMember)
}

// betweenOutcome implements a <= x <= b, inclusive both ends; a > b is
// always false.
func betweenOutcome(lhs, rhs rule.Value) (bool, LeafOutcomeKind) {
	if rhs.Kind != rule.KindList || len(rhs.Items) != 2 {
		return false, OutcomeError
	}
	lo, hi := rhs.Items[0], rhs.Items[1]
	cmpLo, ok1 := compareOrder(lhs, lo)
	cmpHi, ok2 := compareOrder(lhs, hi)
	cmpBounds, ok3 := compareOrder(lo, hi)
	if !ok1 || !ok2 || !ok3 {
		return false, OutcomeError
	}
	if cmpBounds > 0 {
		return false, OutcomeUnmatched
	}
	return outcome(cmpLo >= 0 && cmpHi <= 0)
}
