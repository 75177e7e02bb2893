package main

import "rulesengine/rule"

// valuesFromJSON converts a JSON object (already decoded into Go's
// native map[string]interface{}/float64/bool/string/nil shapes) into a
// map of rule.Value, the dynamically-typed scalar the evaluator and
// resolver operate on.
func valuesFromJSON(raw map[string]interface{}) map[string]rule.Value {
	out := make(map[string]rule.Value, len(raw))
	for k, v := range raw {
		out[k] = valueFromJSON(v)
	}
	return out
}

func valueFromJSON(v interface{}) rule.Value {
	switch t := v.(type) {
	case nil:
		return rule.Null
	case string:
		return rule.Value{Kind: rule.KindString, Str: t}
	case float64:
		return rule.Value{Kind: rule.KindNumber, Num: t}
	case bool:
		return rule.Value{Kind: rule.KindBool, Bool: t}
	case []interface{}:
		items := make([]rule.Value, 0, len(t))
		for _, item := range t {
			items = append(items, valueFromJSON(item))
		}
		return rule.Value{Kind: rule.KindList, Items: items}
	default:
		return rule.Null
	}
}
