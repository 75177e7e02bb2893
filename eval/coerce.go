package eval

import (
	"strconv"
	"strings"
	"time"

	"rulesengine/rule"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// asNumber reports whether v parses as numeric and returns the value.
func asNumber(v rule.Value) (float64, bool) {
	switch v.Kind {
	case rule.KindNumber:
		return v.Num, true
	case rule.KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// asDate reports whether v parses as an ISO-8601-ish date/date-time and
// returns the parsed instant.
func asDate(v rule.Value) (time.Time, bool) {
	var s string
	switch v.Kind {
	case rule.KindDate, rule.KindDateTime, rule.KindString:
		s = v.Str
	default:
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// asBool recognizes true/false/1/0/yes/no, case-insensitive.
func asBool(v rule.Value) (bool, bool) {
	switch v.Kind {
	case rule.KindBool:
		return v.Bool, true
	case rule.KindNumber:
		if v.Num == 1 {
			return true, true
		}
		if v.Num == 0 {
			return false, true
		}
		return false, false
	case rule.KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

// compareOrder compares two values per spec.md §4.2's coercion ladder:
// numeric if both parse as numbers, else date if both parse as dates, else
// lexicographic if both strings, else incomparable.
func compareOrder(a, b rule.Value) (cmp int, ok bool) {
	if an, aok := asNumber(a); aok {
		if bn, bok := asNumber(b); bok {
			return compareFloat(an, bn), true
		}
	}
	if at, aok := asDate(a); aok {
		if bt, bok := asDate(b); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if a.Kind == rule.KindString && b.Kind == rule.KindString {
		return strings.Compare(a.Str, b.Str), true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// valuesEqual implements "=" per the coercion ladder, plus the rule that
// null equals only null.
func valuesEqual(a, b rule.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if cmp, ok := compareOrder(a, b); ok {
		return cmp == 0
	}
	if a.Kind == rule.KindBool || b.Kind == rule.KindBool {
		ab, aok := asBool(a)
		bb, bok := asBool(b)
		if aok && bok {
			return ab == bb
		}
	}
	return a.String() == b.String()
}

// isEmptyValue implements isEmpty: true for missing (Null), empty string,
// or empty list.
func isEmptyValue(v rule.Value, present bool) bool {
	if !present || v.IsNull() {
		return true
	}
	switch v.Kind {
	case rule.KindString:
		return v.Str == ""
	case rule.KindList:
		return len(v.Items) == 0
	default:
		return false
	}
}
