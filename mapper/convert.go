package mapper

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rulesengine/rule"
)

var dateOnlyLayouts = []string{"2006-01-02", "01/02/2006", "01-02-2006"}
var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// Get extracts expr from root and converts the result to targetType,
// combining path resolution and type conversion into the single
// caller-facing entry point most callers want.
func Get(expr string, root interface{}, targetType rule.FieldType) (rule.Value, error) {
	raw, err := Extract(expr, root)
	if err != nil {
		return rule.Null, err
	}
	return Convert(expr, raw, targetType)
}

// Convert coerces a raw extracted value into targetType. Conversion
// failure is reported as a MappingError{Kind: CONVERSION_FAILED} carrying
// the failing path and a suggestion, per spec.md §4.3.
func Convert(expr string, raw interface{}, targetType rule.FieldType) (rule.Value, error) {
	if raw == nil {
		return rule.Null, nil
	}

	switch targetType {
	case rule.FieldNumber:
		n, ok := toNumber(raw)
		if !ok {
			return rule.Null, conversionError(expr, raw, "numeric")
		}
		return rule.Value{Kind: rule.KindNumber, Num: n}, nil

	case rule.FieldBoolean:
		b, ok := toBool(raw)
		if !ok {
			return rule.Null, conversionError(expr, raw, "boolean")
		}
		return rule.Value{Kind: rule.KindBool, Bool: b}, nil

	case rule.FieldDate:
		s, ok := toDateString(raw, dateOnlyLayouts)
		if !ok {
			return rule.Null, conversionError(expr, raw, "date (YYYY-MM-DD, MM/DD/YYYY, or MM-DD-YYYY)")
		}
		return rule.Value{Kind: rule.KindDate, Str: s}, nil

	case "DATETIME", "DATE_TIME":
		s, ok := toDateString(raw, dateTimeLayouts)
		if !ok {
			return rule.Null, conversionError(expr, raw, "date-time (ISO-8601 or YYYY-MM-DD HH:MM:SS)")
		}
		return rule.Value{Kind: rule.KindDateTime, Str: s}, nil

	case rule.FieldArray:
		list, ok := asList(raw)
		if !ok {
			return rule.Null, conversionError(expr, raw, "array")
		}
		items := make([]rule.Value, 0, len(list))
		for _, item := range list {
			items = append(items, rawToValue(item))
		}
		return rule.Value{Kind: rule.KindList, Items: items}, nil

	case rule.FieldString, rule.FieldObject, "":
		return rawToValue(raw), nil

	default:
		return rawToValue(raw), nil
	}
}

func conversionError(expr string, raw interface{}, want string) *MappingError {
	return &MappingError{
		Expression:  expr,
		FailingPath: expr,
		Kind:        ConversionFailed,
		Suggestion:  fmt.Sprintf("value %v could not be converted to %s", raw, want),
	}
}

// rawToValue wraps a raw decoded value (string/float64/bool/[]interface{})
// into a rule.Value without any target-type conversion.
func rawToValue(raw interface{}) rule.Value {
	switch t := raw.(type) {
	case nil:
		return rule.Null
	case string:
		return rule.Value{Kind: rule.KindString, Str: t}
	case float64:
		return rule.Value{Kind: rule.KindNumber, Num: t}
	case int:
		return rule.Value{Kind: rule.KindNumber, Num: float64(t)}
	case bool:
		return rule.Value{Kind: rule.KindBool, Bool: t}
	case []interface{}:
		items := make([]rule.Value, 0, len(t))
		for _, item := range t {
			items = append(items, rawToValue(item))
		}
		return rule.Value{Kind: rule.KindList, Items: items}
	default:
		return rule.Value{Kind: rule.KindString, Str: fmt.Sprintf("%v", t)}
	}
}

// toNumber accepts integer and decimal literals; decimal-to-integer
// truncation is the caller's concern on read, not performed here.
func toNumber(raw interface{}) (float64, bool) {
	switch t := raw.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case bool:
		return 0, false
	default:
		return 0, false
	}
}

// toBool accepts true/false/1/0/yes/no, case-insensitive.
func toBool(raw interface{}) (bool, bool) {
	switch t := raw.(type) {
	case bool:
		return t, true
	case float64:
		if t == 1 {
			return true, true
		}
		if t == 0 {
			return false, true
		}
		return false, false
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

func toDateString(raw interface{}, layouts []string) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s, true
		}
	}
	return "", false
}
