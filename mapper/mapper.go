// Package mapper implements the reflective path-based mapper (C3): it
// extracts a scalar value from a nested response using a path expression
// (spec.md §4.3) and converts it to a target field type.
//
// The accessor layer generalizes the teacher's runtime.getNestedField
// (dot-only map traversal) to the full segment grammar: index, key-filter,
// and wildcard, over maps, lists, and Go structs via reflect.
package mapper

import (
	"fmt"
	"reflect"
)

// Extract resolves expr against root and returns the raw (unconverted)
// value it selects. Use Get for extraction plus type conversion.
func Extract(expr string, root interface{}) (interface{}, error) {
	segments, err := parsePathCached(expr)
	if err != nil {
		return nil, err
	}
	return extractSegments(expr, segments, root, "")
}

func extractSegments(expr string, segments []Segment, current interface{}, pathSoFar string) (interface{}, error) {
	if len(segments) == 0 {
		return current, nil
	}
	seg := segments[0]
	rest := segments[1:]
	nextPath := appendPath(pathSoFar, seg)

	switch seg.Kind {
	case SegName:
		if current == nil {
			return nil, &MappingError{Expression: expr, FailingPath: nextPath, Kind: NullValue}
		}
		value, found := getProperty(current, seg.Name)
		if !found {
			return nil, &MappingError{
				Expression:  expr,
				FailingPath: nextPath,
				Kind:        propertyNotFoundKind(current),
				Suggestion:  fmt.Sprintf("no property %q on the value at this path", seg.Name),
			}
		}
		return extractSegments(expr, rest, value, nextPath)

	case SegIndex:
		list, ok := asList(current)
		if !ok {
			return nil, &MappingError{Expression: expr, FailingPath: nextPath, Kind: InvalidExpression, Suggestion: "index access requires a list"}
		}
		if seg.Index < 0 || seg.Index >= len(list) {
			return nil, &MappingError{
				Expression:  expr,
				FailingPath: nextPath,
				Kind:        IndexOutOfBounds,
				Suggestion:  fmt.Sprintf("index %d out of range for list of length %d", seg.Index, len(list)),
			}
		}
		return extractSegments(expr, rest, list[seg.Index], nextPath)

	case SegFilter:
		list, ok := asList(current)
		if !ok {
			return nil, &MappingError{Expression: expr, FailingPath: nextPath, Kind: InvalidExpression, Suggestion: "filter access requires a list"}
		}
		for _, item := range list {
			value, found := getProperty(item, seg.FilterKey)
			if found && propertyEqualsLiteral(value, seg.FilterLiteral) {
				return extractSegments(expr, rest, item, nextPath)
			}
		}
		return nil, &MappingError{
			Expression:  expr,
			FailingPath: nextPath,
			Kind:        NoMatchInFilter,
			Suggestion:  fmt.Sprintf("no element with %s=%s", seg.FilterKey, seg.FilterLiteral),
		}

	case SegWildcard:
		list, ok := asList(current)
		if !ok {
			return nil, &MappingError{Expression: expr, FailingPath: nextPath, Kind: InvalidExpression, Suggestion: "wildcard access requires a list"}
		}
		if len(rest) == 0 {
			return list, nil
		}
		results := make([]interface{}, 0, len(list))
		for i, item := range list {
			value, err := extractSegments(expr, rest, item, fmt.Sprintf("%s.%d", nextPath, i))
			if err != nil {
				return nil, err
			}
			results = append(results, value)
		}
		return results, nil

	default:
		return nil, &MappingError{Expression: expr, FailingPath: nextPath, Kind: InvalidExpression}
	}
}

func appendPath(base string, seg Segment) string {
	if base == "" {
		return seg.String()
	}
	if seg.Kind == SegName {
		return base + "." + seg.String()
	}
	return base + seg.String()
}

func propertyNotFoundKind(current interface{}) ErrorKind {
	if _, isMap := current.(map[string]interface{}); isMap {
		return MapKeyMissing
	}
	return PropertyNotFound
}

// getProperty reads a named property from obj: a map key, or a struct
// field (matched via the memoized reflection metadata cache).
func getProperty(obj interface{}, name string) (interface{}, bool) {
	if obj == nil {
		return nil, false
	}
	if m, ok := obj.(map[string]interface{}); ok {
		value, found := m[name]
		return value, found
	}

	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		idx := globalMetadataCache.fieldIndex(v.Type(), name)
		if idx < 0 {
			return nil, false
		}
		return v.Field(idx).Interface(), true
	case reflect.Map:
		key := reflect.ValueOf(name)
		if !key.Type().AssignableTo(v.Type().Key()) {
			return nil, false
		}
		value := v.MapIndex(key)
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	default:
		return nil, false
	}
}

// asList normalizes obj into a []interface{} if it is any list-shaped
// value (native slice or a []interface{} from JSON decoding).
func asList(obj interface{}) ([]interface{}, bool) {
	if obj == nil {
		return nil, false
	}
	if list, ok := obj.([]interface{}); ok {
		return list, true
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = v.Index(i).Interface()
	}
	return out, true
}

// propertyEqualsLiteral compares value to literal "by string form", per
// spec.md §4.3's filter-segment semantics.
func propertyEqualsLiteral(value interface{}, literal string) bool {
	return fmt.Sprintf("%v", value) == literal
}
