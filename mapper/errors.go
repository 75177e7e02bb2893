package mapper

import "fmt"

// ErrorKind is the closed set of mapper failure categories from spec.md
// §4.3.
type ErrorKind string

const (
	NullValue          ErrorKind = "NULL_VALUE"
	PropertyNotFound   ErrorKind = "PROPERTY_NOT_FOUND"
	IndexOutOfBounds   ErrorKind = "INDEX_OUT_OF_BOUNDS"
	NoMatchInFilter    ErrorKind = "NO_MATCH_IN_FILTER"
	InvalidExpression  ErrorKind = "INVALID_EXPRESSION"
	ConversionFailed   ErrorKind = "CONVERSION_FAILED"
	MapKeyMissing      ErrorKind = "MAP_KEY_MISSING"
)

// MappingError is the unified error type for path resolution and type
// conversion failures (spec.md §4.3), carrying enough context for a caller
// to diff two field configs and discover broken dependencies.
type MappingError struct {
	Expression  string
	FailingPath string
	Kind        ErrorKind
	Suggestion  string
}

func (e *MappingError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: failed at %q in %q (%s)", e.Kind, e.FailingPath, e.Expression, e.Suggestion)
	}
	return fmt.Sprintf("%s: failed at %q in %q", e.Kind, e.FailingPath, e.Expression)
}

// PathError reports a syntactically malformed mapper expression, detected
// before any data is touched.
type PathError struct {
	Expression string
	Message    string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("INVALID_EXPRESSION: %s (expression %q)", e.Message, e.Expression)
}
