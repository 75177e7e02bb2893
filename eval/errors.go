package eval

import "fmt"

// EvalError is the error type for a catastrophic evaluation failure, as
// distinct from a per-leaf coercion failure, which reduces that leaf to
// false rather than aborting the evaluation. Evaluate never returns it:
// a nil rule evaluates to true.
type EvalError struct {
	Code    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
