// Package calculator implements the field calculator framework (C5):
// built-in named functions, an expression language over `#field`
// references, and a custom-calculator loader whose instances are cached
// for the process lifetime — mirroring the teacher's connection-reuse
// idiom (db/repository) applied to calculator instances rather than
// database handles.
package calculator

import (
	"sync"

	"rulesengine/rule"
)

// Calculator computes one field's value from a parameter set and an
// immutable view of the already-resolved field values. Calculators must
// not mutate context.
type Calculator interface {
	ValidateParameters(params rule.CalculatorParameters) error
	Calculate(params rule.CalculatorParameters, context map[string]rule.Value) (rule.Value, error)
}

// CustomLoader resolves a CUSTOM calculator's classRef to an
// implementation, typically via a registration table populated at program
// startup.
type CustomLoader func(classRef string) (Calculator, error)

// Registry holds the built-in calculator table and an optional custom
// loader, and owns the process-wide caches for custom-calculator instances
// and parsed expression ASTs.
type Registry struct {
	builtins     map[string]Calculator
	customLoader CustomLoader

	customCache sync.Map // map[string]Calculator, keyed by classRef
	exprCache   sync.Map // map[string]exprNode, keyed by expression text
}

// NewRegistry creates a calculator Registry pre-populated with the
// built-ins from builtin.go.
func NewRegistry(customLoader CustomLoader) *Registry {
	return &Registry{
		builtins:     defaultBuiltins(),
		customLoader: customLoader,
	}
}

// Calculate dispatches cfg to the appropriate calculator kind and returns
// the computed value, wrapping any failure in a CalculatorError.
func (r *Registry) Calculate(cfg *rule.CalculatorConfig, fieldName string, context map[string]rule.Value) (rule.Value, error) {
	switch cfg.Kind {
	case rule.CalculatorExpression:
		return r.calculateExpression(cfg, fieldName, context)
	case rule.CalculatorBuiltin:
		return r.calculateBuiltin(cfg, fieldName, context)
	case rule.CalculatorCustom:
		return r.calculateCustom(cfg, fieldName, context)
	default:
		return rule.Null, &CalculatorError{Name: string(cfg.Kind), Field: fieldName, Cause: errUnknownKind}
	}
}

var errUnknownKind = &calcErr{"unknown calculator kind"}

type calcErr struct{ msg string }

func (e *calcErr) Error() string { return e.msg }

func (r *Registry) calculateBuiltin(cfg *rule.CalculatorConfig, fieldName string, context map[string]rule.Value) (rule.Value, error) {
	fn, ok := r.builtins[cfg.Function]
	if !ok {
		return rule.Null, &CalculatorError{Name: cfg.Function, Field: fieldName, Cause: &calcErr{"no such builtin function"}}
	}
	if err := fn.ValidateParameters(cfg.Parameters); err != nil {
		return rule.Null, &CalculatorError{Name: cfg.Function, Field: fieldName, Cause: err}
	}
	val, err := fn.Calculate(cfg.Parameters, context)
	if err != nil {
		return rule.Null, &CalculatorError{Name: cfg.Function, Field: fieldName, Cause: err}
	}
	return val, nil
}

func (r *Registry) calculateCustom(cfg *rule.CalculatorConfig, fieldName string, context map[string]rule.Value) (rule.Value, error) {
	if r.customLoader == nil {
		return rule.Null, &CalculatorError{Name: cfg.ClassRef, Field: fieldName, Cause: &calcErr{"no custom calculator loader configured"}}
	}
	inst, err := r.loadCustom(cfg.ClassRef)
	if err != nil {
		return rule.Null, &CalculatorError{Name: cfg.ClassRef, Field: fieldName, Cause: err}
	}
	if err := inst.ValidateParameters(cfg.Parameters); err != nil {
		return rule.Null, &CalculatorError{Name: cfg.ClassRef, Field: fieldName, Cause: err}
	}
	val, err := inst.Calculate(cfg.Parameters, context)
	if err != nil {
		return rule.Null, &CalculatorError{Name: cfg.ClassRef, Field: fieldName, Cause: err}
	}
	return val, nil
}

// loadCustom returns the cached instance for classRef, loading and caching
// it on first use. Repeated loads of the same class return the same
// instance (spec.md §8 round-trip property).
func (r *Registry) loadCustom(classRef string) (Calculator, error) {
	if cached, ok := r.customCache.Load(classRef); ok {
		return cached.(Calculator), nil
	}
	inst, err := r.customLoader(classRef)
	if err != nil {
		return nil, err
	}
	actual, _ := r.customCache.LoadOrStore(classRef, inst)
	return actual.(Calculator), nil
}

// ClearCustomCache empties the process-wide custom-calculator instance
// cache. Exposed for tests.
func (r *Registry) ClearCustomCache() {
	r.customCache.Range(func(key, _ interface{}) bool {
		r.customCache.Delete(key)
		return true
	})
}
