// Package registry defines the read-side contract the core depends on
// for field configurations and entity types (C9). The core never writes
// through this interface; registration/mutation is an implementation
// concern (spec.md §4.9 "The registry is otherwise opaque").
package registry

import "rulesengine/rule"

// FieldConfigRegistry is the read-side contract for field configurations.
type FieldConfigRegistry interface {
	FindFieldConfigsByName(names []string) ([]rule.FieldConfigSnapshot, error)
	FindFieldConfig(name string) (*rule.FieldConfigSnapshot, error)
	ExistsFieldName(name string) (bool, error)
}

// EntityTypeRegistry is the read-side contract for entity types.
type EntityTypeRegistry interface {
	FindEntityType(typeName string) (*rule.EntityTypeSnapshot, error)
}

// Registry composes both read-side contracts, the shape the resolver and
// entity filter engine depend on in practice.
type Registry interface {
	FieldConfigRegistry
	EntityTypeRegistry
}

// NotFoundError reports a missing field or entity-type lookup.
type NotFoundError struct {
	Kind string // "field" or "entityType"
	Name string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found: " + e.Name
}
