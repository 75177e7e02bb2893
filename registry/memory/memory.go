// Package memory implements the default in-memory registry.Registry,
// adapting the teacher's registry.Registry (sync.RWMutex-protected map,
// monotonic state changes persisted on every mutation) onto the
// field/entity-type domain: mutations bump a version counter instead of
// rewriting a JSON-LD file to disk.
package memory

import (
	"sync"

	"rulesengine/registry"
	"rulesengine/rule"
)

// Registry is a process-local, concurrency-safe field-config and
// entity-type store. The zero value is not usable; use New.
type Registry struct {
	mu          sync.RWMutex
	fields      map[string]rule.FieldConfig
	entityTypes map[string]rule.EntityType
	version     int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		fields:      make(map[string]rule.FieldConfig),
		entityTypes: make(map[string]rule.EntityType),
	}
}

// RegisterField inserts or replaces a field configuration and validates
// it per rule.FieldConfig.Validate.
func (r *Registry) RegisterField(cfg rule.FieldConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.Version = r.version + 1
	r.fields[cfg.FieldName] = cfg
	r.version++
	return nil
}

// UnregisterField removes a field configuration by name.
func (r *Registry) UnregisterField(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fields, name)
	r.version++
}

// RegisterEntityType inserts or replaces an entity type.
func (r *Registry) RegisterEntityType(et rule.EntityType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entityTypes[et.TypeName] = et
	r.version++
}

// Version returns the current monotonic mutation counter, useful for
// cache-invalidation checks by callers that snapshot registry reads.
func (r *Registry) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// FindFieldConfigsByName implements registry.FieldConfigRegistry.
func (r *Registry) FindFieldConfigsByName(names []string) ([]rule.FieldConfigSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rule.FieldConfigSnapshot, 0, len(names))
	for _, name := range names {
		if cfg, ok := r.fields[name]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// FindFieldConfig implements registry.FieldConfigRegistry.
func (r *Registry) FindFieldConfig(name string) (*rule.FieldConfigSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.fields[name]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// ExistsFieldName implements registry.FieldConfigRegistry.
func (r *Registry) ExistsFieldName(name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fields[name]
	return ok, nil
}

// FindEntityType implements registry.EntityTypeRegistry.
func (r *Registry) FindEntityType(typeName string) (*rule.EntityTypeSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.entityTypes[typeName]
	if !ok {
		return nil, nil
	}
	return &et, nil
}

var _ registry.Registry = (*Registry)(nil)
