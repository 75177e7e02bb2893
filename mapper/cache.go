package mapper

import (
	"reflect"
	"sync"
)

// metadataCache memoizes struct field lookups keyed by (reflect.Type,
// field name), shared process-wide per spec.md §4.3 ("memoized for the
// process lifetime") and §9 ("must be safe for concurrent read/write and
// should be clearable for tests"). Mirrors the teacher's process-wide
// calculator instance cache precedent (see calculator.customCache).
type metadataCache struct {
	fields sync.Map // map[reflect.Type]map[string]int
}

var globalMetadataCache = &metadataCache{}

// fieldIndex returns the struct field index for name on t, or -1 if no
// exported field (or `mapper` struct tag) matches. Results are memoized
// per type.
func (c *metadataCache) fieldIndex(t reflect.Type, name string) int {
	raw, _ := c.fields.LoadOrStore(t, buildFieldIndex(t))
	index := raw.(map[string]int)
	if idx, ok := index[name]; ok {
		return idx
	}
	return -1
}

func buildFieldIndex(t reflect.Type) map[string]int {
	index := make(map[string]int)
	if t.Kind() != reflect.Struct {
		return index
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("mapper"); ok && tag != "" {
			index[tag] = i
		}
		if _, exists := index[f.Name]; !exists {
			index[f.Name] = i
		}
	}
	return index
}

// ClearMetadataCache empties the process-wide reflection metadata cache.
// Exposed for tests.
func ClearMetadataCache() {
	globalMetadataCache.fields.Range(func(key, _ interface{}) bool {
		globalMetadataCache.fields.Delete(key)
		return true
	})
}

// pathCache memoizes parsed mapper expressions by their source text, so a
// field config's expression is parsed into an AST once.
var pathCache sync.Map // map[string][]Segment

func parsePathCached(expr string) ([]Segment, error) {
	if cached, ok := pathCache.Load(expr); ok {
		return cached.([]Segment), nil
	}
	segments, err := ParsePath(expr)
	if err != nil {
		return nil, err
	}
	pathCache.Store(expr, segments)
	return segments, nil
}

// ClearPathCache empties the process-wide parsed-path cache. Exposed for
// tests.
func ClearPathCache() {
	pathCache.Range(func(key, _ interface{}) bool {
		pathCache.Delete(key)
		return true
	})
}
