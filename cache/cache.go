// Package cache implements the request-time cache (C10): a short-lived
// memo for data-service responses scoped to one resolution or filter
// operation, plus a parallel cache of parsed rules for one filter
// operation's lifetime.
//
// The default backing is an in-process map (package memory); an optional
// Redis-backed implementation (package rediscache) lets callers share a
// cache across resolver instances in the same process pool, grounded on
// the teacher's db/repository.RedisRepository SETNX/GET-with-TTL idiom.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"rulesengine/rule"
)

// Entry is one memoized data-service response.
type Entry struct {
	StatusCode int
	Data       interface{}
}

// RequestCache memoizes data-service responses within the scope of one
// resolution (spec.md §4.10): keyed by (endpoint, query-hash, sorted
// variables), purged at resolution end.
type RequestCache interface {
	Get(key string) (Entry, bool)
	Set(key string, entry Entry)
}

// Key builds the cache key for one outbound call: endpoint, a hash of the
// query/expression text, and the variables in sorted-key order so that
// equivalent calls with differently-ordered maps collide correctly.
func Key(endpoint, query string, variables map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})

	keys := make([]string, 0, len(variables))
	for k := range variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		if b, err := json.Marshal(variables[k]); err == nil {
			h.Write(b)
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RuleCache memoizes parsed rules by their canonical-JSON hash for the
// lifetime of one filter operation (spec.md §4.10), so repeated parses of
// the same rule JSON across entities in a batch reuse one *rule.Rule.
type RuleCache struct {
	mu      sync.Mutex
	entries map[string]*rule.Rule
}

// NewRuleCache creates an empty RuleCache.
func NewRuleCache() *RuleCache {
	return &RuleCache{entries: make(map[string]*rule.Rule)}
}

// RuleKey hashes canonical rule JSON for use as a RuleCache key.
func RuleKey(canonicalJSON []byte) string {
	sum := sha256.Sum256(canonicalJSON)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached rule for key, if present.
func (c *RuleCache) Get(key string) (*rule.Rule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

// Set stores r under key.
func (c *RuleCache) Set(key string, r *rule.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r
}
