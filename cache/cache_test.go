package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesengine/cache"
	"rulesengine/cache/memory"
	"rulesengine/rule"
)

func TestKeyIsOrderIndependentOverVariables(t *testing.T) {
	k1 := cache.Key("https://api.example.com/users", "query { user }", map[string]interface{}{"id": "1", "includeDetails": true})
	k2 := cache.Key("https://api.example.com/users", "query { user }", map[string]interface{}{"includeDetails": true, "id": "1"})
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersOnEndpointQueryOrVariables(t *testing.T) {
	base := cache.Key("https://a", "q", map[string]interface{}{"id": "1"})
	assert.NotEqual(t, base, cache.Key("https://b", "q", map[string]interface{}{"id": "1"}))
	assert.NotEqual(t, base, cache.Key("https://a", "q2", map[string]interface{}{"id": "1"}))
	assert.NotEqual(t, base, cache.Key("https://a", "q", map[string]interface{}{"id": "2"}))
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := memory.New()
	key := cache.Key("https://a", "q", nil)

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, cache.Entry{StatusCode: 200, Data: map[string]interface{}{"ok": true}})
	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 200, entry.StatusCode)
}

func TestRuleCacheReturnsSameInstance(t *testing.T) {
	rc := cache.NewRuleCache()
	parsed := &rule.Rule{Root: &rule.Group{Combinator: rule.And}}
	key := cache.RuleKey([]byte(`{"combinator":"and","rules":[]}`))

	rc.Set(key, parsed)
	got, ok := rc.Get(key)
	require.True(t, ok)
	assert.Same(t, parsed, got)

	_, ok = rc.Get(cache.RuleKey([]byte(`{"combinator":"or","rules":[]}`)))
	assert.False(t, ok)
}
