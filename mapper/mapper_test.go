package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesengine/rule"
)

func TestExtractDottedPath(t *testing.T) {
	root := map[string]interface{}{
		"user": map[string]interface{}{
			"profile": map[string]interface{}{
				"email": "a@example.com",
			},
		},
	}
	v, err := Extract("user.profile.email", root)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", v)
}

func TestExtractIndex(t *testing.T) {
	root := map[string]interface{}{
		"orders": []interface{}{
			map[string]interface{}{"amount": 10.0},
			map[string]interface{}{"amount": 20.0},
		},
	}
	v, err := Extract("orders[0].amount", root)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)
}

func TestExtractIndexOutOfRange(t *testing.T) {
	root := map[string]interface{}{"orders": []interface{}{map[string]interface{}{"amount": 10.0}}}
	_, err := Extract("orders[5].amount", root)
	require.Error(t, err)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, IndexOutOfBounds, me.Kind)
}

func TestExtractFilter(t *testing.T) {
	root := map[string]interface{}{
		"data": map[string]interface{}{
			"users": []interface{}{
				map[string]interface{}{"id": 123.0, "name": "Alice"},
				map[string]interface{}{"id": 456.0, "name": "Bob"},
			},
		},
	}
	v, err := Extract("data.users[id=123].name", root)
	require.NoError(t, err)
	assert.Equal(t, "Alice", v)
}

func TestExtractFilterNoMatch(t *testing.T) {
	root := map[string]interface{}{"users": []interface{}{map[string]interface{}{"id": 1.0}}}
	_, err := Extract("users[id=999].name", root)
	require.Error(t, err)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, NoMatchInFilter, me.Kind)
}

func TestExtractWildcard(t *testing.T) {
	root := map[string]interface{}{
		"data": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"price": 1.0},
				map[string]interface{}{"price": 2.0},
			},
		},
	}
	v, err := Extract("data.items[*].price", root)
	require.NoError(t, err)
	list, ok := v.([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{1.0, 2.0}, list)
}

func TestExtractNullValue(t *testing.T) {
	root := map[string]interface{}{"user": nil}
	_, err := Extract("user.email", root)
	require.Error(t, err)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, NullValue, me.Kind)
}

func TestExtractFromStruct(t *testing.T) {
	type Profile struct {
		Email string
	}
	type User struct {
		Profile Profile
	}
	v, err := Extract("Profile.Email", User{Profile: Profile{Email: "b@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", v)
}

func TestConvertNumeric(t *testing.T) {
	v, err := Convert("price", "19.99", rule.FieldNumber)
	require.NoError(t, err)
	assert.Equal(t, 19.99, v.Num)
}

func TestConvertBoolean(t *testing.T) {
	v, err := Convert("active", "YES", rule.FieldBoolean)
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestConvertDateFailure(t *testing.T) {
	_, err := Convert("dob", "not-a-date", rule.FieldDate)
	require.Error(t, err)
	var me *MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ConversionFailed, me.Kind)
}

func TestConvertDateAcceptsMultipleLayouts(t *testing.T) {
	for _, s := range []string{"2024-01-15", "01/15/2024", "01-15-2024"} {
		v, err := Convert("dob", s, rule.FieldDate)
		require.NoError(t, err, s)
		assert.Equal(t, s, v.Str)
	}
}

func TestParsePathInvalid(t *testing.T) {
	_, err := ParsePath("foo[")
	require.Error(t, err)
}

func TestMetadataCacheMemoizesAcrossCalls(t *testing.T) {
	ClearMetadataCache()
	type T struct{ Name string }
	_, err := Extract("Name", T{Name: "x"})
	require.NoError(t, err)
	_, err = Extract("Name", T{Name: "y"})
	require.NoError(t, err)
}

func TestGetCombinesExtractAndConvert(t *testing.T) {
	root := map[string]interface{}{"score": "85"}
	v, err := Get("score", root, rule.FieldNumber)
	require.NoError(t, err)
	assert.Equal(t, 85.0, v.Num)
}
