package dotpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	data := map[string]any{
		"user": map[string]any{
			"name": "Ada",
			"age":  float64(36),
			"tags": []any{"admin", "ops"},
		},
		"order": map[string]any{
			"items": []any{
				map[string]any{"sku": "A-1"},
				map[string]any{"sku": "B-2"},
			},
		},
		"empty": "",
		"zero":  float64(0),
		"nope":  nil,
	}

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{"top level", "empty", "", true},
		{"nested map", "user.name", "Ada", true},
		{"nested number", "user.age", float64(36), true},
		{"slice index", "user.tags.1", "ops", true},
		{"deep slice of maps", "order.items.1.sku", "B-2", true},
		{"missing key", "user.email", nil, false},
		{"missing intermediate", "billing.address.city", nil, false},
		{"index out of range", "user.tags.5", nil, false},
		{"negative index", "user.tags.-1", nil, false},
		{"non-numeric index", "user.tags.first", nil, false},
		{"walk through scalar", "user.name.first", nil, false},
		{"empty path", "", nil, false},
		{"nil leaf", "nope", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Resolve(tt.path, data)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExists(t *testing.T) {
	data := map[string]any{
		"empty": "",
		"zero":  float64(0),
		"nope":  nil,
		"user":  map[string]any{"name": "Ada"},
	}

	assert.True(t, Exists("empty", data), "empty string counts as existing")
	assert.True(t, Exists("zero", data), "zero counts as existing")
	assert.True(t, Exists("user.name", data))
	assert.False(t, Exists("nope", data), "nil does not count as existing")
	assert.False(t, Exists("user.email", data))
}
