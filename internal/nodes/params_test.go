package nodes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{1, 1, true},
		{float64(2), 2, true},
		{json.Number("3"), 3, true},
		{" 4 ", 4, true},
		{"x", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestToString(t *testing.T) {
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "abc", ToString("abc"))
	assert.Equal(t, "42", ToString(float64(42)))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "7", ToString(7))
}

func TestLookup(t *testing.T) {
	root := map[string]any{
		"options": map[string]any{"logJumps": false},
		"flat":    "value",
	}

	v, ok := Lookup(root, "options.logJumps")
	assert.True(t, ok)
	assert.Equal(t, false, v)

	v, ok = Lookup(root, "flat")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = Lookup(root, "options.missing")
	assert.False(t, ok)

	_, ok = Lookup(root, "flat.deeper")
	assert.False(t, ok)
}

func TestItemHelpers(t *testing.T) {
	item := ErrorItem(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), item.JSON["error"])

	def := &NodeDefinition{Outputs: []string{"main", "main"}, Group: []NodeGroup{GroupTrigger}}
	assert.Equal(t, 2, def.OutputCount())
	assert.True(t, def.IsTrigger())
}
