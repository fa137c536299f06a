package main

import (
	"testing"

	"n8n-gportal/internal/nodes/entityapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryParameters(t *testing.T) {
	params, err := queryParameters([]string{"limit=5", "filter=a=b", "empty="})
	require.NoError(t, err)

	folded := entityapi.QueryParameters(map[string]any{
		"queryParameters": map[string]any{"parameters": params},
	})
	require.Len(t, folded, 3)
	assert.Equal(t, "limit", folded[0].Name)
	assert.Equal(t, "5", folded[0].Value)
	assert.Equal(t, "a=b", folded[1].Value)
	assert.Equal(t, "", folded[2].Value)

	none, err := queryParameters(nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	for _, bad := range []string{"limit", "=5"} {
		_, err := queryParameters([]string{bad})
		assert.Error(t, err, bad)
	}
}
