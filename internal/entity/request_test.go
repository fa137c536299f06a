package entity

import (
	"encoding/json"
	"net/http"
	"testing"

	"n8n-gportal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDispatchTable(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		wantMethod string
		wantPath   string
		wantBody   string
	}{
		{
			name:       "create posts payload",
			in:         Input{Operation: "create", Resource: "entity", Payload: `{"name":"A"}`},
			wantMethod: http.MethodPost,
			wantPath:   "/generic-entities",
			wantBody:   `{"name":"A"}`,
		},
		{
			name:       "get addresses entity",
			in:         Input{Operation: "get", Resource: "entity", EntityID: "42"},
			wantMethod: http.MethodGet,
			wantPath:   "/generic-entities/42",
		},
		{
			name:       "getAll lists collection",
			in:         Input{Operation: "getAll", Resource: "entity"},
			wantMethod: http.MethodGet,
			wantPath:   "/generic-entities",
		},
		{
			name:       "update patches entity",
			in:         Input{Operation: "update", Resource: "entity", EntityID: "7", Payload: `{"x":1}`},
			wantMethod: http.MethodPatch,
			wantPath:   "/generic-entities/7",
			wantBody:   `{"x":1}`,
		},
		{
			name:       "delete removes entity",
			in:         Input{Operation: "delete", Resource: "entity", EntityID: "9"},
			wantMethod: http.MethodDelete,
			wantPath:   "/generic-entities/9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Build(tt.in)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMethod, req.Method())
			assert.Equal(t, tt.wantPath, req.Path())
			if tt.wantBody == "" {
				assert.False(t, req.HasBody())
				assert.Nil(t, req.Body())
			} else {
				assert.True(t, req.HasBody())
				assert.JSONEq(t, tt.wantBody, string(req.Body()))
			}
		})
	}
}

func TestBuildNeverAttachesBodyToGetOrDelete(t *testing.T) {
	for _, op := range []string{"get", "getAll", "delete"} {
		req, err := Build(Input{Operation: op, Resource: "entity", EntityID: "1", Payload: `{"ignored":true}`})
		require.NoError(t, err, op)
		assert.False(t, req.HasBody(), op)
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("unknown operation", func(t *testing.T) {
		_, err := Build(Input{Operation: "archive", Resource: "entity"})
		assert.True(t, errors.IsCode(err, errors.CodeUnsupportedOperation))
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := Build(Input{Operation: "get", Resource: "user", EntityID: "1"})
		assert.True(t, errors.IsCode(err, errors.CodeUnsupportedResource))
	})

	t.Run("resource checked before operation", func(t *testing.T) {
		_, err := Build(Input{Operation: "archive", Resource: "user"})
		assert.True(t, errors.IsCode(err, errors.CodeUnsupportedResource))
	})

	t.Run("invalid JSON payload", func(t *testing.T) {
		_, err := Build(Input{Operation: "create", Resource: "entity", Payload: "{not json"})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidPayload))
	})

	t.Run("empty string payload", func(t *testing.T) {
		_, err := Build(Input{Operation: "update", Resource: "entity", EntityID: "1", Payload: ""})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidPayload))
	})

	t.Run("missing payload", func(t *testing.T) {
		_, err := Build(Input{Operation: "create", Resource: "entity"})
		assert.True(t, errors.IsCode(err, errors.CodeParameterResolution))
	})

	t.Run("null payload", func(t *testing.T) {
		var none map[string]any
		for _, payload := range []any{"null", " null ", json.RawMessage("null"), []byte("null"), none} {
			_, err := Build(Input{Operation: "update", Resource: "entity", EntityID: "1", Payload: payload})
			assert.True(t, errors.IsCode(err, errors.CodeParameterResolution), "%v", payload)
		}
	})

	t.Run("missing entity id", func(t *testing.T) {
		for _, op := range []string{"get", "update", "delete"} {
			_, err := Build(Input{Operation: op, Resource: "entity", EntityID: "  ", Payload: "{}"})
			assert.True(t, errors.IsCode(err, errors.CodeParameterResolution), op)
		}
	})
}

func TestBuildPayloadForms(t *testing.T) {
	t.Run("decoded map", func(t *testing.T) {
		req, err := Build(Input{Operation: "create", Resource: "entity", Payload: map[string]any{"a": 1}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(req.Body()))
	})

	t.Run("raw message", func(t *testing.T) {
		req, err := Build(Input{Operation: "create", Resource: "entity", Payload: json.RawMessage(`[1, 2]`)})
		require.NoError(t, err)
		assert.Equal(t, `[1,2]`, string(req.Body()))
	})

	t.Run("string is not double encoded", func(t *testing.T) {
		req, err := Build(Input{Operation: "create", Resource: "entity", Payload: ` {"a": "b"} `})
		require.NoError(t, err)
		assert.Equal(t, `{"a":"b"}`, string(req.Body()))
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		_, err := Build(Input{Operation: "create", Resource: "entity", Payload: map[string]any{"ch": make(chan int)}})
		assert.True(t, errors.IsCode(err, errors.CodeInvalidPayload))
	})
}

func TestFoldQuery(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		assert.Empty(t, FoldQuery(nil))
	})

	t.Run("last write wins", func(t *testing.T) {
		q := FoldQuery([]QueryParameter{{"a", "1"}, {"b", "2"}, {"a", "3"}})
		assert.Equal(t, map[string]string{"a": "3", "b": "2"}, q)
	})

	t.Run("request query is a copy", func(t *testing.T) {
		req, err := Build(Input{Operation: "getAll", Resource: "entity", Query: []QueryParameter{{"limit", "10"}}})
		require.NoError(t, err)

		q := req.Query()
		q["limit"] = "99"
		assert.Equal(t, "10", req.Query()["limit"])
	})
}

func TestResolveURL(t *testing.T) {
	req, err := Build(Input{
		Operation: "getAll",
		Resource:  "entity",
		Query:     []QueryParameter{{"limit", "10"}, {"type", "Customer"}},
	})
	require.NoError(t, err)

	u, err := ResolveURL("http://localhost:8080/api/v1/", req.Path(), req.Query())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/generic-entities?limit=10&type=Customer", u)

	u, err = ResolveURL("http://localhost:8080/api/v1", "/entity-types", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/entity-types", u)

	_, err = ResolveURL("http://[::1", "/generic-entities", nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidFormat))
}

func TestEntityIDIsPathEscaped(t *testing.T) {
	req, err := Build(Input{Operation: "get", Resource: "entity", EntityID: "a/b c"})
	require.NoError(t, err)
	assert.Equal(t, "/generic-entities/a%2Fb%20c", req.Path())
}
