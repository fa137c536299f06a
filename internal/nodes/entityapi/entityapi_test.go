package entityapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"n8n-gportal/internal/entity"
	"n8n-gportal/internal/gportal"
	"n8n-gportal/internal/host"
	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	requests []*entity.Request
	fail     map[int]error
}

func (r *recorder) Perform(ctx context.Context, req *entity.Request) (any, error) {
	r.requests = append(r.requests, req)
	if err, ok := r.fail[len(r.requests)-1]; ok {
		return nil, err
	}
	return map[string]any{"id": len(r.requests)}, nil
}

func items(n int) []nodes.Item {
	out := make([]nodes.Item, n)
	for i := range out {
		out[i] = nodes.NewItem(map[string]any{"i": i})
	}
	return out
}

func run(t *testing.T, node *Node, opts host.Options) ([][]nodes.Item, error) {
	t.Helper()
	opts.Definition = node.Definition()
	return node.Execute(context.Background(), host.NewExecution(opts))
}

func TestDefinition(t *testing.T) {
	def := New(gportal.DefaultOptions(), nil).Definition()

	assert.Equal(t, NodeType, def.Name)
	assert.Equal(t, 1, def.OutputCount())
	require.Len(t, def.Credentials, 1)
	assert.Equal(t, "gPortalApi", def.Credentials[0].Name)
	assert.True(t, def.Credentials[0].Required)

	op, ok := def.FindParameter("operation")
	require.True(t, ok)
	assert.Equal(t, "get", op.Default)
	assert.Len(t, op.Options, 5)
}

func TestExecuteGetPerItem(t *testing.T) {
	rec := &recorder{}
	node := New(gportal.DefaultOptions(), nil).WithTransport(rec)

	out, err := run(t, node, host.Options{
		Items:          items(2),
		Parameters:     map[string]any{"operation": "get"},
		ItemParameters: []map[string]any{{"entityId": "a"}, {"entityId": "b/c"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 2)
	assert.Equal(t, 1, out[0][0].JSON["id"])

	require.Len(t, rec.requests, 2)
	assert.Equal(t, http.MethodGet, rec.requests[0].Method())
	assert.Equal(t, "/generic-entities/a", rec.requests[0].Path())
	assert.Equal(t, "/generic-entities/b%2Fc", rec.requests[1].Path())
	assert.False(t, rec.requests[0].HasBody())
}

func TestExecuteCreateUsesEntityData(t *testing.T) {
	rec := &recorder{}
	node := New(gportal.DefaultOptions(), nil).WithTransport(rec)

	_, err := run(t, node, host.Options{
		Items: items(1),
		Parameters: map[string]any{
			"operation":  "create",
			"entityData": `{"name": "x"}`,
			"additionalFields": map[string]any{
				"queryParameters": map[string]any{
					"parameters": []any{
						map[string]any{"name": "version", "value": "1"},
						map[string]any{"name": "version", "value": "2"},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.requests, 1)
	req := rec.requests[0]
	assert.Equal(t, http.MethodPost, req.Method())
	assert.Equal(t, "/generic-entities", req.Path())
	assert.JSONEq(t, `{"name":"x"}`, string(req.Body()))
	assert.Equal(t, map[string]string{"version": "2"}, req.Query())
}

func TestExecuteUpdateDefaultPayload(t *testing.T) {
	rec := &recorder{}
	node := New(gportal.DefaultOptions(), nil).WithTransport(rec)

	_, err := run(t, node, host.Options{
		Items:      items(1),
		Parameters: map[string]any{"operation": "update", "entityId": "9"},
	})
	require.NoError(t, err)
	require.Len(t, rec.requests, 1)
	assert.Equal(t, http.MethodPatch, rec.requests[0].Method())
	assert.JSONEq(t, `{}`, string(rec.requests[0].Body()))
}

func TestExecuteUnsupported(t *testing.T) {
	rec := &recorder{}
	node := New(gportal.DefaultOptions(), nil).WithTransport(rec)

	_, err := run(t, node, host.Options{
		Items:      items(1),
		Parameters: map[string]any{"operation": "archive"},
	})
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedOperation))

	_, err = run(t, node, host.Options{
		Items:      items(1),
		Parameters: map[string]any{"resource": "user", "operation": "archive"},
	})
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedResource))
	assert.Empty(t, rec.requests)
}

func TestExecuteContinueOnFail(t *testing.T) {
	rec := &recorder{fail: map[int]error{1: errors.NewHTTPError(404, "Request failed with status code 404")}}
	m := metrics.New(nil)
	node := New(gportal.DefaultOptions(), m).WithTransport(rec)

	out, err := run(t, node, host.Options{
		Items:          items(3),
		Parameters:     map[string]any{"operation": "delete", "entityId": "1"},
		ContinueOnFail: true,
	})
	require.NoError(t, err)
	require.Len(t, out[0], 3)
	assert.Equal(t, "Request failed with status code 404", out[0][1].JSON["error"])
	assert.Len(t, rec.requests, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntityRequestsTotal.WithLabelValues("delete", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityRequestsTotal.WithLabelValues("delete", "error")))
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	rec := &recorder{fail: map[int]error{0: errors.NewHTTPError(500, "Request failed with status code 500")}}
	node := New(gportal.DefaultOptions(), nil).WithTransport(rec)

	_, err := run(t, node, host.Options{
		Items:      items(3),
		Parameters: map[string]any{"operation": "getAll"},
	})
	require.Error(t, err)
	assert.Len(t, rec.requests, 1)
}

func TestExecuteMissingCredential(t *testing.T) {
	node := New(gportal.DefaultOptions(), nil)

	_, err := run(t, node, host.Options{Items: items(1)})
	assert.True(t, errors.IsCode(err, errors.CodeResourceNotFound))
}

func TestExecuteAgainstServer(t *testing.T) {
	var gotAuth, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.RequestURI()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]any{map[string]any{"id": "1"}})
	}))
	defer srv.Close()

	node := New(gportal.DefaultOptions(), nil)
	out, err := run(t, node, host.Options{
		Items: items(1),
		Parameters: map[string]any{
			"operation": "getAll",
			"additionalFields": map[string]any{
				"queryParameters": map[string]any{
					"parameters": []any{map[string]any{"name": "limit", "value": "5"}},
				},
			},
		},
		Credentials: host.CredentialMap{"gPortalApi": {"token": "secret", "domain": srv.URL + "/api/v1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "/api/v1/generic-entities?limit=5", gotPath)
	assert.Empty(t, gotBody)
	require.Len(t, out[0], 1)
	assert.Equal(t, []any{map[string]any{"id": "1"}}, out[0][0].JSON["data"])
}

func TestQueryParameters(t *testing.T) {
	assert.Nil(t, QueryParameters(map[string]any{}))
	assert.Nil(t, QueryParameters(map[string]any{"queryParameters": "x"}))

	params := QueryParameters(map[string]any{
		"queryParameters": map[string]any{
			"parameters": []any{
				map[string]any{"name": "page", "value": float64(2)},
				"junk",
			},
		},
	})
	assert.Equal(t, []entity.QueryParameter{{Name: "page", Value: "2"}}, params)
}
