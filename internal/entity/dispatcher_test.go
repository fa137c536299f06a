package entity

import (
	"context"
	stderrors "errors"
	"testing"

	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Perform(ctx context.Context, req *Request) (any, error) {
	args := m.Called(ctx, req)
	return args.Get(0), args.Error(1)
}

func requestFor(method, path string) any {
	return mock.MatchedBy(func(r *Request) bool {
		return r.Method() == method && r.Path() == path
	})
}

func TestDispatchCreate(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Perform", mock.Anything, mock.MatchedBy(func(r *Request) bool {
		return r.Method() == "POST" && r.Path() == "/generic-entities" && string(r.Body()) == `{"name":"A"}`
	})).Return(map[string]any{"id": "1", "name": "A"}, nil)

	m := metrics.New(nil)
	d := NewDispatcher(transport, logger.Nop(), m)

	body, err := d.Dispatch(context.Background(), Input{Operation: "create", Resource: "entity", Payload: `{"name":"A"}`})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "1", "name": "A"}, body)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntityRequestsTotal.WithLabelValues("create", "success")))
	transport.AssertExpectations(t)
}

func TestDispatchInvalidPayloadNeverReachesTransport(t *testing.T) {
	transport := new(MockTransport)
	d := NewDispatcher(transport, logger.Nop(), nil)

	_, err := d.Dispatch(context.Background(), Input{Operation: "create", Resource: "entity", Payload: "{bad"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidPayload))
	transport.AssertNotCalled(t, "Perform", mock.Anything, mock.Anything)
}

type transportFunc func(ctx context.Context, req *Request) (any, error)

func (f transportFunc) Perform(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

func TestDispatchWrapsPlainTransportErrors(t *testing.T) {
	d := NewDispatcher(transportFunc(func(ctx context.Context, req *Request) (any, error) {
		return nil, stderrors.New("connection refused")
	}), logger.Nop(), nil)

	_, err := d.Dispatch(context.Background(), Input{Operation: "get", Resource: "entity", EntityID: "1"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTransport))
	assert.Contains(t, err.Error(), "GET /generic-entities/1")
}

func TestRunPreservesOrder(t *testing.T) {
	transport := new(MockTransport)
	for _, id := range []string{"a", "b", "c"} {
		transport.On("Perform", mock.Anything, requestFor("GET", "/generic-entities/"+id)).
			Return(map[string]any{"id": id}, nil).Once()
	}

	ids := []string{"a", "b", "c"}
	d := NewDispatcher(transport, logger.Nop(), nil)
	items, err := d.Run(context.Background(), len(ids), func(i int) (Input, error) {
		return Input{Operation: "get", Resource: "entity", EntityID: ids[i]}, nil
	}, false)

	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, id := range ids {
		assert.Equal(t, id, items[i].JSON["id"])
	}
	transport.AssertExpectations(t)
}

func TestRunContinueOnFail(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Perform", mock.Anything, requestFor("GET", "/generic-entities/ok")).
		Return(map[string]any{"id": "ok"}, nil)
	transport.On("Perform", mock.Anything, requestFor("GET", "/generic-entities/missing")).
		Return(nil, errors.NewHTTPError(404, "Request failed with status code 404"))

	ids := []string{"ok", "missing", "ok"}
	d := NewDispatcher(transport, logger.Nop(), nil)
	items, err := d.Run(context.Background(), len(ids), func(i int) (Input, error) {
		return Input{Operation: "get", Resource: "entity", EntityID: ids[i]}, nil
	}, true)

	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "ok", items[0].JSON["id"])
	assert.Equal(t, map[string]any{"error": "Request failed with status code 404"}, items[1].JSON)
	assert.Equal(t, "ok", items[2].JSON["id"])
}

func TestRunAbortsWithoutContinueOnFail(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Perform", mock.Anything, requestFor("GET", "/generic-entities/1")).
		Return(map[string]any{"id": "1"}, nil)
	transport.On("Perform", mock.Anything, requestFor("GET", "/generic-entities/2")).
		Return(nil, errors.NewHTTPError(500, "Request failed with status code 500"))

	d := NewDispatcher(transport, logger.Nop(), nil)
	items, err := d.Run(context.Background(), 3, func(i int) (Input, error) {
		return Input{Operation: "get", Resource: "entity", EntityID: []string{"1", "2", "3"}[i]}, nil
	}, false)

	require.Error(t, err)
	assert.Nil(t, items)
	assert.Contains(t, err.Error(), "item 1")
	transport.AssertNumberOfCalls(t, "Perform", 2)
}

func TestRunResolverErrorIsItemLocal(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Perform", mock.Anything, mock.Anything).Return(map[string]any{"ok": true}, nil)

	d := NewDispatcher(transport, logger.Nop(), nil)
	items, err := d.Run(context.Background(), 2, func(i int) (Input, error) {
		if i == 0 {
			return Input{}, errors.NewParameterResolutionError("entityId", i)
		}
		return Input{Operation: "getAll", Resource: "entity"}, nil
	}, true)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, `Could not get parameter "entityId"`, items[0].JSON["error"])
	assert.Equal(t, true, items[1].JSON["ok"])
}

func TestRunInvalidPayloadUnderContinueOnFail(t *testing.T) {
	transport := new(MockTransport)
	d := NewDispatcher(transport, logger.Nop(), nil)

	items, err := d.Run(context.Background(), 1, func(int) (Input, error) {
		return Input{Operation: "create", Resource: "entity", Payload: "nope"}, nil
	}, true)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].JSON["error"], "Entity data must be valid JSON")
	transport.AssertNotCalled(t, "Perform", mock.Anything, mock.Anything)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(new(MockTransport), logger.Nop(), nil)
	_, err := d.Run(ctx, 1, func(int) (Input, error) { return Input{}, nil }, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultItem(t *testing.T) {
	assert.Equal(t, nodes.NewItem(map[string]any{"id": "1"}), ResultItem(map[string]any{"id": "1"}))
	assert.Equal(t, nodes.NewItem(map[string]any{}), ResultItem(nil))
	assert.Equal(t, nodes.NewItem(map[string]any{"data": []any{"x"}}), ResultItem([]any{"x"}))
}
