package entity

import (
	"context"
	"fmt"
	"time"

	"n8n-gportal/internal/nodes"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
	"n8n-gportal/pkg/tracing"
)

// Transport performs a built request and returns the decoded response body.
// Timeouts, retries and connection reuse belong to the implementation.
type Transport interface {
	Perform(ctx context.Context, req *Request) (any, error)
}

// Resolver produces the request input for the item at itemIndex
type Resolver func(itemIndex int) (Input, error)

// Dispatcher builds requests and sends them through a Transport
type Dispatcher struct {
	transport Transport
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// NewDispatcher creates a dispatcher. m may be nil.
func NewDispatcher(transport Transport, log logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		logger:    log,
		metrics:   m,
	}
}

// Dispatch builds one request from in and performs it
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) (any, error) {
	req, err := Build(in)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.TraceEntityRequest(ctx, string(req.Operation()), req.Method(), req.Path())
	defer span.End()

	d.logger.DebugContext(ctx, "GPortal Entity API request",
		"method", req.Method(),
		"path", req.Path(),
		"query", req.Query(),
		"has_body", req.HasBody(),
	)

	start := time.Now()
	body, err := d.transport.Perform(ctx, req)
	if err != nil {
		d.metrics.RecordEntityRequest(string(req.Operation()), "error", time.Since(start))
		tracing.AddSpanError(span, err)
		if errors.GetAppError(err) == nil {
			err = errors.NewTransportError(err, req.Method(), req.Path())
		}
		return nil, err
	}

	d.metrics.RecordEntityRequest(string(req.Operation()), "success", time.Since(start))
	return body, nil
}

// Run dispatches count items in order. With continueOnFail a failed item
// yields {"error": message} and the batch goes on; otherwise the first
// failure aborts the batch and no later item is sent.
func (d *Dispatcher) Run(ctx context.Context, count int, resolve Resolver, continueOnFail bool) ([]nodes.Item, error) {
	results := make([]nodes.Item, 0, count)

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := d.runItem(ctx, i, resolve)
		if err != nil {
			if continueOnFail {
				d.logger.WarnContext(ctx, "Entity request failed, continuing", "item", i, "error", err)
				results = append(results, nodes.NewItem(map[string]any{"error": errors.Message(err)}))
				continue
			}
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		results = append(results, ResultItem(body))
	}

	return results, nil
}

func (d *Dispatcher) runItem(ctx context.Context, index int, resolve Resolver) (any, error) {
	in, err := resolve(index)
	if err != nil {
		return nil, err
	}
	body, err := d.Dispatch(ctx, in)
	if appErr := errors.GetAppError(err); appErr != nil {
		appErr.WithContext("item_index", index)
	}
	return body, err
}

// ResultItem wraps a response body as an output item. Objects are used as
// is; arrays and scalars are placed under "data".
func ResultItem(body any) nodes.Item {
	switch b := body.(type) {
	case map[string]any:
		return nodes.NewItem(b)
	case nil:
		return nodes.NewItem(map[string]any{})
	default:
		return nodes.NewItem(map[string]any{"data": b})
	}
}
