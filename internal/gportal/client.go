// Package gportal is the HTTP client for the GPortal REST API
package gportal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/internal/credentials"
	"n8n-gportal/internal/entity"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// Options tune the client transport
type Options struct {
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	RateBurst int
	UserAgent string
	// HTTPClient supplies the base transport; the bearer token is layered on top.
	HTTPClient *http.Client
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		RateBurst: 1,
		UserAgent: "n8n-gportal/1.0",
	}
}

// OptionsFromConfig derives client options from the gportal config section
func OptionsFromConfig(cfg *config.GPortalConfig) Options {
	return Options{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		UserAgent: cfg.UserAgent,
	}
}

// Client sends authenticated JSON requests to one GPortal deployment
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     logger.Logger
}

// NewClient creates a client for the domain and token in cred
func NewClient(cred *credentials.GPortalAPI, opts Options, log logger.Logger) *Client {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	if opts.Timeout > 0 {
		clone := *base
		clone.Timeout = opts.Timeout
		base = &clone
	}

	c := &Client{
		baseURL:    cred.BaseURL(),
		httpClient: cred.HTTPClient(context.Background(), base),
		userAgent:  opts.UserAgent,
		logger:     log,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// BaseURL returns the API root requests are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Perform sends a built entity request. It satisfies entity.Transport.
func (c *Client) Perform(ctx context.Context, req *entity.Request) (any, error) {
	var body []byte
	if req.HasBody() {
		body = req.Body()
	}
	return c.do(ctx, req.Method(), req.Path(), req.Query(), body)
}

// Do sends a JSON request to path below the base URL. body may be nil.
func (c *Client) Do(ctx context.Context, method, path string, query map[string]string, body any) (any, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.CodeInvalidPayload, "failed to encode request body")
		}
		payload = b
	}
	return c.do(ctx, method, path, query, payload)
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body []byte) (any, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, errors.CodeTimeout, "rate limiter wait cancelled")
		}
	}

	ctx, span := tracing.StartSpan(ctx, "gportal.http",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.AddSpanError(span, err)
		c.logger.ErrorContext(ctx, "GPortal request failed", "method", method, "path", path, "error", err)
		return nil, errors.NewTransportError(err, method, path)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.DebugContext(ctx, "GPortal request completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := errors.NewHTTPError(resp.StatusCode, fmt.Sprintf("Request failed with status code %d", resp.StatusCode))
		httpErr.Body = string(raw)
		httpErr.WithContext("method", method).WithContext("path", path)
		tracing.AddSpanError(span, httpErr)
		return nil, httpErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(err, method, path)
	}
	return decodeBody(raw), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query map[string]string, body []byte) (*http.Request, error) {
	u, err := entity.ResolveURL(c.baseURL, path, query)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.NewTransportError(err, method, path)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// decodeBody parses JSON responses. Empty bodies decode to nil and
// anything that is not JSON is returned as text.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return v
}
