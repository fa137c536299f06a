package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "n8n-gportal"

// Config holds tracing configuration
type Config struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	ServiceName string `json:"service_name" yaml:"service_name"`
	Environment string `json:"environment" yaml:"environment"`
	Version     string `json:"version" yaml:"version"`

	// "otlp", "stdout" or "none"
	ExporterType string `json:"exporter_type" yaml:"exporter_type"`
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPInsecure bool   `json:"otlp_insecure" yaml:"otlp_insecure"`

	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

// DefaultConfig returns default tracing configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:      false,
		ServiceName:  "n8n-gportal",
		Environment:  "development",
		Version:      "dev",
		ExporterType: "stdout",
		OTLPEndpoint: "localhost:4318",
		OTLPInsecure: true,
		SampleRatio:  1.0,
	}
}

var (
	mu             sync.RWMutex
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer = noop.NewTracerProvider().Tracer(instrumentationName)
)

// Initialize installs the global tracer provider described by config
func Initialize(ctx context.Context, config *Config) error {
	if config == nil || !config.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.Version),
			attribute.String("deployment.environment", config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return err
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SampleRatio <= 0:
		sampler = sdktrace.NeverSample()
	case config.SampleRatio >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SampleRatio)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	tracerProvider = tp
	tracer = tp.Tracer(instrumentationName)
	mu.Unlock()

	return nil
}

func newExporter(ctx context.Context, config *Config) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case "otlp":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
		if config.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
		return exporter, nil
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exporter, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
}

// UseTracerProvider installs tp for spans started through this package
func UseTracerProvider(tp trace.TracerProvider) {
	mu.Lock()
	defer mu.Unlock()
	tracer = tp.Tracer(instrumentationName)
}

// Shutdown flushes and stops the installed provider
func Shutdown(ctx context.Context) error {
	mu.RLock()
	tp := tracerProvider
	mu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span with the package tracer
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	mu.RLock()
	t := tracer
	mu.RUnlock()
	return t.Start(ctx, spanName, opts...)
}

// TraceNodeExecution creates a span for one node run
func TraceNodeExecution(ctx context.Context, nodeName, nodeType, executionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "node.execute",
		trace.WithAttributes(
			NodeNameKey.String(nodeName),
			NodeTypeKey.String(nodeType),
			ExecutionIDKey.String(executionID),
		),
	)
}

// TraceEntityRequest creates a client span for an entity API call
func TraceEntityRequest(ctx context.Context, operation, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, "entity."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			OperationKey.String(operation),
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
}

// TraceWebhook creates a server span for an inbound webhook
func TraceWebhook(ctx context.Context, nodeType, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, "webhook.receive",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			NodeTypeKey.String(nodeType),
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
}

// AddSpanError records err on span and marks it failed
func AddSpanError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// GetTraceID returns the trace id of the active span, or ""
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

var (
	ExecutionIDKey = attribute.Key("execution.id")
	NodeNameKey    = attribute.Key("node.name")
	NodeTypeKey    = attribute.Key("node.type")
	OperationKey   = attribute.Key("entity.operation")
	ItemIndexKey   = attribute.Key("item.index")
	OutputKey      = attribute.Key("router.output")
)
