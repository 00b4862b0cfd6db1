package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	ttrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer initializes OpenTelemetry tracing with an OTLP/gRPC exporter
// pointed at collectorEndpoint. This is the one place tcprest-go uses
// google.golang.org/grpc: the transport between this process and its
// tracing collector, never the RPC framework's own wire protocol, which
// stays raw TCP/UDP per spec. Returns a shutdown function to call on
// process termination.
func InitTracer(serviceName, collectorEndpoint string) (func(context.Context) error, error) {
	ctx := context.Background()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(collectorEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create resource: %w", err)
	}

	tp := ttrace.NewTracerProvider(
		ttrace.WithBatcher(exporter),
		ttrace.WithResource(res),
		ttrace.WithSampler(ttrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

var tracer = otel.Tracer("tcprest-go")

// StartDispatchSpan opens a span around one resolve+invoke+encode cycle,
// tagged with the resolved class and method. The dispatch core is the
// one place worth tracing; frame parsing and transport I/O are cheap and
// high-volume enough that span overhead would dominate.
func StartDispatchSpan(ctx context.Context, classFQN, method string) (context.Context, trace.Span) {
	return tracer.Start(ctx, classFQN+"/"+method,
		trace.WithAttributes(
			attribute.String("tcprest.class", classFQN),
			attribute.String("tcprest.method", method),
		),
	)
}
