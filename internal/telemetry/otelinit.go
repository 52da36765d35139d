package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Instruments holds the metric instruments created by InitMetrics. Of
// these, only StepDuration has a consumer in the code (the simulator's
// WithStepDurationHistogram option); the allocators, load balancer and
// scheduler record nothing through them.
type Instruments struct {
	StepDuration      metric.Float64Histogram
	LinkUtilization   metric.Float64Histogram
	AllocatorCongested metric.Int64Counter
	LBDecisions       metric.Int64Counter
	SchedulerRounds   metric.Int64Counter
}

// InitTracer configures a global tracer provider with an OTLP gRPC exporter.
// Falls back to a no-op shutdown if the collector endpoint is unreachable —
// the simulator must never fail a run because telemetry could not dial out.
func InitTracer(ctx context.Context, component string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlptracegrpc.New(ctxInit,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("trace exporter init failed", "error", err)
		return func(context.Context) error { return nil }
	}
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(component),
	))
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	slog.Info("otel tracer initialized", "endpoint", endpoint)
	return tp.Shutdown
}

// InitMetrics sets up a global OTLP metrics exporter and returns the shared
// simulation instruments alongside the shutdown hook.
func InitMetrics(ctx context.Context, component string) (shutdown func(context.Context) error, instruments Instruments) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(component),
		attribute.String("component", component),
	))
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, newInstruments()
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown, newInstruments()
}

func newInstruments() Instruments {
	meter := otel.Meter("psim-go")
	step, _ := meter.Float64Histogram("psim_step_duration_ms")
	util, _ := meter.Float64Histogram("psim_link_utilization_ratio")
	congested, _ := meter.Int64Counter("psim_allocator_congested_total")
	lb, _ := meter.Int64Counter("psim_lb_decisions_total")
	rounds, _ := meter.Int64Counter("psim_scheduler_fixing_rounds_total")
	return Instruments{
		StepDuration:       step,
		LinkUtilization:    util,
		AllocatorCongested: congested,
		LBDecisions:        lb,
		SchedulerRounds:    rounds,
	}
}

// WithSpan starts a span under the shared tracer and returns the derived
// context alongside its end function.
func WithSpan(ctx context.Context, name string) (context.Context, func()) {
	tr := otel.Tracer("psim-go")
	ctx, span := tr.Start(ctx, name)
	return ctx, func() { span.End() }
}

// Tracer returns the package-scoped tracer for a subsystem.
func Tracer(subsystem string) trace.Tracer { return otel.Tracer("psim-" + subsystem) }

// Flush runs a bounded shutdown of a telemetry provider.
func Flush(ctx context.Context, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
