// Package telemetry wires the daemon into an OTLP collector. Traces, metrics,
// and logs are exported over one shared gRPC connection; the sync engine
// records a span plus pass/update/remove counters on every reconcile pass.
//
// Telemetry is opt-in. Without a telemetry block in the config the global
// OTel providers stay no-ops and the instrumented code paths cost nothing.
// Call [Setup] once at startup and defer the returned [ShutdownFunc].
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Config carries the collector settings from the config file's telemetry
// block, plus the build version stamped by the CLI.
type Config struct {
	// OTLPEndpoint is the gRPC host:port of the collector,
	// e.g. "localhost:4317".
	OTLPEndpoint string

	// Insecure disables TLS for the collector connection. Meant for local
	// collectors without a cert.
	Insecure bool

	// ServiceName sets the service.name resource attribute.
	// Defaults to "teesync".
	ServiceName string

	// ServiceVersion sets the service.version resource attribute. The CLI
	// passes its -ldflags build version here.
	ServiceVersion string

	// Headers is sent as gRPC metadata on every OTLP request, typically an
	// Authorization bearer token for a hosted collector.
	Headers map[string]string
}

// ShutdownFunc flushes and closes all providers. Call it with a fresh
// context: the run context is usually already cancelled when the daemon
// shuts down.
type ShutdownFunc func(context.Context) error

// noopShutdown is returned on error so callers can defer unconditionally.
func noopShutdown(_ context.Context) error { return nil }

// Setup installs the global trace, metric, and log providers, all exporting
// through a single gRPC connection to cfg.OTLPEndpoint. The returned
// ShutdownFunc is always non-nil; on error it is a no-op.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	res, err := newResource(cfg)
	if err != nil {
		return noopShutdown, err
	}

	conn, err := dialCollector(cfg)
	if err != nil {
		return noopShutdown, err
	}

	// Providers initialised so far, torn down in reverse when a later
	// exporter fails to come up.
	var started []ShutdownFunc
	unwind := func() {
		for i := len(started) - 1; i >= 0; i-- {
			_ = started[i](ctx)
		}
		_ = conn.Close()
	}

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(conn),
		otlptracegrpc.WithHeaders(cfg.Headers),
	)
	if err != nil {
		unwind()
		return noopShutdown, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	started = append(started, tp.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithGRPCConn(conn),
		otlpmetricgrpc.WithHeaders(cfg.Headers),
	)
	if err != nil {
		unwind()
		return noopShutdown, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	started = append(started, mp.Shutdown)

	logExp, err := otlploggrpc.New(ctx,
		otlploggrpc.WithGRPCConn(conn),
		otlploggrpc.WithHeaders(cfg.Headers),
	)
	if err != nil {
		unwind()
		return noopShutdown, fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	return func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
		}
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("OTLP gRPC connection close: %w", err))
		}
		return errors.Join(errs...)
	}, nil
}

// newResource describes this daemon instance. NewSchemaless sidesteps the
// schema URL conflict between resource.Default() (SDK semconv) and the
// semconv version imported here.
func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "teesync"
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("building OTel resource: %w", err)
	}
	return res, nil
}

// dialCollector opens the gRPC connection shared by all three exporters.
func dialCollector(cfg Config) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(nil) // system root CAs
	}
	conn, err := grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dialling OTLP collector at %q: %w", cfg.OTLPEndpoint, err)
	}
	return conn, nil
}
