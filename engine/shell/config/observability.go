package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	serviceName            = "library-circulation"
	metricsExportInterval  = 15 * time.Second
	providerShutdownWindow = 5 * time.Second
)

// ObservabilityProviders holds the OpenTelemetry providers of the process.
// A provider is nil when its endpoint is not configured.
type ObservabilityProviders struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Resource       *resource.Resource
}

// NewObservabilityProviders creates OTLP gRPC exporting providers for the configured endpoints
// and installs them as the global providers.
func NewObservabilityProviders(ctx context.Context, cfg Config, version string) (*ObservabilityProviders, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, err
	}

	providers := &ObservabilityProviders{Resource: res}

	if cfg.TracesEndpoint != "" {
		traceExporter, exporterErr := otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpoint(cfg.TracesEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exporterErr != nil {
			return nil, exporterErr
		}

		providers.TracerProvider = trace.NewTracerProvider(
			trace.WithBatcher(traceExporter),
			trace.WithResource(res),
		)

		otel.SetTracerProvider(providers.TracerProvider)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}

	if cfg.MetricsEndpoint != "" {
		metricExporter, exporterErr := otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpoint(cfg.MetricsEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if exporterErr != nil {
			return nil, errors.Join(exporterErr, providers.Shutdown())
		}

		providers.MeterProvider = metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(metricsExportInterval))),
			metric.WithResource(res),
		)

		otel.SetMeterProvider(providers.MeterProvider)
	}

	return providers, nil
}

// TracingEnabled reports whether traces are exported.
func (p *ObservabilityProviders) TracingEnabled() bool {
	return p.TracerProvider != nil
}

// MetricsEnabled reports whether metrics are exported.
func (p *ObservabilityProviders) MetricsEnabled() bool {
	return p.MeterProvider != nil
}

// Shutdown flushes and stops the providers.
func (p *ObservabilityProviders) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), providerShutdownWindow)
	defer cancel()

	var errs []error

	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}

	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
