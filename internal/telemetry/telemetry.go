// Package telemetry wires OpenTelemetry for the riskdesk binaries: OTLP
// export of traces and metrics, an optional Prometheus scrape endpoint and
// the inference instruments shared by the API and the batch worker.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	// Enabled turns on OTLP trace and metric export.
	Enabled bool
	// SampleRatio applies to root spans only; a sampled caller is always
	// followed.
	SampleRatio float64
	// PrometheusEnabled adds a pull reader served by Provider.MetricsHandler.
	PrometheusEnabled bool
}

// Provider owns the SDK providers created by Init. Either provider may be
// nil when its exporter is disabled.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	// MetricsHandler serves the Prometheus exposition format; nil unless
	// PrometheusEnabled.
	MetricsHandler http.Handler
}

// Shutdown flushes and stops both providers, attempting each even if the
// other fails.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error
	if p.TracerProvider != nil {
		err = errors.Join(err, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		err = errors.Join(err, p.MeterProvider.Shutdown(ctx))
	}
	return err
}

// Init installs the global tracer and meter providers for cfg. The caller
// must Shutdown the result on exit so buffered spans are exported.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled && !cfg.PrometheusEnabled {
		return newNoopProvider(cfg), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	p := &Provider{Tracer: otel.Tracer(cfg.ServiceName)}
	var readers []sdkmetric.Reader

	if cfg.Enabled {
		p.TracerProvider, err = initTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		p.Tracer = p.TracerProvider.Tracer(cfg.ServiceName)

		reader, err := initOTLPReader(ctx, cfg)
		if err != nil {
			_ = p.TracerProvider.Shutdown(ctx) //nolint:errcheck // best effort cleanup
			return nil, err
		}
		readers = append(readers, reader)

		otel.SetTracerProvider(p.TracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if cfg.PrometheusEnabled {
		reader, handler, err := initPrometheusReader()
		if err != nil {
			_ = p.Shutdown(ctx) //nolint:errcheck // best effort cleanup
			return nil, err
		}
		readers = append(readers, reader)
		p.MetricsHandler = handler
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	p.MeterProvider = sdkmetric.NewMeterProvider(opts...)
	p.Meter = p.MeterProvider.Meter(cfg.ServiceName)
	otel.SetMeterProvider(p.MeterProvider)

	return p, nil
}

func initTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func initOTLPReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second)), nil
}

// initPrometheusReader exports onto a private registry, not the global one.
func initPrometheusReader() (sdkmetric.Reader, http.Handler, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}
	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// newNoopProvider hands out the global tracer and meter, which stay no-ops
// until something installs real providers.
func newNoopProvider(cfg Config) *Provider {
	return &Provider{
		Tracer: otel.Tracer(cfg.ServiceName),
		Meter:  otel.Meter(cfg.ServiceName),
	}
}
