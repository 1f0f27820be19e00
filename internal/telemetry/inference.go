package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const inferenceMeterName = "github.com/riskdesk/riskdesk/internal/telemetry/inference"

// InferenceMetrics holds instruments for model inference. A nil
// *InferenceMetrics records nothing.
type InferenceMetrics struct {
	duration        metric.Float64Histogram
	total           metric.Int64Counter
	scalingDegraded metric.Int64Counter
	artifactLoads   metric.Int64Counter
}

// NewInferenceMetrics creates inference instruments on the global meter.
func NewInferenceMetrics() (*InferenceMetrics, error) {
	meter := otel.Meter(inferenceMeterName)

	duration, err := meter.Float64Histogram(
		"inference.duration",
		metric.WithDescription("Duration of model inference in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"inference.total",
		metric.WithDescription("Total number of inference calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	scalingDegraded, err := meter.Int64Counter(
		"premium.scaling.degraded",
		metric.WithDescription("Predictions made on unscaled features"),
		metric.WithUnit("{prediction}"),
	)
	if err != nil {
		return nil, err
	}

	artifactLoads, err := meter.Int64Counter(
		"artifact.load.total",
		metric.WithDescription("Artifact load attempts"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	return &InferenceMetrics{
		duration:        duration,
		total:           total,
		scalingDegraded: scalingDegraded,
		artifactLoads:   artifactLoads,
	}, nil
}

// RecordInference records one inference call for a model.
func (m *InferenceMetrics) RecordInference(ctx context.Context, model, variant string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("model.name", model),
		attribute.String("model.variant", variant),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Detached from ctx cancellation so late failures still get recorded.
	ctx = context.WithoutCancel(ctx)
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.total.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordScalingDegraded counts a prediction made on unscaled features.
func (m *InferenceMetrics) RecordScalingDegraded(ctx context.Context, variant, reason string) {
	if m == nil {
		return
	}
	m.scalingDegraded.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("model.variant", variant),
		attribute.String("reason", reason),
	))
}

// RecordArtifactLoad counts an artifact load attempt.
func (m *InferenceMetrics) RecordArtifactLoad(ctx context.Context, artifact string, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("artifact.name", artifact)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	m.artifactLoads.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attrs...))
}
