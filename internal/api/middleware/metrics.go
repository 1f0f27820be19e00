package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/riskdesk/riskdesk/internal/api/middleware"

// Metrics holds the HTTP server instruments. Attributes are limited to
// method, chi route and status so that quote and request IDs never become
// label values.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	var m Metrics
	var err, e error
	m.duration, e = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"), metric.WithUnit("s"))
	err = errors.Join(err, e)
	m.total, e = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests by route and status"), metric.WithUnit("{request}"))
	err = errors.Join(err, e)
	m.inFlight, e = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP requests currently being served"), metric.WithUnit("{request}"))
	err = errors.Join(err, e)
	m.size, e = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"), metric.WithUnit("By"))
	err = errors.Join(err, e)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records one observation per request once the handler returns.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.inFlight.Add(r.Context(), 1, method)
			defer m.inFlight.Add(r.Context(), -1, method)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.response.status_code", wrapped.statusCode),
				attribute.String("http.response.status_class", statusClass(wrapped.statusCode)),
			)
			m.duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
			m.total.Add(r.Context(), 1, attrs)
			m.size.Record(r.Context(), wrapped.written, attrs)
		})
	}
}

// statusClass maps 404 to "4xx".
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// routePattern returns the matched chi pattern, falling back to the path
// for unrouted requests.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// BackendMetrics records calls to remote backends such as a model server.
type BackendMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewBackendMetrics creates the instruments for outbound backend calls.
func NewBackendMetrics() (*BackendMetrics, error) {
	meter := otel.Meter(meterName)

	var m BackendMetrics
	var err, e error
	m.requestDuration, e = meter.Float64Histogram("backend.request.duration",
		metric.WithDescription("Duration of backend requests"), metric.WithUnit("s"))
	err = errors.Join(err, e)
	m.requestTotal, e = meter.Int64Counter("backend.request.total",
		metric.WithDescription("Backend requests by outcome"), metric.WithUnit("{request}"))
	err = errors.Join(err, e)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRequest records metrics for a backend request.
func (m *BackendMetrics) RecordRequest(backend, operation string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("backend.name", backend),
		attribute.String("backend.operation", operation),
		attribute.String("outcome", outcome),
	)

	// Not the request context: a cancelled caller must still be counted.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), attrs)
	m.requestTotal.Add(ctx, 1, attrs)
}
