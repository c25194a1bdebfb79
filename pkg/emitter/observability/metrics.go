package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records emitter metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRegistration records a listener registration.
	RecordRegistration(ctx context.Context, event string, once bool)

	// RecordCancellation records listeners removed by a cancel.
	RecordCancellation(ctx context.Context, event string, removed int)

	// RecordDispatch records a dispatch episode with the number of listeners invoked.
	RecordDispatch(ctx context.Context, event string, invoked int, duration time.Duration, err error)

	// RecordListenerError records a failed listener invocation.
	RecordListenerError(ctx context.Context, event string, panicked bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	registrations   metric.Int64Counter
	cancellations   metric.Int64Counter
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	invocations     metric.Int64Counter
	listenerErrors  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the default OTel metrics instance.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("emitter")

	registrations, err := meter.Int64Counter("emitter.listener.registrations",
		metric.WithDescription("Number of listeners registered"),
	)
	if err != nil {
		return nil, err
	}

	cancellations, err := meter.Int64Counter("emitter.listener.cancellations",
		metric.WithDescription("Number of listeners removed by cancel"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter("emitter.dispatches",
		metric.WithDescription("Number of dispatch episodes"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("emitter.dispatch.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invocations, err := meter.Int64Counter("emitter.listener.invocations",
		metric.WithDescription("Number of listener callbacks invoked"),
	)
	if err != nil {
		return nil, err
	}

	listenerErrors, err := meter.Int64Counter("emitter.listener.errors",
		metric.WithDescription("Number of failed listener invocations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		registrations:   registrations,
		cancellations:   cancellations,
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		invocations:     invocations,
		listenerErrors:  listenerErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordRegistration(ctx context.Context, event string, once bool) {
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.Bool("once", once),
	))
}

func (m *otelMetrics) RecordCancellation(ctx context.Context, event string, removed int) {
	if removed <= 0 {
		return
	}
	m.cancellations.Add(ctx, int64(removed), metric.WithAttributes(
		attribute.String("event", event),
	))
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, event string, invoked int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event", event),
		attribute.Bool("success", err == nil),
	)
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, Milliseconds(duration), attrs)
	if invoked > 0 {
		m.invocations.Add(ctx, int64(invoked), metric.WithAttributes(
			attribute.String("event", event),
		))
	}
}

func (m *otelMetrics) RecordListenerError(ctx context.Context, event string, panicked bool) {
	m.listenerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.Bool("panicked", panicked),
	))
}
