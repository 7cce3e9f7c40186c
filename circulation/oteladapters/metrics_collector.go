package oteladapters

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// MetricsCollector maps circulation metrics onto OpenTelemetry instruments:
// durations become histograms in seconds, counters become Int64Counters
// and values become gauges. Instruments are created on first use.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

// NewMetricsCollector creates a collector that registers instruments with meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// RecordDuration records duration in seconds.
func (m *MetricsCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), name, duration, labels)
}

// RecordDurationContext records duration in seconds, correlated with the trace of ctx.
func (m *MetricsCollector) RecordDurationContext(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	histogram, ok := m.histogram(name)
	if !ok {
		return
	}

	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(toAttributes(labels)...))
}

// IncrementCounter adds one to the counter.
func (m *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), name, labels)
}

// IncrementCounterContext adds one to the counter, correlated with the trace of ctx.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, name string, labels map[string]string) {
	counter, ok := m.counter(name)
	if !ok {
		return
	}

	counter.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

// RecordValue sets the gauge.
func (m *MetricsCollector) RecordValue(name string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), name, value, labels)
}

// RecordValueContext sets the gauge, correlated with the trace of ctx.
func (m *MetricsCollector) RecordValueContext(ctx context.Context, name string, value float64, labels map[string]string) {
	gauge, ok := m.gauge(name)
	if !ok {
		return
	}

	gauge.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

func (m *MetricsCollector) histogram(name string) (metric.Float64Histogram, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if histogram, exists := m.histograms[name]; exists {
		return histogram, true
	}

	histogram, err := m.meter.Float64Histogram(name, metric.WithDescription("circulation operation duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, false
	}

	m.histograms[name] = histogram

	return histogram, true
}

func (m *MetricsCollector) counter(name string) (metric.Int64Counter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if counter, exists := m.counters[name]; exists {
		return counter, true
	}

	counter, err := m.meter.Int64Counter(name, metric.WithDescription("circulation operation count"))
	if err != nil {
		return nil, false
	}

	m.counters[name] = counter

	return counter, true
}

func (m *MetricsCollector) gauge(name string) (metric.Float64Gauge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gauge, exists := m.gauges[name]; exists {
		return gauge, true
	}

	gauge, err := m.meter.Float64Gauge(name, metric.WithDescription("circulation current value"))
	if err != nil {
		return nil, false
	}

	m.gauges[name] = gauge

	return gauge, true
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

var (
	_ circulation.MetricsCollector           = (*MetricsCollector)(nil)
	_ circulation.ContextualMetricsCollector = (*MetricsCollector)(nil)
)
