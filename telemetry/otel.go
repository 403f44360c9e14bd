package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	otelloggl "go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/loopkit/loopkit"

// otelTracer implements Tracer using the global OpenTelemetry TracerProvider.
type otelTracer struct {
	inner trace.Tracer
}

// NewOTelTracer returns a Tracer backed by the global OTEL TracerProvider.
// Configure the provider via otel.SetTracerProvider before constructing this,
// otherwise spans go to the no-op backend.
func NewOTelTracer() Tracer {
	return &otelTracer{inner: otel.Tracer(scopeName)}
}

func (t *otelTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	ctx, span := t.inner.Start(ctx, name, opts...)
	return ctx, &otelSpan{inner: span}
}

type otelSpan struct {
	inner trace.Span
}

func (s *otelSpan) End(opts ...trace.SpanEndOption) { s.inner.End(opts...) }

func (s *otelSpan) AddEvent(name string, attrs ...any) {
	s.inner.AddEvent(name, trace.WithAttributes(toAttrs(attrs)...))
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.inner.SetStatus(code, description)
}

func (s *otelSpan) RecordError(err error, opts ...trace.EventOption) {
	s.inner.RecordError(err, opts...)
	s.inner.SetStatus(codes.Error, err.Error())
}

// toAttrs converts alternating key,value pairs into OTEL attributes. An odd
// final element (a key with no value) is dropped.
func toAttrs(kv []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		out = append(out, attributeFor(key, kv[i+1]))
	}
	return out
}

func attributeFor(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case bool:
		return attribute.Bool(key, val)
	default:
		return attribute.String(key, toString(val))
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

// otelMetrics implements Metrics using the global OpenTelemetry
// MeterProvider. Instruments are created lazily and cached by name.
type otelMetrics struct {
	meter      metric.Meter
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOTelMetrics returns a Metrics recorder backed by the global OTEL
// MeterProvider.
func NewOTelMetrics() Metrics {
	return &otelMetrics{
		meter:      otel.Meter(scopeName),
		counters:   map[string]metric.Float64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
}

func (m *otelMetrics) counter(name string) metric.Float64Counter {
	if c, ok := m.counters[name]; ok {
		return c
	}
	c, _ := m.meter.Float64Counter(name)
	m.counters[name] = c
	return c
}

func (m *otelMetrics) histogram(name string) metric.Float64Histogram {
	if h, ok := m.histograms[name]; ok {
		return h
	}
	h, _ := m.meter.Float64Histogram(name)
	m.histograms[name] = h
	return h
}

func tagsToAttrs(tags []string) metric.MeasurementOption {
	kvs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		kvs = append(kvs, attribute.String(tags[i], tags[i+1]))
	}
	return metric.WithAttributes(kvs...)
}

func (m *otelMetrics) IncCounter(name string, value float64, tags ...string) {
	m.counter(name).Add(context.Background(), value, tagsToAttrs(tags))
}

func (m *otelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	m.histogram(name).Record(context.Background(), float64(duration.Milliseconds()), tagsToAttrs(tags))
}

func (m *otelMetrics) RecordGauge(name string, value float64, tags ...string) {
	m.histogram(name).Record(context.Background(), value, tagsToAttrs(tags))
}

// otelLogger implements Logger using the global OpenTelemetry LoggerProvider.
type otelLogger struct {
	inner otellog.Logger
}

// NewOTelLogger returns a Logger backed by the global OTEL LoggerProvider.
func NewOTelLogger() Logger {
	return &otelLogger{inner: otelloggl.Logger(scopeName)}
}

func (l *otelLogger) emit(ctx context.Context, severity otellog.Severity, msg string, keyvals []any) {
	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(severity)
	rec.SetBody(otellog.StringValue(msg))
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		rec.AddAttributes(otellog.String(key, toString(keyvals[i+1])))
	}
	l.inner.Emit(ctx, rec)
}

func (l *otelLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.emit(ctx, otellog.SeverityDebug, msg, keyvals)
}
func (l *otelLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.emit(ctx, otellog.SeverityInfo, msg, keyvals)
}
func (l *otelLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.emit(ctx, otellog.SeverityWarn, msg, keyvals)
}
func (l *otelLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.emit(ctx, otellog.SeverityError, msg, keyvals)
}

var (
	_ Tracer  = (*otelTracer)(nil)
	_ Span    = (*otelSpan)(nil)
	_ Metrics = (*otelMetrics)(nil)
	_ Logger  = (*otelLogger)(nil)
)
