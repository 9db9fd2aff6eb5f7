// Package metrics provides OpenTelemetry instrumentation for the gateway,
// exported via a Prometheus bridge at /metrics, grounded on glyphoxa's
// internal/observe package.
package metrics

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler to mount at /metrics. The Prometheus
// exporter registers against the default Prometheus registry, so this is
// the same promhttp.Handler() the teacher's telemetry setup returns.
func Handler() http.Handler {
	return promhttp.Handler()
}

const meterName = "github.com/voicewire/gateway"

// Metrics holds every OpenTelemetry instrument the gateway records.
type Metrics struct {
	STTDuration       metric.Float64Histogram
	FastLayerDuration metric.Float64Histogram
	MainLayerDuration metric.Float64Histogram
	TTSChunkDuration  metric.Float64Histogram

	FramesIn  metric.Int64Counter
	FramesOut metric.Int64Counter

	ToolCalls metric.Int64Counter
	BargeIns  metric.Int64Counter

	MemoryLockWait metric.Float64Histogram
	ProviderErrors metric.Int64Counter
}

// Init wires a Prometheus-backed MeterProvider as the global OTel provider
// and returns a Metrics bundle plus a shutdown func to call from main().
func Init(ctx context.Context) (*Metrics, func(context.Context) error, error) {
	exp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	m, err := New(mp.Meter(meterName))
	if err != nil {
		return nil, nil, err
	}
	return m, mp.Shutdown, nil
}

// New builds a Metrics bundle from an arbitrary meter — tests supply their
// own MeterProvider to avoid cross-test pollution, per the teacher pack's
// convention (glyphoxa's NewMetrics).
func New(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.STTDuration, err = meter.Float64Histogram("voicegateway.stt.duration",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.FastLayerDuration, err = meter.Float64Histogram("voicegateway.fastlayer.duration",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.MainLayerDuration, err = meter.Float64Histogram("voicegateway.mainlayer.duration",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.TTSChunkDuration, err = meter.Float64Histogram("voicegateway.tts.chunk_duration",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.FramesIn, err = meter.Int64Counter("voicegateway.frames.in"); err != nil {
		return nil, err
	}
	if m.FramesOut, err = meter.Int64Counter("voicegateway.frames.out"); err != nil {
		return nil, err
	}
	if m.ToolCalls, err = meter.Int64Counter("voicegateway.tool.calls"); err != nil {
		return nil, err
	}
	if m.BargeIns, err = meter.Int64Counter("voicegateway.bargeins"); err != nil {
		return nil, err
	}
	if m.MemoryLockWait, err = meter.Float64Histogram("voicegateway.memory.lock_wait",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.ProviderErrors, err = meter.Int64Counter("voicegateway.provider.errors"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordFrameIn increments the inbound frame counter for the given wire type.
func (m *Metrics) RecordFrameIn(ctx context.Context, frameType string) {
	if m == nil {
		return
	}
	m.FramesIn.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

// RecordFrameOut increments the outbound frame counter for the given wire type.
func (m *Metrics) RecordFrameOut(ctx context.Context, frameType string) {
	if m == nil {
		return
	}
	m.FramesOut.Add(ctx, 1, metric.WithAttributes(attribute.String("type", frameType)))
}

// RecordToolCall increments the tool-call counter for name/outcome.
func (m *Metrics) RecordToolCall(ctx context.Context, name, outcome string) {
	if m == nil {
		return
	}
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.String("outcome", outcome),
	))
}

// RecordBargeIn increments the barge-in counter.
func (m *Metrics) RecordBargeIn(ctx context.Context) {
	if m == nil {
		return
	}
	m.BargeIns.Add(ctx, 1)
}

// RecordProviderError increments the provider-error counter for stage/code.
func (m *Metrics) RecordProviderError(ctx context.Context, stage, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("code", code),
	))
}

// RecordSTTDuration records one STT call's wall-clock time in milliseconds.
func (m *Metrics) RecordSTTDuration(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.STTDuration.Record(ctx, ms)
}

// RecordFastLayerDuration records one fast-layer resolution's wall-clock
// time in milliseconds.
func (m *Metrics) RecordFastLayerDuration(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.FastLayerDuration.Record(ctx, ms)
}

// RecordMainLayerDuration records one main-layer turn's wall-clock time in
// milliseconds.
func (m *Metrics) RecordMainLayerDuration(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.MainLayerDuration.Record(ctx, ms)
}

// RecordTTSChunkDuration records one TTS chunk's synthesis wall-clock time
// in milliseconds.
func (m *Metrics) RecordTTSChunkDuration(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.TTSChunkDuration.Record(ctx, ms)
}

// RecordMemoryLockWait records how long a tool call waited to acquire a
// per-user memory lock, in milliseconds.
func (m *Metrics) RecordMemoryLockWait(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.MemoryLockWait.Record(ctx, ms)
}
