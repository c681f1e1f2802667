// Package observe provides OpenTelemetry metrics and tracing for the parley
// server: instrument definitions, SDK provider setup with a Prometheus
// exporter, HTTP middleware, and trace-aware logging helpers.
package observe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all parley metrics.
const meterName = "github.com/parleyvoice/parley"

// latencyBuckets covers the range from fast local operations to slow provider
// round trips.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics bundles every instrument the server records. Create one with
// [NewMetrics] after the meter provider has been initialised, or use
// [DefaultMetrics] for the global provider.
type Metrics struct {
	// SynthesisDuration measures one successful synthesis call, per provider.
	SynthesisDuration metric.Float64Histogram

	// DecodeDuration measures decoding a synthesized file into wire frames.
	DecodeDuration metric.Float64Histogram

	// FirstAudioLatency measures the time from the start of a reply to the
	// first audio frame leaving the server.
	FirstAudioLatency metric.Float64Histogram

	// ASRDuration measures a full recognition pass, from utterance end to the
	// final transcript.
	ASRDuration metric.Float64Histogram

	// HTTPRequestDuration measures requests on the metrics/health listener.
	HTTPRequestDuration metric.Float64Histogram

	// SegmentsSynthesized counts sentence segments sent to synthesis.
	SegmentsSynthesized metric.Int64Counter

	// FramesSent counts audio frames delivered to devices.
	FramesSent metric.Int64Counter

	// BargeIns counts playbacks aborted because the user spoke over them.
	BargeIns metric.Int64Counter

	// SynthesisFailures counts synthesis attempts that failed after retries.
	SynthesisFailures metric.Int64Counter

	// ActiveSessions tracks currently connected device sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on the given meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SynthesisDuration, err = meter.Float64Histogram(
		"parley.tts.synthesis.duration",
		metric.WithDescription("Duration of one successful synthesis call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create synthesis duration histogram: %w", err)
	}

	m.DecodeDuration, err = meter.Float64Histogram(
		"parley.audio.decode.duration",
		metric.WithDescription("Duration of decoding a synthesized file into frames."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create decode duration histogram: %w", err)
	}

	m.FirstAudioLatency, err = meter.Float64Histogram(
		"parley.dialog.first_audio.latency",
		metric.WithDescription("Time from reply start to the first audio frame sent."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create first audio latency histogram: %w", err)
	}

	m.ASRDuration, err = meter.Float64Histogram(
		"parley.asr.duration",
		metric.WithDescription("Time from utterance end to the final transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create asr duration histogram: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"parley.http.request.duration",
		metric.WithDescription("Duration of HTTP requests on the metrics listener."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create http request duration histogram: %w", err)
	}

	m.SegmentsSynthesized, err = meter.Int64Counter(
		"parley.tts.segments",
		metric.WithDescription("Sentence segments handed to synthesis."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create segments counter: %w", err)
	}

	m.FramesSent, err = meter.Int64Counter(
		"parley.audio.frames_sent",
		metric.WithDescription("Audio frames delivered to devices."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create frames sent counter: %w", err)
	}

	m.BargeIns, err = meter.Int64Counter(
		"parley.dialog.barge_ins",
		metric.WithDescription("Playbacks aborted by user speech."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create barge-in counter: %w", err)
	}

	m.SynthesisFailures, err = meter.Int64Counter(
		"parley.tts.failures",
		metric.WithDescription("Synthesis attempts that failed after all retries."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create synthesis failures counter: %w", err)
	}

	m.ActiveSessions, err = meter.Int64UpDownCounter(
		"parley.sessions.active",
		metric.WithDescription("Currently connected device sessions."),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create active sessions counter: %w", err)
	}

	return m, nil
}

// DefaultMetrics creates the instruments on the globally registered meter
// provider. Call after [InitProvider].
func DefaultMetrics() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

// Attr is a convenience shorthand for a string attribute.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSynthesis records a synthesis duration and bumps the segment counter,
// labelled with the provider name.
func (m *Metrics) RecordSynthesis(ctx context.Context, provider string, d time.Duration) {
	opts := metric.WithAttributes(Attr("provider", provider))
	m.SynthesisDuration.Record(ctx, d.Seconds(), opts)
	m.SegmentsSynthesized.Add(ctx, 1, opts)
}

// RecordSynthesisFailure counts a synthesis that exhausted its retries.
func (m *Metrics) RecordSynthesisFailure(ctx context.Context, provider string) {
	m.SynthesisFailures.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider)))
}

// RecordDecode records the time spent decoding a file into frames, labelled
// with the wire format.
func (m *Metrics) RecordDecode(ctx context.Context, format string, d time.Duration) {
	m.DecodeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("format", format)))
}

// RecordFramesSent counts n frames delivered to a device.
func (m *Metrics) RecordFramesSent(ctx context.Context, n int64) {
	m.FramesSent.Add(ctx, n)
}

// RecordBargeIn counts one aborted playback.
func (m *Metrics) RecordBargeIn(ctx context.Context) {
	m.BargeIns.Add(ctx, 1)
}

// SessionStarted and SessionEnded adjust the active session gauge.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.ActiveSessions.Add(ctx, 1)
}

func (m *Metrics) SessionEnded(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}
