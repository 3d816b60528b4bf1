// Package observe provides application-wide observability primitives for
// voxscribe: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxscribe metrics.
const meterName = "github.com/voxscribe/voxscribe"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscriptionDuration tracks the latency of a blocking finalize
	// (inference) call.
	TranscriptionDuration metric.Float64Histogram

	// PacketsAdmitted counts voice packets accepted by the sequencer and fed
	// to a stream.
	PacketsAdmitted metric.Int64Counter

	// PacketsDropped counts voice packets dropped before feeding. Use with
	// attribute: attribute.String("reason", "gap"|"ignored"|"no_audio").
	PacketsDropped metric.Int64Counter

	// SequenceGaps counts per-SSRC sequence discontinuities (one per gap
	// event, regardless of how many packets the gap spans).
	SequenceGaps metric.Int64Counter

	// Transcripts counts successfully delivered transcripts.
	Transcripts metric.Int64Counter

	// TranscriptionErrors counts inference failures during finalize.
	TranscriptionErrors metric.Int64Counter

	// IngestRecords counts archival ingest records finalized.
	IngestRecords metric.Int64Counter

	// ActiveSpeakers tracks the number of speaker sessions currently held by
	// the registry.
	ActiveSpeakers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency on the operational HTTP
	// server (metrics and health endpoints).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// batch inference over single utterances.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("voxscribe.transcription.duration",
		metric.WithDescription("Latency of a blocking stream finalize (inference) call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PacketsAdmitted, err = m.Int64Counter("voxscribe.packets.admitted",
		metric.WithDescription("Voice packets admitted by the sequencer and fed to a stream."),
	); err != nil {
		return nil, err
	}
	if met.PacketsDropped, err = m.Int64Counter("voxscribe.packets.dropped",
		metric.WithDescription("Voice packets dropped before feeding, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SequenceGaps, err = m.Int64Counter("voxscribe.sequence.gaps",
		metric.WithDescription("Sequence discontinuities observed, one per gap event."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("voxscribe.transcripts",
		metric.WithDescription("Transcripts handed to the delivery sink."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionErrors, err = m.Int64Counter("voxscribe.transcription.errors",
		metric.WithDescription("Inference failures during finalize."),
	); err != nil {
		return nil, err
	}
	if met.IngestRecords, err = m.Int64Counter("voxscribe.ingest.records",
		metric.WithDescription("Archival ingest records finalized."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSpeakers, err = m.Int64UpDownCounter("voxscribe.active_speakers",
		metric.WithDescription("Speaker sessions currently held by the registry."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxscribe.http.request.duration",
		metric.WithDescription("Latency of operational HTTP requests."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterPoolObserver registers an asynchronous gauge exposing the worker
// pool's completed-job counter. completed is sampled at collection time.
func RegisterPoolObserver(mp metric.MeterProvider, completed func() uint64) error {
	m := mp.Meter(meterName)
	counter, err := m.Int64ObservableCounter("voxscribe.pool.completed_jobs",
		metric.WithDescription("Total inference jobs completed by the worker pool."),
	)
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(counter, int64(completed()))
		return nil
	}, counter)
	return err
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
