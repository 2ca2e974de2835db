// Package telemetry exposes the synchronization pipeline's metrics to
// Prometheus, under the exact names the core's external-interface contract
// names: sync_frames_total, sync_completeness_ratio, sync_jitter,
// sync_alignment_error, sync_quality_score, sync_sensor_jitter_exceeded,
// plus the dispatcher's sink_queue_len, sink_writes_total,
// sink_failures_total, sink_dropped_total.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearpath-sim/syncframe/internal/dispatcher"
)

// Metrics wraps a Prometheus registry with the pipeline's metric
// collectors. It implements syncengine.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal        *prometheus.CounterVec
	completenessRatio  prometheus.Histogram
	jitter             prometheus.Histogram
	alignmentError     *prometheus.HistogramVec
	qualityScore       *prometheus.HistogramVec
	sensorJitterExceed *prometheus.CounterVec

	// The dispatcher already tracks these as cumulative totals internally;
	// these gauges mirror that running total rather than re-deriving
	// deltas on every scrape, which is simpler and cannot double-count.
	sinkQueueLen     *prometheus.GaugeVec
	sinkWritesTotal  *prometheus.GaugeVec
	sinkFailuresTot  *prometheus.GaugeVec
	sinkDroppedTotal *prometheus.GaugeVec
}

// New constructs a Metrics bound to a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.framesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_frames_total",
		Help: "Synced frames emitted, labeled by outcome status.",
	}, []string{"status"})

	m.completenessRatio = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_completeness_ratio",
		Help:    "Fraction of required sensors present in each emitted frame.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	m.jitter = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_jitter",
		Help:    "Gap in seconds between successive t_sync values.",
		Buckets: prometheus.DefBuckets,
	})

	m.alignmentError = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_alignment_error",
		Help:    "Per-sensor reported time offset at emission, in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sensor_id"})

	m.qualityScore = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_quality_score",
		Help:    "Per-sensor quality score at emission.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"sensor_id"})

	m.sensorJitterExceed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_sensor_jitter_exceeded",
		Help: "Count of emissions whose inter-emission gap exceeded the sensor's jitter budget.",
	}, []string{"sensor_id"})

	m.sinkQueueLen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sink_queue_len",
		Help: "Current queue depth per sink.",
	}, []string{"sink"})

	m.sinkWritesTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sink_writes_total",
		Help: "Successful writes per sink (cumulative, mirrored from the dispatcher).",
	}, []string{"sink"})

	m.sinkFailuresTot = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sink_failures_total",
		Help: "Write failures per sink (cumulative, mirrored from the dispatcher).",
	}, []string{"sink"})

	m.sinkDroppedTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sink_dropped_total",
		Help: "Frames dropped per sink due to a full queue (cumulative, mirrored from the dispatcher).",
	}, []string{"sink"})

	m.registry.MustRegister(
		m.framesTotal, m.completenessRatio, m.jitter, m.alignmentError,
		m.qualityScore, m.sensorJitterExceed,
		m.sinkQueueLen, m.sinkWritesTotal, m.sinkFailuresTot, m.sinkDroppedTotal,
	)
	return m
}

// Registry returns the underlying Prometheus registry, for wiring into an
// HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordFrame implements syncengine.Recorder.
func (m *Metrics) RecordFrame(status string) {
	m.framesTotal.WithLabelValues(status).Inc()
}

// RecordCompletenessRatio implements syncengine.Recorder.
func (m *Metrics) RecordCompletenessRatio(ratio float64) {
	m.completenessRatio.Observe(ratio)
}

// RecordJitter implements syncengine.Recorder.
func (m *Metrics) RecordJitter(jitterSeconds float64) {
	m.jitter.Observe(jitterSeconds)
}

// RecordAlignmentError implements syncengine.Recorder.
func (m *Metrics) RecordAlignmentError(sensorID string, errSeconds float64) {
	m.alignmentError.WithLabelValues(sensorID).Observe(errSeconds)
}

// RecordQualityScore implements syncengine.Recorder.
func (m *Metrics) RecordQualityScore(sensorID string, score float64) {
	m.qualityScore.WithLabelValues(sensorID).Observe(score)
}

// RecordJitterExceeded implements syncengine.Recorder.
func (m *Metrics) RecordJitterExceeded(sensorID string) {
	m.sensorJitterExceed.WithLabelValues(sensorID).Inc()
}

// CollectSinks copies a dispatcher's per-sink snapshots into the sink
// gauges/counters. Counters are set to the snapshot's cumulative totals
// rather than incremented, since the dispatcher already tracks the
// running total; callers should poll this periodically (e.g. from an
// HTTP metrics handler) rather than on every frame.
func (m *Metrics) CollectSinks(snapshots map[string]dispatcher.MetricsSnapshot) {
	for sink, snap := range snapshots {
		m.sinkQueueLen.WithLabelValues(sink).Set(float64(snap.QueueLen))
		m.sinkWritesTotal.WithLabelValues(sink).Set(float64(snap.WriteCount))
		m.sinkFailuresTot.WithLabelValues(sink).Set(float64(snap.FailureCount))
		m.sinkDroppedTotal.WithLabelValues(sink).Set(float64(snap.DroppedCount))
	}
}
