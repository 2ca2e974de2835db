package dispatcher

import "sync/atomic"

// SinkMetrics are the per-sink counters the dispatcher contract names:
// current queue length, successful writes, failures, and drops due to a
// full queue. All fields are accessed with atomics since the worker
// goroutine and any reader (e.g. a metrics scrape) run concurrently.
type SinkMetrics struct {
	queueLen       int64
	writeCount     uint64
	failureCount   uint64
	droppedCount   uint64
	abandonedCount uint64
}

// MetricsSnapshot is a point-in-time copy of SinkMetrics, safe to hand to
// a caller without further synchronization.
type MetricsSnapshot struct {
	QueueLen       int64
	WriteCount     uint64
	FailureCount   uint64
	DroppedCount   uint64
	AbandonedCount uint64
}

func (m *SinkMetrics) setQueueLen(n int) {
	atomic.StoreInt64(&m.queueLen, int64(n))
}

func (m *SinkMetrics) queueLenValue() int64 {
	return atomic.LoadInt64(&m.queueLen)
}

func (m *SinkMetrics) incWriteCount() {
	atomic.AddUint64(&m.writeCount, 1)
}

func (m *SinkMetrics) writeCountValue() uint64 {
	return atomic.LoadUint64(&m.writeCount)
}

func (m *SinkMetrics) incFailureCount() {
	atomic.AddUint64(&m.failureCount, 1)
}

func (m *SinkMetrics) failureCountValue() uint64 {
	return atomic.LoadUint64(&m.failureCount)
}

func (m *SinkMetrics) incDroppedCount() {
	atomic.AddUint64(&m.droppedCount, 1)
}

func (m *SinkMetrics) droppedCountValue() uint64 {
	return atomic.LoadUint64(&m.droppedCount)
}

func (m *SinkMetrics) addAbandonedCount(n uint64) {
	atomic.AddUint64(&m.abandonedCount, n)
}

func (m *SinkMetrics) abandonedCountValue() uint64 {
	return atomic.LoadUint64(&m.abandonedCount)
}

// Snapshot returns a consistent-enough point-in-time copy for reporting.
func (m *SinkMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		QueueLen:       m.queueLenValue(),
		WriteCount:     m.writeCountValue(),
		FailureCount:   m.failureCountValue(),
		DroppedCount:   m.droppedCountValue(),
		AbandonedCount: m.abandonedCountValue(),
	}
}
