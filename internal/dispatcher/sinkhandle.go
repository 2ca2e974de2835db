package dispatcher

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

// SinkHandle owns one sink's bounded queue and its dedicated worker
// goroutine. It is the unit of isolation: a handle's queue filling up or
// its sink misbehaving never touches any other handle.
type SinkHandle struct {
	name    string
	tx      chan syncengine.SyncedFrame
	metrics *SinkMetrics
	done    chan struct{}
	logger  *logrus.Logger
}

// spawnSinkHandle starts the worker goroutine and returns a handle to it.
func spawnSinkHandle(sink DataSink, queueCapacity int, logger *logrus.Logger) *SinkHandle {
	h := &SinkHandle{
		name:    sink.Name(),
		tx:      make(chan syncengine.SyncedFrame, queueCapacity),
		metrics: &SinkMetrics{},
		done:    make(chan struct{}),
		logger:  logger,
	}
	go h.run(sink)
	return h
}

// Name returns the sink's name, used as a metrics label.
func (h *SinkHandle) Name() string {
	return h.name
}

// Metrics returns the handle's live counters.
func (h *SinkHandle) Metrics() *SinkMetrics {
	return h.metrics
}

// TrySend performs a non-blocking enqueue. It returns false (and counts a
// drop) if the queue is full; it never blocks the caller.
func (h *SinkHandle) TrySend(frame syncengine.SyncedFrame) bool {
	select {
	case h.tx <- frame:
		h.metrics.setQueueLen(len(h.tx))
		return true
	default:
		h.metrics.incDroppedCount()
		if h.logger != nil {
			h.logger.WithField("sink", h.name).Warn("sink queue full, dropping frame")
		}
		return false
	}
}

// Shutdown closes the send side, signaling the worker to drain and exit,
// then waits for it to finish calling Flush/Close on the sink, bounded by
// ctx. If ctx is done first, any frames still sitting in the queue are
// counted and logged as abandoned, and Shutdown returns ctx.Err() without
// waiting further for the worker (which may still be blocked in a slow
// sink.Write call).
func (h *SinkHandle) Shutdown(ctx context.Context) (abandoned int, err error) {
	close(h.tx)
	select {
	case <-h.done:
		return 0, nil
	case <-ctx.Done():
		abandoned = len(h.tx)
		h.metrics.addAbandonedCount(uint64(abandoned))
		if h.logger != nil {
			h.logger.WithFields(logrus.Fields{"sink": h.name, "abandoned": abandoned}).
				Warn("sink shutdown timed out, abandoning queued frames")
		}
		return abandoned, ctx.Err()
	}
}

func (h *SinkHandle) run(sink DataSink) {
	defer close(h.done)

	if h.logger != nil {
		h.logger.WithField("sink", h.name).Debug("sink worker starting")
	}

	for frame := range h.tx {
		h.metrics.setQueueLen(len(h.tx))
		if err := sink.Write(frame); err != nil {
			h.metrics.incFailureCount()
			if h.logger != nil {
				h.logger.WithField("sink", h.name).WithError(err).Error("sink write failed")
			}
			continue
		}
		h.metrics.incWriteCount()
	}

	if err := sink.Flush(); err != nil && h.logger != nil {
		h.logger.WithField("sink", h.name).WithError(err).Error("sink flush failed")
	}
	if err := sink.Close(); err != nil && h.logger != nil {
		h.logger.WithField("sink", h.name).WithError(err).Error("sink close failed")
	}
	if h.logger != nil {
		h.logger.WithField("sink", h.name).Debug("sink worker stopped")
	}
}
