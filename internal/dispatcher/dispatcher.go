package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

// SinkConfig describes one sink to fan out to and the capacity of its
// queue.
type SinkConfig struct {
	Sink          DataSink
	QueueCapacity int
}

// Dispatcher reads SyncedFrame values from a single input channel and
// forwards each to every configured sink via a non-blocking enqueue.
type Dispatcher struct {
	handles []*SinkHandle
	input   <-chan syncengine.SyncedFrame
	logger  *logrus.Logger
	drained chan struct{}
}

// New constructs a Dispatcher, spawning one SinkHandle (and its worker
// goroutine) per configured sink.
func New(sinks []SinkConfig, input <-chan syncengine.SyncedFrame, logger *logrus.Logger) *Dispatcher {
	handles := make([]*SinkHandle, 0, len(sinks))
	for _, sc := range sinks {
		capacity := sc.QueueCapacity
		if capacity <= 0 {
			capacity = 1
		}
		handles = append(handles, spawnSinkHandle(sc.Sink, capacity, logger))
	}
	return &Dispatcher{handles: handles, input: input, logger: logger, drained: make(chan struct{})}
}

// Metrics returns a (sink name, snapshot) pair per configured sink.
func (d *Dispatcher) Metrics() map[string]MetricsSnapshot {
	out := make(map[string]MetricsSnapshot, len(d.handles))
	for _, h := range d.handles {
		out[h.Name()] = h.Metrics().Snapshot()
	}
	return out
}

// Run consumes the input channel until it closes, fanning each frame out
// to every sink. It blocks until the input channel closes, then marks
// itself drained; callers must still call Shutdown to drain and close
// every sink handle.
func (d *Dispatcher) Run() {
	count := 0
	for frame := range d.input {
		d.dispatchFrame(frame)
		count++
		if count%100 == 0 && d.logger != nil {
			d.logger.WithField("frames", count).Debug("dispatcher progress")
		}
	}
	close(d.drained)
	if d.logger != nil {
		d.logger.WithField("frames", count).Info("dispatcher input closed")
	}
}

// Spawn runs Run on its own goroutine and returns immediately.
func (d *Dispatcher) Spawn() {
	go d.Run()
}

func (d *Dispatcher) dispatchFrame(frame syncengine.SyncedFrame) {
	for _, h := range d.handles {
		h.TrySend(frame)
	}
}

// Shutdown waits for Run's input channel to finish draining, then closes
// and drains every sink handle, the whole sequence bounded by ctx (the
// caller should derive ctx with ShutdownTimeout). If ctx expires before
// every handle finishes, Shutdown stops waiting on the remaining handles,
// logs the number of frames abandoned in their queues, and returns a
// non-nil error that reports that number; Shutdown itself never blocks past ctx's
// deadline, though a handle's worker goroutine may still be running
// behind it if its sink.Write call is hung.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	select {
	case <-d.drained:
	case <-ctx.Done():
	}

	var abandonedTotal int
	var timedOut bool
	for _, h := range d.handles {
		abandoned, err := h.Shutdown(ctx)
		abandonedTotal += abandoned
		if err != nil {
			timedOut = true
		}
	}

	if timedOut {
		if d.logger != nil {
			d.logger.WithField("abandoned_frames", abandonedTotal).
				Warn("dispatcher shutdown timed out, frames abandoned")
		}
		return fmt.Errorf("dispatcher: shutdown timed out, %d frames abandoned", abandonedTotal)
	}

	if d.logger != nil {
		d.logger.Info("dispatcher shut down cleanly")
	}
	return nil
}

// ShutdownTimeout is the recommended bound for awaiting a graceful
// shutdown before abandoning unflushed frames, per the dispatcher's
// shutdown contract.
const ShutdownTimeout = 5 * time.Second
