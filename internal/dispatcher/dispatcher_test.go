package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clearpath-sim/syncframe/internal/syncengine"
)

// mockSink counts writes and can simulate failure or a fixed write delay,
// mirroring the reference test double used to exercise sink isolation.
type mockSink struct {
	name       string
	writeCount uint64
	shouldFail bool
	delay      time.Duration
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Write(frame syncengine.SyncedFrame) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.shouldFail {
		return fmt.Errorf("mock sink %s: simulated failure", m.name)
	}
	atomic.AddUint64(&m.writeCount, 1)
	return nil
}

func (m *mockSink) Flush() error { return nil }
func (m *mockSink) Close() error { return nil }

func (m *mockSink) writes() uint64 {
	return atomic.LoadUint64(&m.writeCount)
}

func sendFrames(t *testing.T, input chan<- syncengine.SyncedFrame, n int, delay time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		input <- syncengine.SyncedFrame{FrameID: uint64(i + 1)}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
}

func TestSinkHandleBasic(t *testing.T) {
	sink := &mockSink{name: "basic"}
	h := spawnSinkHandle(sink, 8, nil)

	for i := 0; i < 5; i++ {
		if !h.TrySend(syncengine.SyncedFrame{FrameID: uint64(i + 1)}) {
			t.Fatalf("send %d should have been accepted", i)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if got := sink.writes(); got != 5 {
		t.Fatalf("write count = %d, want 5", got)
	}
}

func TestSinkHandleQueueFull(t *testing.T) {
	sink := &mockSink{name: "slow", delay: 100 * time.Millisecond}
	h := spawnSinkHandle(sink, 2, nil)

	accepted := 0
	for i := 0; i < 10; i++ {
		if h.TrySend(syncengine.SyncedFrame{FrameID: uint64(i + 1)}) {
			accepted++
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.Shutdown(ctx)

	if got := h.Metrics().droppedCountValue(); got == 0 {
		t.Fatalf("expected some drops with a slow sink and small queue, got 0 (accepted %d)", accepted)
	}
}

func TestSinkHandleFailureIsolation(t *testing.T) {
	sink := &mockSink{name: "failing", shouldFail: true}
	h := spawnSinkHandle(sink, 8, nil)

	for i := 0; i < 3; i++ {
		h.TrySend(syncengine.SyncedFrame{FrameID: uint64(i + 1)})
	}
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.Shutdown(ctx)

	if got := h.Metrics().failureCountValue(); got == 0 {
		t.Fatalf("expected failure count > 0")
	}
}

func TestDispatcherFanout(t *testing.T) {
	sinkA := &mockSink{name: "a"}
	sinkB := &mockSink{name: "b"}

	input := make(chan syncengine.SyncedFrame)
	d := New([]SinkConfig{
		{Sink: sinkA, QueueCapacity: 16},
		{Sink: sinkB, QueueCapacity: 16},
	}, input, nil)

	done := make(chan struct{})
	go func() {
		d.Run()
		close(done)
	}()

	for i := 0; i < 5; i++ {
		input <- syncengine.SyncedFrame{FrameID: uint64(i + 1)}
	}
	close(input)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if got := sinkA.writes(); got != 5 {
		t.Fatalf("sink a writes = %d, want 5", got)
	}
	if got := sinkB.writes(); got != 5 {
		t.Fatalf("sink b writes = %d, want 5", got)
	}
}

// TestSinkIsolationBackpressure is scenario S5: a slow sink's backpressure
// never affects a fast sink's throughput.
func TestSinkIsolationBackpressure(t *testing.T) {
	slow := &mockSink{name: "A", delay: 200 * time.Millisecond}
	fast := &mockSink{name: "B"}

	input := make(chan syncengine.SyncedFrame)
	d := New([]SinkConfig{
		{Sink: slow, QueueCapacity: 1},
		{Sink: fast, QueueCapacity: 64},
	}, input, nil)

	done := make(chan struct{})
	go func() {
		d.Run()
		close(done)
	}()

	const total = 100
	go func() {
		for i := 0; i < total; i++ {
			input <- syncengine.SyncedFrame{FrameID: uint64(i + 1)}
			time.Sleep(20 * time.Millisecond) // ~50 frames/sec
		}
		close(input)
	}()

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Shutdown(ctx)

	if got := fast.writes(); got != total {
		t.Fatalf("fast sink writes = %d, want %d", got, total)
	}
	metrics := d.Metrics()
	if metrics["A"].DroppedCount == 0 {
		t.Fatalf("expected slow sink to report dropped frames")
	}
	if metrics["B"].DroppedCount != 0 {
		t.Fatalf("fast sink should never report drops, got %d", metrics["B"].DroppedCount)
	}
}

// TestDispatcherShutdownTimeoutAbandonsFrames exercises the bounded
// shutdown path: a sink permanently stuck in Write must not hang
// Shutdown past ctx's deadline, and whatever is still queued for it is
// reported as abandoned.
func TestDispatcherShutdownTimeoutAbandonsFrames(t *testing.T) {
	stuck := &mockSink{name: "stuck", delay: time.Hour}

	input := make(chan syncengine.SyncedFrame, 8)
	d := New([]SinkConfig{{Sink: stuck, QueueCapacity: 8}}, input, nil)
	d.Spawn()

	for i := 0; i < 3; i++ {
		input <- syncengine.SyncedFrame{FrameID: uint64(i + 1)}
	}
	close(input)
	time.Sleep(20 * time.Millisecond) // let the worker pick up the first frame and block in Write

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Shutdown(ctx)
	if err == nil {
		t.Fatalf("expected Shutdown to report a timeout")
	}

	metrics := d.Metrics()
	if metrics["stuck"].AbandonedCount == 0 {
		t.Fatalf("expected abandoned frames to be counted, got 0")
	}
}
